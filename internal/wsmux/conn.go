package wsmux

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"qshmwriter/internal/config"
)

// Conn owns one upstream combined-stream WebSocket connection: the raw
// TCP socket (kept around so its file descriptor can be registered with
// the event loop's epoll/kqueue instance), the TLS session wrapping it,
// and the incremental frame decoder accumulating whatever bytes arrive.
type Conn struct {
	Symbols []string

	tcp *net.TCPConn
	tls *tls.Conn
	fd  int

	decoder frameDecoder
}

const (
	dialTimeout      = 10 * time.Second
	handshakeTimeout = 10 * time.Second

	// readPollTimeout bounds how long a single PumpReadable may wait for
	// bytes the kernel hasn't delivered yet. The event loop only pumps
	// connections epoll/kqueue reported readable, so in the common case
	// the read returns immediately; the deadline exists so a partial TLS
	// record can never park the loop's one thread on one connection.
	readPollTimeout = time.Millisecond
)

// Dial opens a TCP connection to the upstream host, performs the TLS
// handshake, then the WebSocket upgrade for the given symbol chunk's
// combined stream path. On success the connection's raw fd is ready to be
// registered with an event loop.
func Dial(symbols []string) (*Conn, error) {
	addr := net.JoinHostPort(config.WsHost, "443")
	tcp, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("wsmux: dial %s: %w", addr, err)
	}
	tcpConn, ok := tcp.(*net.TCPConn)
	if !ok {
		tcp.Close()
		return nil, fmt.Errorf("wsmux: dialed connection is not TCP")
	}

	tlsConn := tls.Client(tcpConn, &tls.Config{ServerName: config.WsHost})
	tlsConn.SetDeadline(time.Now().Add(handshakeTimeout))
	if err := tlsConn.Handshake(); err != nil {
		tcpConn.Close()
		return nil, fmt.Errorf("wsmux: TLS handshake with %s: %w", config.WsHost, err)
	}

	path := StreamPath(symbols)
	leftover, err := doHandshake(tlsConn, config.WsHost, path)
	if err != nil {
		tlsConn.Close()
		return nil, err
	}
	tlsConn.SetDeadline(time.Time{})

	raw, err := tcpConn.SyscallConn()
	if err != nil {
		tlsConn.Close()
		return nil, fmt.Errorf("wsmux: obtaining raw conn: %w", err)
	}
	var fd int
	if err := raw.Control(func(f uintptr) { fd = int(f) }); err != nil {
		tlsConn.Close()
		return nil, fmt.Errorf("wsmux: reading fd: %w", err)
	}

	c := &Conn{
		Symbols: symbols,
		tcp:     tcpConn,
		tls:     tlsConn,
		fd:      fd,
	}
	if len(leftover) > 0 {
		if _, err := c.decoder.Feed(leftover); err != nil {
			tlsConn.Close()
			return nil, err
		}
	}
	return c, nil
}

// Fd returns the raw socket file descriptor for event-loop registration.
func (c *Conn) Fd() int { return c.fd }

// Close tears down the TLS session and underlying socket.
func (c *Conn) Close() error {
	return c.tls.Close()
}

// readBufSize is generous enough to drain a burst of bookTicker frames in
// one syscall without growing per connection beyond a bounded amount.
const readBufSize = 65536

// PumpReadable is called once the event loop observes this connection's
// fd as readable. It performs one deadline-bounded read and feeds
// whatever bytes arrived into the frame decoder, returning any complete
// messages. A read that times out with nothing available returns
// (nil, nil): no data this turn, connection still healthy.
func (c *Conn) PumpReadable() ([][]byte, error) {
	var buf [readBufSize]byte
	c.tls.SetReadDeadline(time.Now().Add(readPollTimeout))
	n, err := c.tls.Read(buf[:])
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			err = nil
		}
	}
	if n == 0 {
		return nil, err
	}

	msgs, feedErr := c.decoder.Feed(buf[:n])
	for _, ping := range c.decoder.TakePendingPings() {
		if sendErr := c.SendPong(ping); sendErr != nil && feedErr == nil {
			feedErr = sendErr
		}
	}
	if feedErr != nil {
		return msgs, feedErr
	}
	if err != nil {
		return msgs, nil // short read alongside EOF-ish error; messages are still valid
	}
	return msgs, nil
}

// SendPong writes a masked pong control frame echoing payload. Binance
// pings periodically and expects a pong back; the client never needs to
// initiate a ping of its own.
func (c *Conn) SendPong(payload []byte) error {
	frame, err := maskedControlFrame(opPong, payload)
	if err != nil {
		return err
	}
	_, err = c.tls.Write(frame)
	return err
}
