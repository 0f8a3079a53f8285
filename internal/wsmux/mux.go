// Package wsmux owns the set of upstream Binance combined-stream
// connections, chunking the subscribed symbol set across them and
// draining decoded frames to a caller-supplied handler with bounded
// per-connection fairness, all from one cooperative event loop.
package wsmux

import (
	"qshmwriter/internal/config"
	"qshmwriter/internal/diag"
)

// BurstCap bounds how many socket reads the event loop performs on a single
// ready connection before moving on to the next, so one noisy connection
// can't starve the others during a burst.
const BurstCap = 64

// MessageHandler is called synchronously for every decoded message, in
// the order it was received on its connection. Connections are drained
// round-robin, but there is no cross-connection ordering guarantee beyond
// that.
type MessageHandler func(msg []byte)

// Multiplexer owns every upstream connection needed to cover symbols,
// chunked at config.MaxSymbolsPerConn per connection, and drives
// reconnection with backoff when one drops.
type Multiplexer struct {
	chunks  [][]string
	conns   []*Conn // nil entry means that chunk's connection is currently down
	backoff []Backoff

	handler MessageHandler
}

// New builds a Multiplexer for symbols, pre-computing the chunking but
// not yet dialing any connection (call DialInitial to do that).
func New(symbols []string, handler MessageHandler) *Multiplexer {
	chunks := ChunkSymbols(symbols)
	return &Multiplexer{
		chunks:  chunks,
		conns:   make([]*Conn, len(chunks)),
		backoff: make([]Backoff, len(chunks)),
		handler: handler,
	}
}

// NumConns returns how many connections this multiplexer manages.
func (m *Multiplexer) NumConns() int { return len(m.chunks) }

// ConnAt returns the connection for chunk i, or nil if it's currently
// down and awaiting reconnect.
func (m *Multiplexer) ConnAt(i int) *Conn { return m.conns[i] }

// dialChunk attempts to connect chunk i, recording the outcome in that
// chunk's backoff state.
func (m *Multiplexer) dialChunk(i int) error {
	conn, err := Dial(m.chunks[i])
	if err != nil {
		m.backoff[i].RecordFailure()
		diag.Warn("wsmux: dial chunk", err)
		return err
	}
	m.conns[i] = conn
	m.backoff[i].Reset()
	return nil
}

// DialInitial connects every chunk in order, spaced by
// config.ConnectionSpacingMillis. The first chunk is retried on its
// backoff schedule until it connects or the consecutive-failure limit
// trips — the same retry policy and failure threshold that govern every
// later reconnect, so the caller maps the returned error to the
// consecutive-failures exit code. Later chunks that fail here just start
// in the "down" state and retry via the event loop's reconnect path.
func (m *Multiplexer) DialInitial(sleepMillis func(int)) error {
	for i := range m.chunks {
		if i > 0 {
			sleepMillis(config.ConnectionSpacingMillis)
		}
		err := m.dialChunk(i)
		for err != nil && i == 0 {
			if m.backoff[i].Failures() >= config.MaxConsecutiveFailures {
				return err
			}
			sleepMillis(m.backoff[i].DelayMillis())
			err = m.dialChunk(i)
		}
	}
	return nil
}

// handleConnFailure drops chunk i's connection and records the failure,
// returning the number of consecutive failures now recorded for it.
func (m *Multiplexer) handleConnFailure(i int, err error) int {
	if m.conns[i] != nil {
		m.conns[i].Close()
		m.conns[i] = nil
	}
	diag.Warn("wsmux: connection lost", err)
	m.backoff[i].RecordFailure()
	return m.backoff[i].Failures()
}

// Reconnect retries dialing chunk i, which must currently be down.
func (m *Multiplexer) Reconnect(i int) error {
	return m.dialChunk(i)
}

// BackoffDelayMillis returns the delay the caller should wait before
// retrying chunk i's connection, based on its current failure count.
func (m *Multiplexer) BackoffDelayMillis(i int) int {
	return m.backoff[i].DelayMillis()
}

// Failures returns the number of consecutive failures recorded for
// chunk i's connection.
func (m *Multiplexer) Failures(i int) int {
	return m.backoff[i].Failures()
}

// DrainReadable pumps one ready connection's socket up to BurstCap times,
// delivering every decoded message from each pump to the handler in full
// before doing the next one — a pump's batch is never truncated, since
// its messages are already consumed from the socket and would otherwise
// be lost. BurstCap bounds how many reads a single ready connection gets
// per event-loop turn, not how many messages it may deliver. It returns
// the error PumpReadable produced, if any (typically io.EOF or a closed
// connection), so the caller can trigger reconnection logic.
func (m *Multiplexer) DrainReadable(i int) error {
	conn := m.conns[i]
	if conn == nil {
		return nil
	}

	for pumps := 0; pumps < BurstCap; pumps++ {
		msgs, err := conn.PumpReadable()
		for _, msg := range msgs {
			m.handler(msg)
		}
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			break // no more buffered app data available this turn
		}
	}
	return nil
}
