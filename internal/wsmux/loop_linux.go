//go:build linux

package wsmux

import (
	"time"

	"golang.org/x/sys/unix"

	"qshmwriter/internal/config"
	"qshmwriter/internal/diag"
)

// epollLoop drives the multiplexer's connections from a single epoll
// instance: every live connection's fd is registered for EPOLLIN, and
// each wake drains ready connections in round-robin order, bounded by
// BurstCap per connection, before waiting again.
type epollLoop struct {
	epfd int
	// fdToChunk maps a registered fd back to its chunk index in mux.
	fdToChunk map[int32]int
}

func newEventLoop() (*epollLoop, error) {
	fd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &epollLoop{epfd: fd, fdToChunk: make(map[int32]int)}, nil
}

func (l *epollLoop) register(chunkIdx int, conn *Conn) error {
	fd := int32(conn.Fd())
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: fd}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, conn.Fd(), &ev); err != nil {
		return err
	}
	l.fdToChunk[fd] = chunkIdx
	return nil
}

func (l *epollLoop) unregister(conn *Conn) {
	fd := int32(conn.Fd())
	unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, conn.Fd(), nil)
	delete(l.fdToChunk, fd)
}

// Run drives mux until stop reports true, reconnecting dropped
// connections on a coarse poll of nextRetryAt. timeoutMillis bounds
// how long each EpollWait call blocks, so the reconnect/backoff and
// shutdown checks still run even when no socket is ready.
func (l *epollLoop) Run(mux *Multiplexer, stop func() bool, timeoutMillis int) error {
	var events [64]unix.EpollEvent

	nextRetryAt := make([]time.Time, mux.NumConns())

	for !stop() {
		n, err := unix.EpollWait(l.epfd, events[:], timeoutMillis)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			fd := events[i].Fd
			chunkIdx, ok := l.fdToChunk[fd]
			if !ok {
				continue
			}
			if err := mux.DrainReadable(chunkIdx); err != nil {
				conn := mux.ConnAt(chunkIdx)
				if conn != nil {
					l.unregister(conn)
				}
				failures := mux.handleConnFailure(chunkIdx, err)
				if failures >= config.MaxConsecutiveFailures {
					diag.Fatal(config.ExitTenConsecutiveFails, "wsmux: chunk exceeded consecutive failure limit")
				}
				delay := time.Duration(mux.BackoffDelayMillis(chunkIdx)) * time.Millisecond
				nextRetryAt[chunkIdx] = time.Now().Add(delay)
			}
		}

		now := time.Now()
		for i := 0; i < mux.NumConns(); i++ {
			if mux.ConnAt(i) != nil {
				continue
			}
			// a zero nextRetryAt means the chunk went down without a
			// scheduled delay (failed during DialInitial): retry now.
			if !nextRetryAt[i].IsZero() && now.Before(nextRetryAt[i]) {
				continue
			}
			if err := mux.Reconnect(i); err != nil {
				if mux.Failures(i) >= config.MaxConsecutiveFailures {
					diag.Fatal(config.ExitTenConsecutiveFails, "wsmux: chunk exceeded consecutive failure limit")
				}
				delay := time.Duration(mux.BackoffDelayMillis(i)) * time.Millisecond
				nextRetryAt[i] = now.Add(delay)
				continue
			}
			if err := l.register(i, mux.ConnAt(i)); err != nil {
				diag.Warn("wsmux: registering reconnected fd", err)
			}
			nextRetryAt[i] = time.Time{}
		}
	}
	return nil
}

// RegisterAll registers every currently-connected chunk with the loop;
// called once after DialInitial.
func (l *epollLoop) RegisterAll(mux *Multiplexer) error {
	for i := 0; i < mux.NumConns(); i++ {
		if conn := mux.ConnAt(i); conn != nil {
			if err := l.register(i, conn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases the epoll instance.
func (l *epollLoop) Close() error {
	return unix.Close(l.epfd)
}
