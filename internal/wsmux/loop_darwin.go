//go:build darwin

package wsmux

import (
	"time"

	"golang.org/x/sys/unix"

	"qshmwriter/internal/config"
	"qshmwriter/internal/diag"
)

// kqueueLoop is the Darwin/BSD counterpart to epollLoop, built on kqueue
// instead of epoll but driving the same Multiplexer the same way.
type kqueueLoop struct {
	kq        int
	fdToChunk map[int32]int
}

func newEventLoop() (*kqueueLoop, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &kqueueLoop{kq: kq, fdToChunk: make(map[int32]int)}, nil
}

func (l *kqueueLoop) register(chunkIdx int, conn *Conn) error {
	fd := conn.Fd()
	changes := []unix.Kevent_t{{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD,
	}}
	if _, err := unix.Kevent(l.kq, changes, nil, nil); err != nil {
		return err
	}
	l.fdToChunk[int32(fd)] = chunkIdx
	return nil
}

func (l *kqueueLoop) unregister(conn *Conn) {
	fd := conn.Fd()
	changes := []unix.Kevent_t{{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_DELETE,
	}}
	unix.Kevent(l.kq, changes, nil, nil)
	delete(l.fdToChunk, int32(fd))
}

// Run mirrors epollLoop.Run: drain ready connections, reconnect dropped
// ones once their backoff delay has elapsed, until stop reports true.
func (l *kqueueLoop) Run(mux *Multiplexer, stop func() bool, timeoutMillis int) error {
	var events [64]unix.Kevent_t
	timeout := &unix.Timespec{
		Sec:  int64(timeoutMillis / 1000),
		Nsec: int64(timeoutMillis%1000) * 1_000_000,
	}

	nextRetryAt := make([]time.Time, mux.NumConns())

	for !stop() {
		n, err := unix.Kevent(l.kq, nil, events[:], timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			fd := int32(events[i].Ident)
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
func (l *kqueueLoop) RegisterAll(mux *Multiplexer) error {
	for i := 0; i < mux.NumConns(); i++ {
		if conn := mux.ConnAt(i); conn != nil {
			if err := l.register(i, conn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases the kqueue descriptor.
func (l *kqueueLoop) Close() error {
	return unix.Close(l.kq)
}
