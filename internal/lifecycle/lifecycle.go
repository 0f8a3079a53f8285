// Package lifecycle coordinates process-wide shutdown: the signal
// handler that asks the ingestion loop to stop, the flag that loop polls
// between connection-readiness checks, and a background heap watchdog
// that asks for the same graceful stop if the process outgrows its
// expected working set.
//
// Generalizes the teacher's global hot/stop flag pair to this program's
// needs: there is no "hot" activity flag here (the ingestion loop is
// always expected to be busy), only the stop signal and the reason it
// was raised.
package lifecycle

import (
	"os"
	"os/signal"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"qshmwriter/internal/diag"
)

var stopRequested uint32

// RequestStop asks the ingestion loop to terminate. Idempotent.
//
//go:nosplit
//go:inline
func RequestStop() {
	atomic.StoreUint32(&stopRequested, 1)
}

// StopRequested reports whether a shutdown has been requested. Cheap
// enough to poll once per event-loop iteration.
//
//go:nosplit
//go:inline
func StopRequested() bool {
	return atomic.LoadUint32(&stopRequested) == 1
}

// InstallSignalHandler arranges for SIGINT and SIGTERM to call
// RequestStop instead of terminating the process immediately, so the
// event loop returns and the final diagnostics get printed.
func InstallSignalHandler() {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-ch
		diag.Info("signal", sig.String())
		RequestStop()
	}()
}

// HeapLimits configures the background watchdog started by
// WatchHeap: Soft logs a warning once exceeded, Hard requests a
// graceful shutdown.
type HeapLimits struct {
	Soft uint64
	Hard uint64
}

// WatchHeap polls runtime.MemStats every interval and compares live heap
// bytes against limits, requesting shutdown once Hard is exceeded. It
// returns a stop function that halts the watchdog goroutine.
func WatchHeap(limits HeapLimits, interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		warnedSoft := false
		var ms runtime.MemStats
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				runtime.ReadMemStats(&ms)
				if limits.Hard > 0 && ms.HeapAlloc >= limits.Hard {
					diag.Info("heap", "hard limit exceeded, requesting shutdown")
					RequestStop()
					return
				}
				if limits.Soft > 0 && ms.HeapAlloc >= limits.Soft && !warnedSoft {
					diag.Info("heap", "soft limit exceeded")
					warnedSoft = true
				}
			}
		}
	}()
	return func() { close(done) }
}
