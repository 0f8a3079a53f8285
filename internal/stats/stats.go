// Package stats tracks the per-message latency counters the ingestion
// pipeline updates on every publish and the process reports once at
// shutdown.
package stats

import (
	"strconv"
	"sync/atomic"

	"qshmwriter/internal/config"
	"qshmwriter/internal/diag"
)

// Perf holds lock-free counters updated from the single ingestion thread
// and read back at shutdown for the exit report.
type Perf struct {
	totalMessages uint64
	maxProcUs     uint64
	overThreshold uint64
}

// NewPerf returns a zeroed counter set.
func NewPerf() *Perf {
	return &Perf{}
}

// Record folds one message's processing latency (in microseconds) into
// the running counters.
//
//go:nosplit
//go:inline
func (p *Perf) Record(procUs int64) {
	atomic.AddUint64(&p.totalMessages, 1)

	u := uint64(procUs)
	for {
		cur := atomic.LoadUint64(&p.maxProcUs)
		if u <= cur {
			break
		}
		if atomic.CompareAndSwapUint64(&p.maxProcUs, cur, u) {
			break
		}
	}

	if procUs > config.SlowMessageThresholdMicros {
		atomic.AddUint64(&p.overThreshold, 1)
	}
}

// Snapshot is a point-in-time read of the counters, safe to format or
// compare after the fact.
type Snapshot struct {
	TotalMessages uint64
	MaxProcUs     uint64
	OverThreshold uint64
}

// Snapshot reads the current counter values.
func (p *Perf) Snapshot() Snapshot {
	return Snapshot{
		TotalMessages: atomic.LoadUint64(&p.totalMessages),
		MaxProcUs:     atomic.LoadUint64(&p.maxProcUs),
		OverThreshold: atomic.LoadUint64(&p.overThreshold),
	}
}

// Report prints the final counters to stderr via diag, in the same
// cold-path logging style as every other shutdown diagnostic.
func (p *Perf) Report() {
	s := p.Snapshot()
	diag.Info("stats", "total_messages="+strconv.FormatUint(s.TotalMessages, 10)+
		" max_proc_us="+strconv.FormatUint(s.MaxProcUs, 10)+
		" over_"+strconv.Itoa(config.SlowMessageThresholdMicros)+"us_count="+strconv.FormatUint(s.OverThreshold, 10))
}
