// Package ingest turns raw bookTicker frames into shared-memory
// publications. Each frame is carried through the same seven steps on the
// single ingestion thread: timestamp capture, field extraction, symbol
// lookup, price parsing, clock read, publish, latency accounting.
package ingest

import (
	"sync/atomic"
	"unsafe"

	"qshmwriter/internal/config"
	"qshmwriter/internal/diag"
	"qshmwriter/internal/price"
	"qshmwriter/internal/shm"
	"qshmwriter/internal/stats"
	"qshmwriter/internal/symbols"
)

// Pipeline wires one upstream message stream to one slot table. It has no
// internal synchronization: every method is called from the single
// ingestion thread.
type Pipeline struct {
	registry *symbols.Registry
	table    *shm.Table
	clock    *shm.Clock
	perf     *stats.Perf
	sourceID uint64

	dropped uint64 // frames rejected for a missing field or an unparsable price
}

// New builds a Pipeline publishing into table under sourceID, resolving
// symbols against registry and recording latency into perf.
func New(registry *symbols.Registry, table *shm.Table, perf *stats.Perf, sourceID uint64) *Pipeline {
	return &Pipeline{
		registry: registry,
		table:    table,
		clock:    shm.NewClock(),
		perf:     perf,
		sourceID: sourceID,
	}
}

// HandleFrame implements wsmux.MessageHandler. It is the only entry point
// into the pipeline and runs the full seven-step sequence for msg.
func (p *Pipeline) HandleFrame(msg []byte) {
	t0 := shm.NowMicros()

	f := scanFields(msg)
	if len(f.Symbol) == 0 || len(f.Bid) == 0 || len(f.Ask) == 0 {
		atomic.AddUint64(&p.dropped, 1)
		return
	}

	// The frame's symbol name is authoritative and already upper-case
	// (Binance's bookTicker stream always reports it that way), so the
	// registry is keyed directly off the frame bytes with no case-folding.
	symbolID, ok := p.registry.Lookup(b2s(f.Symbol))
	if !ok {
		diag.Fatal(config.ExitUnknownSymbol, "ingest: unknown symbol "+string(f.Symbol))
	}

	bid, err := price.Parse(f.Bid)
	if err != nil {
		atomic.AddUint64(&p.dropped, 1)
		return
	}
	ask, err := price.Parse(f.Ask)
	if err != nil {
		atomic.AddUint64(&p.dropped, 1)
		return
	}

	slotIdx := p.sourceID*p.table.NSymbols() + symbolID
	ts := p.clock.Next(slotIdx)

	if err := p.table.Publish(p.sourceID, symbolID, bid, ask, ts); err != nil {
		diag.Fatal(config.ExitSlotIndexOutOfRange, "ingest: publish "+err.Error())
	}

	procUs := shm.NowMicros() - t0
	p.perf.Record(procUs)
}

// Dropped returns the number of frames rejected for structural reasons
// (missing fields or unparsable prices) since startup.
func (p *Pipeline) Dropped() uint64 {
	return atomic.LoadUint64(&p.dropped)
}

// b2s converts a []byte to a string without allocating, mirroring the
// teacher's zero-alloc cast. The returned string must not outlive the
// backing frame buffer, which holds for the duration of one registry
// lookup.
//
//go:nosplit
//go:inline
func b2s(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
