// quotes-writer ingests Binance USDT-M futures bookTicker quotes over
// WebSocket and publishes them into a fixed-layout shared-memory slot
// table for lock-free readers. See internal/config for every tunable and
// fixed path this binary reads.
package main

import (
	"runtime"
	"runtime/debug"
	"strconv"
	"time"

	"qshmwriter/internal/affinity"
	"qshmwriter/internal/config"
	"qshmwriter/internal/diag"
	"qshmwriter/internal/ingest"
	"qshmwriter/internal/lifecycle"
	"qshmwriter/internal/shm"
	"qshmwriter/internal/stats"
	"qshmwriter/internal/symbols"
	"qshmwriter/internal/wsmux"
)

const (
	heapSoftLimit = 128 << 20
	heapHardLimit = 512 << 20
)

func main() {
	debug.SetGCPercent(-1)
	runtime.LockOSThread()

	if err := affinity.Pin(config.CPUCore()); err != nil {
		diag.Warn("affinity: pin failed, continuing unpinned", err)
	}

	registry, err := symbols.LoadRegistry(config.SymbolsTSVPath)
	if err != nil {
		diag.Fatal(config.ExitConfigLoadFailed, err.Error())
	}
	subscribeList, err := symbols.LoadSubscribeList(config.SubscribeFile)
	if err != nil {
		diag.Fatal(config.ExitConfigLoadFailed, err.Error())
	}
	if err := symbols.Validate(subscribeList, registry); err != nil {
		diag.Fatal(config.ExitSubscribeNotInRegistry, err.Error())
	}

	table, err := shm.Open(config.ShmPath)
	if err != nil {
		diag.Fatal(config.ExitShmHeaderInvalid, err.Error())
	}
	defer table.Close()

	if registry.NSymbols() != table.NSymbols() {
		diag.Fatal(config.ExitShmHeaderInvalid, "main: registry n_symbols does not match shm header n_symbols")
	}

	subscribed := symbols.SubscribedIDs(subscribeList, registry)
	for _, symbolID := range subscribed {
		if err := table.InitSlot(config.SourceID, symbolID); err != nil {
			diag.Fatal(config.ExitSlotIndexOutOfRange, err.Error())
		}
	}

	perf := stats.NewPerf()
	pipeline := ingest.New(registry, table, perf, config.SourceID)

	lifecycle.InstallSignalHandler()

	mux := wsmux.New(subscribeList, pipeline.HandleFrame)
	if err := mux.DialInitial(sleepMillis); err != nil {
		diag.Fatal(config.ExitTenConsecutiveFails, err.Error())
	}

	loop, err := wsmux.NewEventLoop()
	if err != nil {
		diag.Fatal(config.ExitInitialConnFatal, err.Error())
	}
	defer loop.Close()

	if err := loop.RegisterAll(mux); err != nil {
		diag.Fatal(config.ExitInitialConnFatal, err.Error())
	}

	stopWatchdog := lifecycle.WatchHeap(lifecycle.HeapLimits{
		Soft: heapSoftLimit,
		Hard: heapHardLimit,
	}, time.Second)
	defer stopWatchdog()

	if err := loop.Run(mux, lifecycle.StopRequested, 1000); err != nil {
		diag.Warn("event loop exited with error", err)
	}

	perf.Report()
	diag.Info("stats", "dropped_frames="+strconv.FormatUint(pipeline.Dropped(), 10))
}

func sleepMillis(ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}
