// Package config holds the compile-time-resolvable tunables for the quote
// writer: fixed filesystem paths, wire-protocol limits, and the one
// environment variable this program reads itself (CPU_CORE) rather than
// leaving to an external launcher.
//
// This mirrors the teacher's flat constants package rather than a
// YAML/flag-driven configuration object: every value here is either a
// protocol constant (record layout, chunk size, backoff schedule) or a
// path the deployment fixes once and does not vary per run.
package config

import (
	"os"
	"strconv"
)

// Filesystem paths.
const (
	ShmPath        = "/dev/shm/quotes_v1.dat"
	SymbolsTSVPath = "/root/siro/dictionaries/configs/symbols.tsv"
	SubscribeFile  = "/root/siro/dictionaries/subscribe/binance/binance_futures.txt"
)

// SourceID identifies this writer process among the set of possible feed
// sources sharing the same slot table. Constant for now: one source.
const SourceID uint64 = 1

// Shared-memory header layout constants.
const (
	ShmMagic         = "QSHM1\x00\x00\x00"
	ShmVersion       = 1
	ShmHeaderSize    = 4096
	ShmRecordSize    = 64
	ShmRecordsOffset = 4096
	ShmPriceScale    = 100_000_000 // 10^8
	ShmTsScale       = 1_000_000   // 10^6, microseconds
)

// Upstream wire protocol.
const (
	WsHost            = "fstream.binance.com"
	WsPathPrefix      = "/stream?streams="
	StreamSuffix      = "@bookTicker"
	MaxSymbolsPerConn = 512

	// ConnectionSpacingMillis is the delay between opening successive
	// connections at startup, so as not to burst the upstream.
	ConnectionSpacingMillis = 1000
)

// Reconnect / backoff policy: delay before each consecutive retry, capped
// at MaxBackoffMillis once the schedule runs out.
var BackoffScheduleMillis = [...]int{200, 500, 1000, 2000, 5000, 10000}

const (
	MaxBackoffMillis       = 30000
	MaxConsecutiveFailures = 10
)

// SlowMessageThresholdMicros is the per-message processing latency past
// which a message counts toward the slow-message tally reported at exit.
const SlowMessageThresholdMicros = 5000

// Process exit codes. ExitConfigLoadFailed covers a registry or
// subscribe-list file that cannot be read or parsed at all, a distinct
// failure from a well-formed registry that merely lacks a subscribed
// name (ExitSubscribeNotInRegistry).
const (
	ExitClean                  = 0
	ExitShmHeaderInvalid       = 1
	ExitInitialConnFatal       = 2
	ExitTenConsecutiveFails    = 3
	ExitUnknownSymbol          = 10
	ExitSlotIndexOutOfRange    = 11
	ExitSubscribeNotInRegistry = 20
	ExitConfigLoadFailed       = 21
)

// CPUCoreEnvVar names the environment variable this process reads to learn
// which CPU to pin its worker thread to. All other CLI/env parsing is left
// to whatever launches this binary.
const CPUCoreEnvVar = "CPU_CORE"

// CPUCore returns the CPU to pin the worker thread to, defaulting to 0
// when CPU_CORE is unset or unparsable.
func CPUCore() int {
	v := os.Getenv(CPUCoreEnvVar)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
