package shm

import "time"

// processStart anchors NowMicros to time.Now's monotonic reading rather
// than wall-clock time, so NowMicros is immune to clock steps/NTP slew.
var processStart = time.Now()

// Clock hands out monotonic microsecond timestamps and enforces that,
// for each slot, every value it returns is strictly greater than the last
// one it returned for that same slot. An underlying clock with coarser-than-
// microsecond resolution, or one that returns the same reading twice in a
// row, is the normal case this guards against, not an error condition:
// the writer substitutes prev+1 and carries on.
//
// Clock is only ever touched from the single ingestion thread, so it
// carries no internal locking.
type Clock struct {
	last map[uint64]int64
}

// NewClock returns a Clock with no prior readings recorded.
func NewClock() *Clock {
	return &Clock{last: make(map[uint64]int64)}
}

// NowMicros returns the current monotonic time in microseconds, with no
// per-slot enforcement. Suitable for latency accounting (start-of-message
// timestamps), where strict ordering across calls does not matter.
func NowMicros() int64 {
	return time.Since(processStart).Microseconds()
}

// Next returns a microsecond timestamp strictly greater than the last
// value Next returned for slotIdx, substituting prev+1 when the clock
// hasn't advanced.
func (c *Clock) Next(slotIdx uint64) int64 {
	now := NowMicros()

	prev, seen := c.last[slotIdx]
	if seen && now <= prev {
		now = prev + 1
	}
	c.last[slotIdx] = now
	return now
}
