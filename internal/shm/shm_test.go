package shm

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"qshmwriter/internal/config"
)

func buildTestFile(t *testing.T, nSources, nSymbols uint64) string {
	t.Helper()

	nRecords := nSources * nSymbols
	total := config.ShmHeaderSize + nRecords*slotSize

	buf := make([]byte, total)
	copy(buf[0:8], config.ShmMagic)
	binary.LittleEndian.PutUint64(buf[8:16], config.ShmVersion)
	binary.LittleEndian.PutUint64(buf[16:24], config.ShmHeaderSize)
	binary.LittleEndian.PutUint64(buf[24:32], config.ShmRecordSize)
	binary.LittleEndian.PutUint64(buf[32:40], config.ShmRecordsOffset)
	binary.LittleEndian.PutUint64(buf[40:48], config.ShmPriceScale)
	binary.LittleEndian.PutUint64(buf[48:56], config.ShmTsScale)
	binary.LittleEndian.PutUint64(buf[56:64], nSources)
	binary.LittleEndian.PutUint64(buf[64:72], nSymbols)
	binary.LittleEndian.PutUint64(buf[72:80], nRecords)
	binary.LittleEndian.PutUint64(buf[80:88], total)

	dir := t.TempDir()
	p := filepath.Join(dir, "quotes_test.dat")
	if err := os.WriteFile(p, buf, 0o644); err != nil {
		t.Fatalf("writing test shm file: %v", err)
	}
	return p
}

func TestOpenValidHeader(t *testing.T) {
	p := buildTestFile(t, 1, 4)
	tbl, err := Open(p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tbl.Close()

	if tbl.NSymbols() != 4 {
		t.Fatalf("NSymbols() = %d, want 4", tbl.NSymbols())
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	p := buildTestFile(t, 1, 2)
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("reading test file: %v", err)
	}
	data[0] = 'X'
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("rewriting test file: %v", err)
	}

	if _, err := Open(p); err == nil {
		t.Fatalf("expected error for corrupted magic")
	}
}

func TestOpenRejectsSizeMismatch(t *testing.T) {
	p := buildTestFile(t, 1, 2)
	f, err := os.OpenFile(p, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("opening test file: %v", err)
	}
	if err := f.Truncate(int64(config.ShmHeaderSize)); err != nil {
		t.Fatalf("truncating test file: %v", err)
	}
	f.Close()

	if _, err := Open(p); err == nil {
		t.Fatalf("expected error for size mismatch")
	}
}

func TestPublishAndRead(t *testing.T) {
	p := buildTestFile(t, 1, 4)
	tbl, err := Open(p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tbl.Close()

	if err := tbl.InitSlot(0, 2); err != nil {
		t.Fatalf("InitSlot: %v", err)
	}
	if err := tbl.Publish(0, 2, 100, 101, 12345); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	idx, err := tbl.slotIndex(0, 2)
	if err != nil {
		t.Fatalf("slotIndex: %v", err)
	}
	s := &tbl.slots[idx]

	seq := atomic.LoadUint64(&s.Seq)
	if seq%2 != 0 {
		t.Fatalf("seq left odd after Publish: %d", seq)
	}
	if s.Bid != 100 || s.Ask != 101 || s.Ts != 12345 {
		t.Fatalf("unexpected slot contents: %+v", s)
	}
	if s.SourceID != 0 || s.SymbolID != 2 {
		t.Fatalf("unexpected identity fields: %+v", s)
	}
}

func TestPublishOutOfRange(t *testing.T) {
	p := buildTestFile(t, 1, 4)
	tbl, err := Open(p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tbl.Close()

	if err := tbl.Publish(0, 4, 1, 2, 3); err != ErrOutOfRange {
		t.Fatalf("Publish(out-of-range symbol_id) = %v, want ErrOutOfRange", err)
	}
	if err := tbl.Publish(1, 0, 1, 2, 3); err != ErrOutOfRange {
		t.Fatalf("Publish(out-of-range source_id) = %v, want ErrOutOfRange", err)
	}
}

func TestPublishSeqAdvancesByTwo(t *testing.T) {
	p := buildTestFile(t, 1, 1)
	tbl, err := Open(p)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tbl.Close()

	idx, _ := tbl.slotIndex(0, 0)
	s := &tbl.slots[idx]

	for i := 0; i < 5; i++ {
		before := atomic.LoadUint64(&s.Seq)
		if err := tbl.Publish(0, 0, int64(i), int64(i), int64(i)); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		after := atomic.LoadUint64(&s.Seq)
		if after != before+2 {
			t.Fatalf("seq advanced by %d, want 2", after-before)
		}
	}
}

func TestClockStrictlyIncreasingPerSlot(t *testing.T) {
	c := NewClock()
	first := c.Next(7)
	second := c.Next(7)
	if second <= first {
		t.Fatalf("second reading %d not greater than first %d", second, first)
	}

	// a different slot has its own independent sequence
	other := c.Next(9)
	if other <= 0 {
		t.Fatalf("unexpected non-positive reading for a fresh slot: %d", other)
	}
}

func TestClockSubstitutesPrevPlusOne(t *testing.T) {
	c := NewClock()
	// pretend the last reading for this slot was far in the future, so the
	// underlying clock cannot have advanced past it
	far := NowMicros() + 1_000_000_000
	c.last[3] = far
	if got := c.Next(3); got != far+1 {
		t.Fatalf("Next = %d, want prev+1 = %d", got, far+1)
	}
}
