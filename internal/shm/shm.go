// Package shm maps the quote slot table and implements the seqlock
// publication protocol readers rely on to observe a consistent snapshot of
// a slot without ever blocking the writer.
//
// The file is mapped with github.com/edsrzf/mmap-go rather than a direct
// syscall.Mmap, matching how the retrieval pack's other shared-memory
// producers map a fixed-header/record-array file.
package shm

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/edsrzf/mmap-go"

	"qshmwriter/internal/config"
)

// Header holds the fields stored at the start of the 4096-byte header
// region (the first 88 bytes; the rest of the region is unused). Every
// field is a little-endian uint64 except Magic.
type Header struct {
	Magic         [8]byte
	Version       uint64
	HeaderSize    uint64
	RecordSize    uint64
	RecordsOffset uint64
	PriceScale    uint64
	TsScale       uint64
	NSources      uint64
	NSymbols      uint64
	NRecords      uint64
	ShmTotalSize  uint64
}

// Slot is a single 64-byte cache-line-aligned quote record. Seq must be the
// first field and accessed only through sync/atomic so the seqlock
// protocol's acquire/release ordering holds.
type Slot struct {
	Seq      uint64
	SourceID uint64
	SymbolID uint64
	Bid      int64
	Ask      int64
	Ts       int64
	_res0    uint64
	_res1    uint64
}

const slotSize = 64

// Table owns the mapping and exposes bounds-checked slot access and the
// publish() primitive. Opened once at startup, used from a single thread
// for the lifetime of the process.
type Table struct {
	file     *os.File
	mm       mmap.MMap
	slots    []Slot
	nSources uint64
	nSymbols uint64
}

func init() {
	var s Slot
	if unsafe.Sizeof(s) != slotSize {
		panic(fmt.Sprintf("shm: Slot size is %d, want %d", unsafe.Sizeof(s), slotSize))
	}
}

// Open maps path read/write shared and validates its header against the
// constants this writer was built with. Any mismatch is a fatal
// misconfiguration between this binary and whatever created the file.
func Open(path string) (*Table, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: stat %s: %w", path, err)
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	hdr, err := parseHeader(m)
	if err != nil {
		m.Unmap()
		f.Close()
		return nil, err
	}

	if err := validateHeader(hdr, info.Size()); err != nil {
		m.Unmap()
		f.Close()
		return nil, err
	}

	recordsBytes := m[hdr.RecordsOffset:]
	nRecords := int(hdr.NRecords)
	if nRecords == 0 {
		m.Unmap()
		f.Close()
		return nil, fmt.Errorf("shm: header declares zero records")
	}
	if len(recordsBytes) < nRecords*slotSize {
		m.Unmap()
		f.Close()
		return nil, fmt.Errorf("shm: records region too small: have %d bytes, need %d", len(recordsBytes), nRecords*slotSize)
	}
	slots := unsafe.Slice((*Slot)(unsafe.Pointer(&recordsBytes[0])), nRecords)

	return &Table{
		file:     f,
		mm:       m,
		slots:    slots,
		nSources: hdr.NSources,
		nSymbols: hdr.NSymbols,
	}, nil
}

// Close flushes and releases the mapping.
func (t *Table) Close() error {
	if err := t.mm.Flush(); err != nil {
		t.mm.Unmap()
		t.file.Close()
		return fmt.Errorf("shm: flush: %w", err)
	}
	if err := t.mm.Unmap(); err != nil {
		t.file.Close()
		return fmt.Errorf("shm: unmap: %w", err)
	}
	return t.file.Close()
}

func parseHeader(m mmap.MMap) (Header, error) {
	if len(m) < int(config.ShmHeaderSize) {
		return Header{}, fmt.Errorf("shm: file too small for header: %d bytes", len(m))
	}
	var h Header
	copy(h.Magic[:], m[0:8])
	h.Version = binary.LittleEndian.Uint64(m[8:16])
	h.HeaderSize = binary.LittleEndian.Uint64(m[16:24])
	h.RecordSize = binary.LittleEndian.Uint64(m[24:32])
	h.RecordsOffset = binary.LittleEndian.Uint64(m[32:40])
	h.PriceScale = binary.LittleEndian.Uint64(m[40:48])
	h.TsScale = binary.LittleEndian.Uint64(m[48:56])
	h.NSources = binary.LittleEndian.Uint64(m[56:64])
	h.NSymbols = binary.LittleEndian.Uint64(m[64:72])
	h.NRecords = binary.LittleEndian.Uint64(m[72:80])
	h.ShmTotalSize = binary.LittleEndian.Uint64(m[80:88])
	return h, nil
}

func validateHeader(h Header, fileSize int64) error {
	if string(h.Magic[:]) != config.ShmMagic {
		return fmt.Errorf("shm: bad magic %q", h.Magic)
	}
	if h.Version != config.ShmVersion {
		return fmt.Errorf("shm: version = %d, want %d", h.Version, config.ShmVersion)
	}
	if h.HeaderSize != config.ShmHeaderSize {
		return fmt.Errorf("shm: header_size = %d, want %d", h.HeaderSize, config.ShmHeaderSize)
	}
	if h.RecordSize != config.ShmRecordSize {
		return fmt.Errorf("shm: record_size = %d, want %d", h.RecordSize, config.ShmRecordSize)
	}
	if h.RecordsOffset != config.ShmRecordsOffset {
		return fmt.Errorf("shm: records_offset = %d, want %d", h.RecordsOffset, config.ShmRecordsOffset)
	}
	if h.PriceScale != config.ShmPriceScale {
		return fmt.Errorf("shm: price_scale = %d, want %d", h.PriceScale, config.ShmPriceScale)
	}
	if h.TsScale != config.ShmTsScale {
		return fmt.Errorf("shm: ts_scale = %d, want %d", h.TsScale, config.ShmTsScale)
	}
	if h.ShmTotalSize != uint64(fileSize) {
		return fmt.Errorf("shm: shm_total_size = %d, file is %d bytes", h.ShmTotalSize, fileSize)
	}
	if h.NRecords != h.NSources*h.NSymbols {
		return fmt.Errorf("shm: n_records = %d, want n_sources*n_symbols = %d", h.NRecords, h.NSources*h.NSymbols)
	}
	return nil
}

// NSymbols returns the header's n_symbols, for cross-checking against the
// symbol registry loaded separately.
func (t *Table) NSymbols() uint64 { return t.nSymbols }

// ErrOutOfRange is returned by Publish when the addressed slot would fall
// outside the mapped records region.
var ErrOutOfRange = fmt.Errorf("shm: slot index out of range")

func (t *Table) slotIndex(sourceID, symbolID uint64) (int, error) {
	if sourceID >= t.nSources || symbolID >= t.nSymbols {
		return 0, ErrOutOfRange
	}
	idx := sourceID*t.nSymbols + symbolID
	if idx >= uint64(len(t.slots)) {
		return 0, ErrOutOfRange
	}
	return int(idx), nil
}

// InitSlot zeroes a slot's data fields and stamps its identity, run once
// per addressed (sourceID, symbolID) before the first Publish.
func (t *Table) InitSlot(sourceID, symbolID uint64) error {
	idx, err := t.slotIndex(sourceID, symbolID)
	if err != nil {
		return err
	}
	s := &t.slots[idx]
	atomic.StoreUint64(&s.Seq, 0)
	s.SourceID = sourceID
	s.SymbolID = symbolID
	s.Bid = 0
	s.Ask = 0
	s.Ts = 0
	return nil
}

// Read returns the current (bid, ask, ts, seq) contents of the slot
// addressed by (sourceID, symbolID), without the seqlock retry a
// concurrent external reader would need. This writer process never reads
// its own slots in production; Read exists for tests.
func (t *Table) Read(sourceID, symbolID uint64) (bid, ask, ts int64, seq uint64, err error) {
	idx, err := t.slotIndex(sourceID, symbolID)
	if err != nil {
		return 0, 0, 0, 0, err
	}
	s := &t.slots[idx]
	return s.Bid, s.Ask, s.Ts, atomic.LoadUint64(&s.Seq), nil
}

// Publish writes a new (bid, ask, ts) snapshot into the slot addressed by
// (sourceID, symbolID) using the seqlock write protocol: bump Seq to odd,
// write the fields, bump Seq to even. A reader that observes an even Seq
// both before and after reading the fields has a consistent snapshot.
func (t *Table) Publish(sourceID, symbolID uint64, bid, ask, ts int64) error {
	idx, err := t.slotIndex(sourceID, symbolID)
	if err != nil {
		return err
	}
	s := &t.slots[idx]

	seq0 := atomic.LoadUint64(&s.Seq)
	atomic.StoreUint64(&s.Seq, seq0+1)

	s.SourceID = sourceID
	s.SymbolID = symbolID
	s.Bid = bid
	s.Ask = ask
	s.Ts = ts

	atomic.StoreUint64(&s.Seq, seq0+2)
	return nil
}
