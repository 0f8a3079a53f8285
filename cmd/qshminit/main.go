// qshminit creates and zero-fills the shared-memory quote file the writer
// expects at startup: a 4096-byte header matching internal/config's layout
// constants followed by a zeroed record region with a slot row for every
// source id up to the writer's and a slot per registry symbol.
package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"qshmwriter/internal/config"
	"qshmwriter/internal/symbols"
)

func main() {
	reg, err := symbols.LoadRegistry(config.SymbolsTSVPath)
	if err != nil {
		fatal("loading symbol registry: %v", err)
	}

	// n_sources is max source_id + 1, so the writer's configured SourceID
	// addresses a slot row inside the table.
	nSources := config.SourceID + 1
	nSymbols := reg.NSymbols()
	nRecords := nSources * nSymbols
	total := config.ShmRecordsOffset + nRecords*config.ShmRecordSize

	if err := createFile(config.ShmPath, total, nSources, nSymbols, nRecords); err != nil {
		fatal("creating %s: %v", config.ShmPath, err)
	}

	fmt.Printf("qshminit: wrote %s (%d bytes, %d sources x %d symbols = %d records)\n",
		config.ShmPath, total, nSources, nSymbols, nRecords)
}

func createFile(path string, total, nSources, nSymbols, nRecords uint64) error {
	_ = os.Remove(path)

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(int64(total)); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("mmap: %w", err)
	}
	defer m.Unmap()

	writeHeader(m, total, nSources, nSymbols, nRecords)

	if err := m.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

func writeHeader(m mmap.MMap, total, nSources, nSymbols, nRecords uint64) {
	copy(m[0:8], config.ShmMagic)
	binary.LittleEndian.PutUint64(m[8:16], config.ShmVersion)
	binary.LittleEndian.PutUint64(m[16:24], config.ShmHeaderSize)
	binary.LittleEndian.PutUint64(m[24:32], config.ShmRecordSize)
	binary.LittleEndian.PutUint64(m[32:40], config.ShmRecordsOffset)
	binary.LittleEndian.PutUint64(m[40:48], config.ShmPriceScale)
	binary.LittleEndian.PutUint64(m[48:56], config.ShmTsScale)
	binary.LittleEndian.PutUint64(m[56:64], nSources)
	binary.LittleEndian.PutUint64(m[64:72], nSymbols)
	binary.LittleEndian.PutUint64(m[72:80], nRecords)
	binary.LittleEndian.PutUint64(m[80:88], total)
	// the remainder of the 4096-byte header and the entire record region
	// were already zeroed by Truncate; record fields (including seq) start
	// at zero, which is a valid "never published" state.
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "[FATAL] qshminit: "+format+"\n", args...)
	os.Exit(1)
}
