package main

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"qshmwriter/internal/config"
)

func TestCreateFileWritesValidHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quotes_test.dat")

	nSources, nSymbols := uint64(1), uint64(4)
	nRecords := nSources * nSymbols
	total := config.ShmRecordsOffset + nRecords*config.ShmRecordSize

	if err := createFile(path, total, nSources, nSymbols, nRecords); err != nil {
		t.Fatalf("createFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading created file: %v", err)
	}
	if uint64(len(data)) != total {
		t.Fatalf("file size = %d, want %d", len(data), total)
	}
	if string(data[0:8]) != config.ShmMagic {
		t.Fatalf("magic = %q, want %q", data[0:8], config.ShmMagic)
	}
	if got := binary.LittleEndian.Uint64(data[56:64]); got != nSources {
		t.Fatalf("n_sources = %d, want %d", got, nSources)
	}
	if got := binary.LittleEndian.Uint64(data[64:72]); got != nSymbols {
		t.Fatalf("n_symbols = %d, want %d", got, nSymbols)
	}

	recordsStart := config.ShmRecordsOffset
	for _, b := range data[recordsStart:] {
		if b != 0 {
			t.Fatalf("record region is not zero-filled")
		}
	}
}
