package wsmux

import (
	"testing"

	"qshmwriter/internal/config"
)

func TestChunkSymbols(t *testing.T) {
	symbols := make([]string, config.MaxSymbolsPerConn+1)
	for i := range symbols {
		symbols[i] = "SYM"
	}

	chunks := ChunkSymbols(symbols)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if len(chunks[0]) != config.MaxSymbolsPerConn {
		t.Fatalf("first chunk has %d symbols, want %d", len(chunks[0]), config.MaxSymbolsPerConn)
	}
	if len(chunks[1]) != 1 {
		t.Fatalf("second chunk has %d symbols, want 1", len(chunks[1]))
	}
}

func TestChunkSymbolsExactLimit(t *testing.T) {
	symbols := make([]string, config.MaxSymbolsPerConn)
	for i := range symbols {
		symbols[i] = "SYM"
	}
	chunks := ChunkSymbols(symbols)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}

func TestChunkSymbolsEmpty(t *testing.T) {
	if chunks := ChunkSymbols(nil); chunks != nil {
		t.Fatalf("expected nil chunks for empty input, got %v", chunks)
	}
}

func TestStreamPath(t *testing.T) {
	got := StreamPath([]string{"BTCUSDT", "ethusdt"})
	want := config.WsPathPrefix + "btcusdt@bookTicker/ethusdt@bookTicker"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
