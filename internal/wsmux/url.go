package wsmux

import (
	"strings"

	"qshmwriter/internal/config"
)

// ChunkSymbols splits symbols into groups of at most config.MaxSymbolsPerConn,
// preserving order. Each group becomes one upstream connection.
func ChunkSymbols(symbols []string) [][]string {
	if len(symbols) == 0 {
		return nil
	}
	var chunks [][]string
	for i := 0; i < len(symbols); i += config.MaxSymbolsPerConn {
		end := i + config.MaxSymbolsPerConn
		if end > len(symbols) {
			end = len(symbols)
		}
		chunks = append(chunks, symbols[i:end])
	}
	return chunks
}

// StreamPath builds the combined-stream request path for a chunk of
// symbols, e.g. "/stream?streams=btcusdt@bookTicker/ethusdt@bookTicker".
func StreamPath(symbols []string) string {
	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = strings.ToLower(s) + config.StreamSuffix
	}
	return config.WsPathPrefix + strings.Join(streams, "/")
}
