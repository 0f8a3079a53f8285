// Package diag is the cold-path diagnostics surface: a zero-allocation
// stderr logger for failure/state-change events, plus the single Fatal
// helper every exit path in this program funnels through so every fatal
// exit looks the same on stderr.
//
// Never call Warn/Info/Fatal from the per-message hot path; they exist for
// connection state changes, reconnect backoff, and startup/shutdown only.
package diag

import (
	"os"
)

// Warn writes "prefix: err\n" to stderr without going through fmt, the
// same concatenate-and-write shape the rest of this codebase uses for
// cold-path logging.
func Warn(prefix string, err error) {
	var msg string
	if err != nil {
		msg = prefix + ": " + err.Error() + "\n"
	} else {
		msg = prefix + "\n"
	}
	os.Stderr.WriteString(msg)
}

// Info writes "prefix: message\n" to stderr.
func Info(prefix, message string) {
	os.Stderr.WriteString(prefix + ": " + message + "\n")
}

// Fatal writes a single diagnostic line to stderr and terminates the
// process with code. Every fatal exit path in this program calls this
// instead of os.Exit directly.
func Fatal(code int, msg string) {
	os.Stderr.WriteString("[FATAL] " + msg + "\n")
	os.Exit(code)
}
