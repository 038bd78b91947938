// Package logging builds the slog loggers the engine and its front
// ends share.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns the application logger at the given level. Output goes to
// Stderr so logs never interleave with the chat REPL or the MCP
// JSON-RPC stream on Stdout. Keys follow the module's conventions:
// "err" for errors, "session_id" and "flow" for correlation.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: normalizeKeys,
	}))
}

// NewNop returns a logger that discards everything. Constructors use it
// as the default so call sites never nil-check.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// normalizeKeys maps the spellings slog callers drift into onto the
// module's canonical attribute keys.
func normalizeKeys(groups []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case "error":
		a.Key = "err"
	case "sessionID", "session":
		a.Key = "session_id"
	}
	return a
}
