package copilot

import (
	"io"
	"log/slog"
)

// testLogger returns a logger that discards output, keeping test runs quiet
// while still exercising every slog call site.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
