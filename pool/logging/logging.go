// Package logging provides the structured logger shared by the pool
// engine's background actors. It wraps log/slog the same way
// mcpany-core/server/pkg/logging wraps it: a package-level handle,
// lazily defaulted, explicitly (re)initializable.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	mu     sync.Mutex
	once   sync.Once
	logger *slog.Logger
)

// Init configures the package-level logger at the given level, writing
// JSON lines to w. Only the first call takes effect; subsequent calls
// are a no-op, matching mcpany-core/server/pkg/logging's Init.
func Init(level slog.Level, w io.Writer) {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	})
}

// GetLogger returns the package-level logger, defaulting to an
// slog.LevelInfo JSON logger on stderr if Init was never called.
func GetLogger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return logger
}

// ForTestsOnlyResetLogger drops the package-level logger and the Init
// once-guard so the next GetLogger/Init call starts clean. Tests must
// call this between cases that assert on captured output.
func ForTestsOnlyResetLogger() {
	mu.Lock()
	defer mu.Unlock()
	logger = nil
	once = sync.Once{}
}
