// Package logging provides scoped loggers shared by every component.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// LevelSilent disables all output
const LevelSilent = "silent"

// EnvLevel overrides the configured level when set
const EnvLevel = "READIUM_LOG_LEVEL"

var (
	mu   sync.RWMutex
	root = log.NewWithOptions(io.Discard, log.Options{ReportTimestamp: true})
)

// Setup configures the root logger. An empty or unknown level falls back to
// silent. Loggers obtained from For before Setup keep the old settings.
func Setup(level string, w io.Writer) error {
	if env := os.Getenv(EnvLevel); env != "" {
		level = env
	}
	level = strings.ToLower(strings.TrimSpace(level))

	mu.Lock()
	defer mu.Unlock()

	if level == "" || level == LevelSilent {
		root.SetOutput(io.Discard)
		return nil
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		root.SetOutput(io.Discard)
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	root.SetOutput(w)
	root.SetLevel(lvl)
	return nil
}

// For returns a logger prefixed with scope
func For(scope string) *log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.WithPrefix(scope)
}

// OpenFile opens the append-only log file used while the TUI owns the terminal
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
}
