// Package logger provides leveled logging for mnemo.
// Errors are always written; debug, info and warning messages only when
// verbose mode is enabled via the --verbose flag. Components obtain a
// named logger so ingestion and retrieval output can be told apart.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Logger writes messages tagged with a component name.
type Logger struct {
	name string
}

// Named returns a logger whose messages carry the component name.
func Named(name string) *Logger {
	return &Logger{name: name}
}

// write holds the exclusive lock so concurrent lines do not interleave.
func (l *Logger) write(level, format string, args []any, always bool) {
	mu.Lock()
	defer mu.Unlock()
	if !always && !verbose {
		return
	}
	prefix := "[" + level + "] "
	if l != nil && l.name != "" {
		prefix += l.name + ": "
	}
	fmt.Fprintf(output, prefix+format+"\n", args...)
}

// Debug prints a message if verbose mode is enabled.
func (l *Logger) Debug(format string, args ...any) { l.write("DEBUG", format, args, false) }

// Info prints an informational message if verbose mode is enabled.
func (l *Logger) Info(format string, args ...any) { l.write("INFO", format, args, false) }

// Warn prints a warning if verbose mode is enabled.
func (l *Logger) Warn(format string, args ...any) { l.write("WARN", format, args, false) }

// Error prints an error regardless of verbose mode.
func (l *Logger) Error(format string, args ...any) { l.write("ERROR", format, args, true) }

var root = &Logger{}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) { root.Debug(format, args...) }

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) { root.Info(format, args...) }

// Warn prints a warning message if verbose mode is enabled.
func Warn(format string, args ...any) { root.Warn(format, args...) }

// Error prints an error message regardless of verbose mode.
func Error(format string, args ...any) { root.Error(format, args...) }

// Section prints a section header if verbose mode is enabled.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
