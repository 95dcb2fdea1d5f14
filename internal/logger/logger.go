// Package logger is the process-wide log for sercha-sync.
//
// Debug, Info, Warn and Section lines only appear in verbose mode (the
// --verbose flag or log.verbose). Error lines always appear. Output goes to
// stderr unless SetFile routes it to a rotating log file, in which case
// every line is prefixed with an RFC3339 timestamp.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type level string

const (
	levelDebug level = "DEBUG"
	levelInfo  level = "INFO"
	levelWarn  level = "WARN"
	levelError level = "ERROR"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
	stamp   bool
	rotator *lumberjack.Logger
)

func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	mu.Unlock()
}

func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput writes plain, unstamped lines to w, closing any log file.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	_ = detach()
	output, stamp = w, false
}

// SetFile writes timestamped lines to path. The file is rotated at
// maxSizeMB and at most maxBackups compressed copies are kept.
func SetFile(path string, maxSizeMB, maxBackups int) {
	mu.Lock()
	defer mu.Unlock()
	_ = detach()
	rotator = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		Compress:   true,
	}
	output, stamp = rotator, true
}

// Close closes the log file, if any, and goes back to stderr.
// Calling it twice is harmless.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	err := detach()
	output, stamp = os.Stderr, false
	return err
}

// detach closes the rotator. mu must be held.
func detach() error {
	if rotator == nil {
		return nil
	}
	r := rotator
	rotator = nil
	return r.Close()
}

func emit(lvl level, format string, args []any) {
	mu.Lock()
	defer mu.Unlock()
	if lvl != levelError && !verbose {
		return
	}
	line := fmt.Sprintf("[%s] %s\n", lvl, fmt.Sprintf(format, args...))
	if stamp {
		line = time.Now().Format(time.RFC3339) + " " + line
	}
	_, _ = io.WriteString(output, line)
}

func Debug(format string, args ...any) { emit(levelDebug, format, args) }
func Info(format string, args ...any)  { emit(levelInfo, format, args) }
func Warn(format string, args ...any)  { emit(levelWarn, format, args) }

// Error is printed even when verbose mode is off.
func Error(format string, args ...any) { emit(levelError, format, args) }

// Section prints a "=== name ===" banner in verbose mode.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}
