// Package logger provides the leveled logging used across jbatch.
// Messages are written through the standard `log` package and filtered by a global level.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel is a logging level. Smaller values are more verbose.
type LogLevel int32

const (
	// LevelDebug outputs detailed diagnostic messages.
	LevelDebug LogLevel = iota
	// LevelInfo outputs lifecycle messages.
	LevelInfo
	// LevelWarn outputs recoverable problems.
	LevelWarn
	// LevelError outputs failures.
	LevelError
	// LevelFatal outputs a message and terminates the process.
	LevelFatal
)

// String returns the level name as accepted by SetLogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

var (
	logLevel atomic.Int32
	std      = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)
)

func init() {
	logLevel.Store(int32(LevelInfo))
}

// ParseLevel converts a level name ("DEBUG", "INFO", "WARN", "ERROR", "FATAL") to a LogLevel.
// The comparison is case-insensitive. Unknown names return LevelInfo and false.
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "TRACE":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	}
	return LevelInfo, false
}

// SetLogLevel sets the global log level.
// If an unknown value is given, INFO is used and a warning is written.
func SetLogLevel(level string) {
	lvl, ok := ParseLevel(level)
	if !ok {
		std.Printf("[WARN] Unknown log level '%s' specified. Defaulting to INFO level.", level)
	}
	logLevel.Store(int32(lvl))
}

// GetLogLevel returns the current global log level.
func GetLogLevel() LogLevel {
	return LogLevel(logLevel.Load())
}

// SetOutput redirects all log output to w.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// IsDebugEnabled reports whether DEBUG messages are written.
func IsDebugEnabled() bool {
	return GetLogLevel() <= LevelDebug
}

func logf(level LogLevel, format string, v ...interface{}) {
	if GetLogLevel() <= level {
		std.Printf("["+level.String()+"] "+format, v...)
	}
}

// Debugf writes a DEBUG message.
func Debugf(format string, v ...interface{}) {
	logf(LevelDebug, format, v...)
}

// Infof writes an INFO message.
func Infof(format string, v ...interface{}) {
	logf(LevelInfo, format, v...)
}

// Warnf writes a WARN message.
func Warnf(format string, v ...interface{}) {
	logf(LevelWarn, format, v...)
}

// Errorf writes an ERROR message.
func Errorf(format string, v ...interface{}) {
	logf(LevelError, format, v...)
}

// Fatalf writes a FATAL message and exits the process with status 1.
func Fatalf(format string, v ...interface{}) {
	std.Fatalf("[FATAL] "+format, v...)
}
