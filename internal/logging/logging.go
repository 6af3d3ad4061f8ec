package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel represents the severity of a log message
type LogLevel int32

const (
	// LevelDebug is the debug log level
	LevelDebug LogLevel = iota
	// LevelInfo is the info log level
	LevelInfo
	// LevelWarn is the warning log level
	LevelWarn
	// LevelError is the error log level
	LevelError
)

var (
	currentLevel atomic.Int32
	levelOnce    sync.Once

	outputMu   sync.Mutex
	fileWriter *lumberjack.Logger
)

// Options configures log output beyond the level.
type Options struct {
	// Level overrides the environment-derived level when non-empty.
	Level string
	// FilePath enables a rotating log file in addition to stderr.
	FilePath string
	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int
	// MaxBackups is the number of rotated files kept.
	MaxBackups int
	// MaxAgeDays removes rotated files older than this many days (0 keeps all).
	MaxAgeDays int
	// Compress gzips rotated files.
	Compress bool
}

// initLevel initializes the log level from environment variables
func initLevel() {
	levelOnce.Do(func() {
		// DEBUG wins over LOG_LEVEL
		if debug := os.Getenv("DEBUG"); debug != "" {
			switch strings.ToLower(debug) {
			case "1", "true", "yes", "on":
				currentLevel.Store(int32(LevelDebug))
				return
			}
		}

		level, ok := ParseLevel(os.Getenv("LOG_LEVEL"))
		if !ok {
			level = LevelInfo
		}
		currentLevel.Store(int32(level))
	})
}

// ParseLevel converts a level name into a LogLevel. The second return value
// is false for unknown or empty names.
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// GetLevel returns the current log level
func GetLevel() LogLevel {
	initLevel()
	return LogLevel(currentLevel.Load())
}

// SetLevel overrides the current log level.
func SetLevel(level LogLevel) {
	initLevel()
	currentLevel.Store(int32(level))
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return GetLevel() <= LevelDebug
}

// Configure applies level and output options. When FilePath is set, output
// goes to both stderr and a lumberjack-rotated file. Calling Configure again
// closes any previously opened log file.
func Configure(opts Options) error {
	if opts.Level != "" {
		level, ok := ParseLevel(opts.Level)
		if !ok {
			return fmt.Errorf("unknown log level %q", opts.Level)
		}
		SetLevel(level)
	}

	outputMu.Lock()
	defer outputMu.Unlock()

	if fileWriter != nil {
		if err := fileWriter.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		fileWriter = nil
	}

	if opts.FilePath == "" {
		log.SetOutput(os.Stderr)
		return nil
	}

	fileWriter = &lumberjack.Logger{
		Filename:   opts.FilePath,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, fileWriter))
	return nil
}

// Close flushes and closes the rotating log file, if any.
func Close() error {
	outputMu.Lock()
	defer outputMu.Unlock()

	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	log.SetOutput(os.Stderr)
	return err
}

// Debug logs a debug message (only if DEBUG=true or LOG_LEVEL=debug)
func Debug(format string, args ...interface{}) {
	if GetLevel() <= LevelDebug {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	if GetLevel() <= LevelInfo {
		log.Printf("[INFO] "+format, args...)
	}
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	if GetLevel() <= LevelWarn {
		log.Printf("[WARN] "+format, args...)
	}
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	if GetLevel() <= LevelError {
		log.Printf("[ERROR] "+format, args...)
	}
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	log.Fatalf("[FATAL] "+format, args...)
}

// Printf is a pass-through to log.Printf for messages that should always print
func Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// String returns the string representation of a log level
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}
