// Package logging provides categorized file-based logging for taulechat.
// Logs are written to <data dir>/logs/ with a separate file per category.
// When debug mode is off, only Info and above are written; individual
// categories can be silenced through Options.Categories.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot       Category = "boot"       // Startup and wiring
	CategoryStream     Category = "stream"     // Stream orchestration lifecycle
	CategoryProvider   Category = "provider"   // Provider HTTP calls and SSE decode
	CategoryStore      Category = "store"      // Persistence gateway operations
	CategoryAttachment Category = "attachment" // Attachment validation and encoding
	CategoryConfig     Category = "config"     // Config load and overrides
)

// Options controls which logs are written.
type Options struct {
	// DebugMode enables Debug-level lines. Off by default.
	DebugMode bool
	// Categories maps category name -> enabled. Missing entries default to enabled.
	Categories map[string]bool
}

// Logger wraps a standard logger bound to one category file.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	opts      Options
	optsMu    sync.RWMutex
	ready     bool
)

// Initialize sets up the logging directory. Call once at startup with the
// application data directory. Safe to skip in tests; logging becomes a no-op.
func Initialize(dataDir string, o Options) error {
	if dataDir == "" {
		return fmt.Errorf("data dir required")
	}

	optsMu.Lock()
	opts = o
	optsMu.Unlock()

	logsDir = filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	loggersMu.Lock()
	ready = true
	loggersMu.Unlock()

	Boot("=== taulechat logging initialized ===")
	return nil
}

// IsDebugMode reports whether debug-level lines are written.
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.DebugMode
}

func categoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	if opts.Categories == nil {
		return true
	}
	enabled, found := opts.Categories[string(category)]
	if !found {
		return true
	}
	return enabled
}

// Get returns the logger for a category, creating its file on first use.
func Get(category Category) *Logger {
	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	isReady := ready
	loggersMu.RUnlock()

	if !isReady {
		return &Logger{category: category}
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	path := filepath.Join(logsDir, string(category)+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] cannot open %s: %v\n", path, err)
		l := &Logger{category: category}
		loggers[category] = l
		return l
	}

	l := &Logger{
		category: category,
		logger:   log.New(file, "", 0),
		file:     file,
	}
	loggers[category] = l
	return l
}

func (l *Logger) write(level, format string, args ...interface{}) {
	if l == nil || l.logger == nil {
		return
	}
	if !categoryEnabled(l.category) {
		return
	}
	ts := time.Now().Format("2006-01-02 15:04:05.000")
	l.logger.Printf("%s [%s] %s", ts, level, fmt.Sprintf(format, args...))
}

// Debug writes a debug line when debug mode is on.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !IsDebugMode() {
		return
	}
	l.write("DEBUG", format, args...)
}

// Info writes an info line.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write("INFO", format, args...)
}

// Warn writes a warning line.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write("WARN", format, args...)
}

// Error writes an error line.
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("ERROR", format, args...)
}

// CloseAll flushes and closes all category files. Call on shutdown.
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
	ready = false
}

// Category helpers. These keep call sites short: logging.Stream("..."),
// logging.ProviderDebug("...").

func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }

func Stream(format string, args ...interface{})      { Get(CategoryStream).Info(format, args...) }
func StreamDebug(format string, args ...interface{}) { Get(CategoryStream).Debug(format, args...) }
func StreamWarn(format string, args ...interface{})  { Get(CategoryStream).Warn(format, args...) }
func StreamError(format string, args ...interface{}) { Get(CategoryStream).Error(format, args...) }

func Provider(format string, args ...interface{})      { Get(CategoryProvider).Info(format, args...) }
func ProviderDebug(format string, args ...interface{}) { Get(CategoryProvider).Debug(format, args...) }
func ProviderWarn(format string, args ...interface{})  { Get(CategoryProvider).Warn(format, args...) }
func ProviderError(format string, args ...interface{}) { Get(CategoryProvider).Error(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func StoreError(format string, args ...interface{}) { Get(CategoryStore).Error(format, args...) }

func Attachment(format string, args ...interface{})      { Get(CategoryAttachment).Info(format, args...) }
func AttachmentDebug(format string, args ...interface{}) { Get(CategoryAttachment).Debug(format, args...) }
func AttachmentWarn(format string, args ...interface{})  { Get(CategoryAttachment).Warn(format, args...) }

func Config(format string, args ...interface{}) { Get(CategoryConfig).Info(format, args...) }
