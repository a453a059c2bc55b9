// Package logging wraps log/slog with file output, size-based rotation,
// and a process-wide logger the CLI initializes once. Library packages
// that only need a component-scoped logger pull one via
// slog.Default().With("component", ...) instead of importing this package.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LogLevel is the minimum severity a logger emits.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

// Config controls logger construction.
type Config struct {
	Level      LogLevel
	OutputFile string // empty means stdout only
	MaxSize    int64  // bytes before the file is rotated
	MaxBackups int    // rotated files kept
	JSONFormat bool
	AddSource  bool
}

// Logger pairs a *slog.Logger with the file it may own.
type Logger struct {
	slog *slog.Logger
	cfg  Config
	file *os.File
	mu   sync.Mutex
}

var (
	global *Logger
	once   sync.Once
)

// Initialize builds the process-wide logger. Safe to call more than once;
// only the first call takes effect.
func Initialize(cfg Config) error {
	var initErr error
	once.Do(func() {
		l, err := NewLogger(cfg)
		if err != nil {
			initErr = err
			return
		}
		global = l
	})
	return initErr
}

// Get returns the process-wide logger, or nil if Initialize has not run.
func Get() *Logger { return global }

// NewLogger builds a standalone logger from cfg.
func NewLogger(cfg Config) (*Logger, error) {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 10 << 20
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 3
	}

	l := &Logger{cfg: cfg}
	writers := []io.Writer{os.Stdout}

	if cfg.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		if err := l.rotateIfNeeded(); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", cfg.OutputFile, err)
		}
		l.file = f
		writers = append(writers, f)
	}

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource}
	out := io.MultiWriter(writers...)
	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	l.slog = slog.New(handler)
	return l, nil
}

// rotateIfNeeded shifts OutputFile to OutputFile.1 (and .1 to .2, and so
// on up to MaxBackups) once it reaches MaxSize.
func (l *Logger) rotateIfNeeded() error {
	info, err := os.Stat(l.cfg.OutputFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < l.cfg.MaxSize {
		return nil
	}

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	for i := l.cfg.MaxBackups - 1; i >= 1; i-- {
		os.Rename(
			fmt.Sprintf("%s.%d", l.cfg.OutputFile, i),
			fmt.Sprintf("%s.%d", l.cfg.OutputFile, i+1),
		)
	}
	if err := os.Rename(l.cfg.OutputFile, l.cfg.OutputFile+".1"); err != nil {
		return fmt.Errorf("rotate log file: %w", err)
	}
	return nil
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child logger carrying extra attributes. The child shares
// the parent's file handle.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog: l.slog.With(args...),
		cfg:  l.cfg,
		file: l.file,
	}
}

// Close releases the log file, if one is open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Package-level helpers write through the process-wide logger, degrading
// to slog's default when Initialize has not run (early startup, tests).

func Debug(msg string, args ...any) {
	if global != nil {
		global.Debug(msg, args...)
		return
	}
	slog.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	if global != nil {
		global.Info(msg, args...)
		return
	}
	slog.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	if global != nil {
		global.Warn(msg, args...)
		return
	}
	slog.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	if global != nil {
		global.Error(msg, args...)
		return
	}
	slog.Error(msg, args...)
}

// Close closes the process-wide logger's file.
func Close() error {
	if global == nil {
		return nil
	}
	return global.Close()
}

// DefaultConfig is what the CLI starts from: human-readable text with
// source locations in verbose mode, JSON without them otherwise, always
// mirrored to a timestamped file under logs/.
func DefaultConfig(verbose bool) Config {
	level := INFO
	if verbose {
		level = DEBUG
	}
	name := fmt.Sprintf("codegraph_%s.log", time.Now().Format("2006-01-02_15-04-05"))
	return Config{
		Level:      level,
		OutputFile: filepath.Join("logs", name),
		MaxSize:    10 << 20,
		MaxBackups: 3,
		JSONFormat: !verbose,
		AddSource:  verbose,
	}
}
