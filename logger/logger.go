package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// Format represents the log format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Logger represents a logger instance
type Logger struct {
	*slog.Logger
	handler handlerSwap
	mu      sync.Mutex
	writers []io.Writer
	level   slog.Level
	format  Format
}

// New creates a new logger
func New(level slog.Level, format Format, writers ...io.Writer) *Logger {
	l := &Logger{
		writers: writers,
		level:   level,
		format:  format,
	}
	l.Logger = slog.New(&l.handler)
	l.rebuild()
	return l
}

// rebuild swaps in a handler for the current writers, level and format.
// l.Logger keeps its identity, so a *slog.Logger handed out earlier follows
// the change. Callers other than New must hold l.mu.
func (l *Logger) rebuild() {
	out := io.MultiWriter(l.writers...)
	opts := &slog.HandlerOptions{Level: l.level}
	var handler slog.Handler
	if l.format == FormatJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	l.handler.current.Store(&handler)
}

// handlerSwap forwards to the handler most recently stored by rebuild.
// Loggers derived with With or WithGroup keep the handler current at the
// time they were derived.
type handlerSwap struct {
	current atomic.Pointer[slog.Handler]
}

func (h *handlerSwap) load() slog.Handler {
	return *h.current.Load()
}

func (h *handlerSwap) Enabled(ctx context.Context, level slog.Level) bool {
	return h.load().Enabled(ctx, level)
}

func (h *handlerSwap) Handle(ctx context.Context, record slog.Record) error {
	return h.load().Handle(ctx, record)
}

func (h *handlerSwap) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.load().WithAttrs(attrs)
}

func (h *handlerSwap) WithGroup(name string) slog.Handler {
	return h.load().WithGroup(name)
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level slog.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.rebuild()
}

// AddOutput adds a new output destination
func (l *Logger) AddOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writers = append(l.writers, w)
	l.rebuild()
}

// SetFormat changes the log format
func (l *Logger) SetFormat(format Format) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.format = format
	l.rebuild()
}

// Rotate closes the current log file and continues writing to path.
func (l *Logger) Rotate(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := make([]io.Writer, 0, len(l.writers)+1)
	for _, writer := range l.writers {
		if file, ok := writer.(*os.File); ok && !isConsole(file) {
			file.Close()
			continue
		}
		kept = append(kept, writer)
	}

	file, err := openLogFile(path)
	if err != nil {
		return err
	}
	l.writers = append(kept, file)
	l.rebuild()
	return nil
}

// Close closes all file writers
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, writer := range l.writers {
		if file, ok := writer.(*os.File); ok && !isConsole(file) {
			if err := file.Close(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Level returns the current log level
func (l *Logger) Level() slog.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func isConsole(f *os.File) bool {
	return f == os.Stdout || f == os.Stderr
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

// Init replaces the default logger. Logs always go to stderr, so stdout stays
// free for protocol traffic and command output; each non-empty path adds a file.
func Init(level slog.Level, format Format, paths ...string) error {
	writers := []io.Writer{os.Stderr}
	for _, path := range paths {
		if path == "" {
			continue
		}
		file, err := openLogFile(path)
		if err != nil {
			return err
		}
		writers = append(writers, file)
	}

	defaultLogger.Store(New(level, format, writers...))
	return nil
}

// GetLevelFromString returns the log level from a string
func GetLevelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// defaultLogger is swapped by Init while handlers may be logging.
var defaultLogger atomic.Pointer[Logger]

func init() {
	defaultLogger.Store(New(slog.LevelInfo, FormatText, os.Stderr))
}

// Default returns the logger behind the package-level helpers.
func Default() *Logger {
	return defaultLogger.Load()
}

// Helper functions for common logging patterns
func Debug(msg string, args ...any) {
	Default().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Default().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Default().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Default().Error(msg, args...)
}

func DebugContext(ctx context.Context, msg string, args ...any) {
	Default().DebugContext(ctx, msg, args...)
}

func InfoContext(ctx context.Context, msg string, args ...any) {
	Default().InfoContext(ctx, msg, args...)
}

func WarnContext(ctx context.Context, msg string, args ...any) {
	Default().WarnContext(ctx, msg, args...)
}

func ErrorContext(ctx context.Context, msg string, args ...any) {
	Default().ErrorContext(ctx, msg, args...)
}
