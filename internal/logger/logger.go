package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
)

// Options configures the global logger.
type Options struct {
	Level  slog.Level // Level is the minimum level written
	Output io.Writer  // Output defaults to stderr when nil
}

// Init initializes the global logger with default options.
// Only the first call to Init or InitWith takes effect.
func Init() {
	InitWith(Options{Level: slog.LevelInfo})
}

// InitWith initializes the global logger with the given options.
func InitWith(opts Options) {
	once.Do(func() {
		out := opts.Output
		if out == nil {
			out = os.Stderr
		}

		defaultLogger = slog.New(NewHandler(out, opts.Level))
		slog.SetDefault(defaultLogger)
	})
}

// ParseLevel maps a level name (debug, info, warn, error) to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug", "dbg":
		return slog.LevelDebug, nil
	case "", "info", "inf":
		return slog.LevelInfo, nil
	case "warn", "warning", "wrn":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// Handler is a slog handler writing one line per record with millisecond timestamps.
type Handler struct {
	out   io.Writer
	mu    *sync.Mutex
	level slog.Level
	attrs []slog.Attr
}

// NewHandler creates a handler writing records at or above level to out.
func NewHandler(out io.Writer, level slog.Level) *Handler {
	return &Handler{out: out, mu: &sync.Mutex{}, level: level}
}

// Enabled reports whether records at the given level are written.
func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level
}

// Handle formats and writes a log record.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	// Format: 2024-01-15 14:30:45.123 [INF] message key=value
	ts := r.Time.Format("2006-01-02 15:04:05.000")
	level := levelString(r.Level)

	h.mu.Lock()
	defer h.mu.Unlock()

	fmt.Fprintf(h.out, "%s [%s] %s", ts, level, r.Message)

	for _, a := range h.attrs {
		fmt.Fprintf(h.out, " %s=%v", a.Key, a.Value)
	}

	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.out, " %s=%v", a.Key, a.Value)
		return true
	})

	fmt.Fprintln(h.out)

	return nil
}

// WithAttrs returns a handler that prefixes every record with attrs.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	return &Handler{out: h.out, mu: h.mu, level: h.level, attrs: merged}
}

// WithGroup returns the handler unchanged; groups are flattened.
func (h *Handler) WithGroup(name string) slog.Handler {
	return h
}

// levelString returns a short string for the log level.
func levelString(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DBG"
	case l < slog.LevelWarn:
		return "INF"
	case l < slog.LevelError:
		return "WRN"
	default:
		return "ERR"
	}
}

// Info logs at INFO level.
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// Warn logs at WARN level.
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error logs at ERROR level.
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return slog.Default().With(args...)
}

// Timed returns elapsed time since start for logging duration.
func Timed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}
