package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/maloquacious/updatestore/internal/config"
)

// Logger defines the update store logging contract.
// Arguments after msg are slog-style key/value pairs.
// Implementations must be safe for concurrent use.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// SlogLogger adapts a *slog.Logger to the Logger contract.
type SlogLogger struct {
	logger *slog.Logger
}

// New creates a SlogLogger from the logging section of the configuration.
// Every record carries the service name and the application version.
func New(cfg config.LoggingConfig, version string) *SlogLogger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	default:
		output = os.Stderr
	}
	return NewWithWriter(output, cfg, version)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *SlogLogger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "updatestore"),
		slog.String("version", version),
	})

	return &SlogLogger{logger: slog.New(handler)}
}

// parseLevel defaults to info when the level is not recognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *SlogLogger) Info(msg string, args ...any) {
	l.logger.Info(msg, args...)
}

func (l *SlogLogger) Warn(msg string, args ...any) {
	l.logger.Warn(msg, args...)
}

func (l *SlogLogger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

func (l *SlogLogger) Debug(msg string, args ...any) {
	l.logger.Debug(msg, args...)
}

// With returns a logger that adds the given key/value pairs to every record.
func (l *SlogLogger) With(args ...any) *SlogLogger {
	return &SlogLogger{logger: l.logger.With(args...)}
}

// Discard drops everything. Useful in tests.
var Discard Logger = &SlogLogger{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

// Default provides a global default logger used before configuration is loaded.
var Default Logger = New(config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"}, "dev")
