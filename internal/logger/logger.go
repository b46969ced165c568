// Package logger provides structured logging for ragchat
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog with ragchat-specific helpers
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // console output instead of JSON
	Output     io.Writer
	File       string // when set and Output is nil, logs are appended to this file
	WithCaller bool
}

// New creates a new structured logger. The returned closer releases the log
// file when one was opened; it is a no-op otherwise.
func New(cfg Config) (*Logger, func() error, error) {
	closer := func() error { return nil }
	output := cfg.Output
	if output == nil && cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		output = f
		closer = f.Close
	}
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.File != "",
		}
	}

	zlog := zerolog.New(output).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Str("service", "ragchat").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}
	return &Logger{zlog: zlog}, closer, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged with the component name
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// With returns a child logger carrying an extra string field
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(key, value).Logger()}
}

// Debug starts a debug event
func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }

// Info starts an info event
func (l *Logger) Info() *zerolog.Event { return l.zlog.Info() }

// Warn starts a warning event
func (l *Logger) Warn() *zerolog.Event { return l.zlog.Warn() }

// Error starts an error event
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// LogTask logs the outcome of one background task. Successes are debug
// events; failures are warnings.
func (l *Logger) LogTask(name, taskID string, duration time.Duration, err error) {
	event := l.zlog.Debug()
	if err != nil {
		event = l.zlog.Warn().Err(err)
	}
	event.
		Str("task", name).
		Str("task_id", taskID).
		Dur("duration_ms", duration).
		Msg("task finished")
}
