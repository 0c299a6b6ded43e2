// Package logging provides the structured logger shared by the medtracker
// packages. Callers depend on the small Logger interface; the zerolog adapter
// is wired in by the binary.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is the structured logging surface used throughout the module. Args
// are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Noop discards every message.
type Noop struct{}

func (Noop) Debug(string, ...any) {}
func (Noop) Info(string, ...any)  {}
func (Noop) Warn(string, ...any)  {}
func (Noop) Error(string, ...any) {}

// Zerolog adapts a zerolog.Logger to Logger.
type Zerolog struct {
	z zerolog.Logger
}

// NewZerolog wraps an existing zerolog logger.
func NewZerolog(z zerolog.Logger) *Zerolog { return &Zerolog{z: z} }

// New builds a zerolog-backed logger writing to w. format is "json" or
// "console"; level is any zerolog level name and defaults to info.
func New(level, format string, w io.Writer) (*Zerolog, error) {
	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}
	switch strings.ToLower(format) {
	case "", "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w}
	default:
		return nil, fmt.Errorf("log format %q: want json or console", format)
	}
	z := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &Zerolog{z: z}, nil
}

// Zerolog exposes the underlying logger for libraries that take one directly.
func (l *Zerolog) Zerolog() zerolog.Logger { return l.z }

func (l *Zerolog) Debug(msg string, args ...any) { emit(l.z.Debug(), msg, args) }
func (l *Zerolog) Info(msg string, args ...any)  { emit(l.z.Info(), msg, args) }
func (l *Zerolog) Warn(msg string, args ...any)  { emit(l.z.Warn(), msg, args) }
func (l *Zerolog) Error(msg string, args ...any) { emit(l.z.Error(), msg, args) }

func emit(evt *zerolog.Event, msg string, args []any) {
	if evt == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		if i+1 >= len(args) {
			evt = evt.Str("!BADKEY", key)
			break
		}
		if err, isErr := args[i+1].(error); isErr && key == "error" {
			evt = evt.Err(err)
			continue
		}
		evt = evt.Interface(key, args[i+1])
	}
	evt.Msg(msg)
}
