package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Level orders log severities; messages below the logger's level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps LOG_LEVEL values to a Level. Unknown values mean info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (lv Level) zerolog() zerolog.Level {
	switch lv {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Logger provides leveled, colourised printf-style logging throughout the
// application on top of zerolog's console writer.
type Logger struct {
	prefix string
	out    zerolog.Logger
	err    zerolog.Logger
}

// NewLogger creates a Logger writing info/warn/debug to stdout and errors to stderr.
func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, os.Stderr, LevelInfo)
}

// NewLoggerTo creates a Logger on the given writers with a minimum level.
func NewLoggerTo(out, errOut io.Writer, level Level) *Logger {
	l := &Logger{out: console(out), err: console(errOut)}
	l.SetLevel(level)
	return l
}

func console(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02 15:04:05"}).
		With().Timestamp().Logger()
}

// SetLevel changes the minimum level.
func (l *Logger) SetLevel(level Level) {
	l.out = l.out.Level(level.zerolog())
	l.err = l.err.Level(level.zerolog())
}

// With returns a logger sharing the same outputs whose messages carry a
// "[component]" prefix.
func (l *Logger) With(component string) *Logger {
	child := *l
	child.prefix = "[" + component + "] "
	return &child
}

func (l *Logger) msg(format string, args ...any) string {
	return l.prefix + fmt.Sprintf(format, args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.out.Info().Msg(l.msg(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	l.out.Warn().Msg(l.msg(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	l.err.Error().Msg(l.msg(format, args...))
}

func (l *Logger) Debug(format string, args ...any) {
	l.out.Debug().Msg(l.msg(format, args...))
}
