// Package logger provides structured logging for the bridge with PII
// redaction. Verbal-autopsy records identify deceased persons by name and
// national ID; those values must never reach log output in the clear.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Options describes logger configuration supplied at setup time.
type Options struct {
	Level     string // debug, info, warn, error (default info)
	Console   bool   // force human-readable console output
	RedactPII bool
	Writer    io.Writer // defaults to os.Stderr
}

type root struct {
	zl        zerolog.Logger
	redactPII bool
}

var base = newRoot(Options{Level: "info", RedactPII: true, Writer: os.Stderr})

func newRoot(opts Options) *root {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := zerolog.InfoLevel
	if opts.Level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(opts.Level)); err == nil {
			level = parsed
		}
	}

	out := w
	if opts.Console || isTerminal(w) {
		cw := zerolog.NewConsoleWriter()
		cw.Out = w
		cw.TimeFormat = time.RFC3339
		out = cw
	}

	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return &root{zl: zl, redactPII: opts.RedactPII}
}

// Setup reconfigures the default logger. Call once at startup before any
// goroutines log.
func Setup(opts Options) {
	base = newRoot(opts)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// Debug emits a debug-level entry with key-value fields.
func Debug(msg string, fields ...interface{}) { base.log(zerolog.DebugLevel, "", msg, fields) }

// Info emits an info-level entry with key-value fields.
func Info(msg string, fields ...interface{}) { base.log(zerolog.InfoLevel, "", msg, fields) }

// Warn emits a warn-level entry with key-value fields.
func Warn(msg string, fields ...interface{}) { base.log(zerolog.WarnLevel, "", msg, fields) }

// Error emits an error-level entry with key-value fields.
func Error(msg string, fields ...interface{}) { base.log(zerolog.ErrorLevel, "", msg, fields) }

// Logger is a component-tagged view of the default logger.
type Logger struct {
	component string
}

// Component returns a logger that stamps every entry with component=name.
func Component(name string) Logger {
	return Logger{component: name}
}

func (l Logger) Debug(msg string, fields ...interface{}) {
	base.log(zerolog.DebugLevel, l.component, msg, fields)
}

func (l Logger) Info(msg string, fields ...interface{}) {
	base.log(zerolog.InfoLevel, l.component, msg, fields)
}

func (l Logger) Warn(msg string, fields ...interface{}) {
	base.log(zerolog.WarnLevel, l.component, msg, fields)
}

func (l Logger) Error(msg string, fields ...interface{}) {
	base.log(zerolog.ErrorLevel, l.component, msg, fields)
}

func (r *root) log(level zerolog.Level, component, msg string, fields []interface{}) {
	ev := r.zl.WithLevel(level)
	if component != "" {
		ev = ev.Str("component", component)
	}

	// Fields arrive as alternating key, value pairs; a trailing odd value is
	// dropped rather than guessed at.
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		switch v := fields[i+1].(type) {
		case error:
			if v != nil {
				ev = ev.AnErr(key, v)
			}
		case string:
			if r.redactPII {
				v = redactValue(key, v)
			}
			ev = ev.Str(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
