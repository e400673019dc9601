// Package logging builds the structured logger used for diagnostics on stderr.
package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-kit/log/term"
)

const (
	FormatLogfmt = "logfmt"
	FormatJSON   = "json"
)

// Options control how New renders log lines.
type Options struct {
	Format string // logfmt or json
	Level  string // debug, info, warn, error or none
	Color  bool   // colorize by level; only meaningful on a terminal
}

// New returns a leveled go-kit logger writing to w. Every line carries a timestamp and caller.
func New(w io.Writer, opts Options) (log.Logger, error) {
	allow, err := levelOption(opts.Level)
	if err != nil {
		return nil, err
	}

	var newLogger func(io.Writer) log.Logger
	switch strings.ToLower(opts.Format) {
	case "", FormatLogfmt:
		newLogger = log.NewLogfmtLogger
	case FormatJSON:
		newLogger = log.NewJSONLogger
	default:
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}

	var logger log.Logger
	if opts.Color {
		logger = term.NewLogger(w, newLogger, levelColor)
	} else {
		logger = newLogger(log.NewSyncWriter(w))
	}

	logger = level.NewFilter(logger, allow)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller), nil
}

// Nop returns a logger that discards everything.
func Nop() log.Logger {
	return log.NewNopLogger()
}

func levelOption(name string) (level.Option, error) {
	switch strings.ToLower(name) {
	case "debug":
		return level.AllowDebug(), nil
	case "", "info":
		return level.AllowInfo(), nil
	case "warn":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	case "none":
		return level.AllowNone(), nil
	default:
		return nil, fmt.Errorf("unsupported log level %q", name)
	}
}

func levelColor(keyvals ...interface{}) term.FgBgColor {
	for i := 0; i < len(keyvals)-1; i += 2 {
		if keyvals[i] != level.Key() {
			continue
		}
		switch keyvals[i+1] {
		case level.DebugValue():
			return term.FgBgColor{Fg: term.DarkBlue}
		case level.WarnValue():
			return term.FgBgColor{Fg: term.Yellow}
		case level.ErrorValue():
			return term.FgBgColor{Fg: term.Red}
		default:
			return term.FgBgColor{}
		}
	}
	return term.FgBgColor{}
}

// FailureLogger adapts a go-kit logger to the runner's failure logging hook.
type FailureLogger struct {
	Logger log.Logger
}

func (f FailureLogger) LogFailure(err error) {
	if f.Logger == nil || err == nil {
		return
	}
	level.Warn(f.Logger).Log("msg", "request failed", "err", err)
}
