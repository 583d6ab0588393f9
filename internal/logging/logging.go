// Package logging builds the slog logger shared by the CLI and its
// controllers.
package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
)

var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel accepts debug, info, warn and error in any case, with
// optional separators. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
	switch s {
	case "":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error", "err":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, ErrInvalidLevel
	}
}

// Options controls logger formatting. Writer defaults to stderr.
type Options struct {
	Level     string
	JSON      bool
	AddSource bool
	Writer    io.Writer
}

func New(opt Options) (*slog.Logger, error) {
	level, err := ParseLevel(opt.Level)
	if err != nil {
		return nil, err
	}

	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: opt.AddSource || level == slog.LevelDebug,
	}

	var h slog.Handler
	if opt.JSON {
		h = slog.NewJSONHandler(w, handlerOpts)
	} else {
		h = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(h), nil
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
