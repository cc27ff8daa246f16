// Package log configures structured logging for gocpd using log/slog.
package log

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger setup
type Options struct {
	Verbose bool
	Quiet   bool

	// File, when set, receives log output in addition to stderr and is
	// rotated once it reaches MaxSizeMB
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// Level maps verbosity flags to a slog level.
//
//   - quiet mode:   only WARN and ERROR messages
//   - normal mode:  INFO and above
//   - verbose mode: DEBUG and above
func Level(verbose, quiet bool) slog.Level {
	switch {
	case quiet:
		return slog.LevelWarn
	case verbose:
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Setup configures the default slog logger. Output always goes to stderr;
// stdout is reserved for MCP traffic and command output. The returned
// closer releases the log file, if any.
func Setup(opts Options) io.Closer {
	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
		}
		w = io.MultiWriter(os.Stderr, rotator)
		closer = rotator
	}

	slog.SetDefault(New(w, Level(opts.Verbose, opts.Quiet)))
	return closer
}

// New creates a text logger writing to w
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
