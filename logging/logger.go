// Package logging builds the application slog logger.
//
// Console output is colourised text (tint) or JSON. When a log file is
// configured, records fan out to the console and a JSON file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	slogmulti "github.com/samber/slog-multi"
	"golang.org/x/term"
)

// Options configures New.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // optional JSON log file, appended to
	Output io.Writer
}

// New creates the application logger. The returned closer releases the log
// file, if any, and is never nil.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	out := opts.Output
	if out == nil {
		// Stdout belongs to command output.
		out = os.Stderr
	}

	var console slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		console = tint.NewHandler(out, &tint.Options{
			Level:       level,
			TimeFormat:  "2006-01-02 15:04:05.000Z07:00",
			NoColor:     !isTerminal(out),
			ReplaceAttr: tintAttr,
		})
	case "json":
		console = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: renameError,
		})
	default:
		return nil, nil, fmt.Errorf("unknown log format: %q", opts.Format)
	}

	if opts.File == "" {
		return slog.New(console), nopCloser{}, nil
	}

	file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: renameError,
	})
	return slog.New(slogmulti.Fanout(console, fileHandler)), file, nil
}

// NewNop returns a no-op logger.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", name)
	}
}

// renameError standardizes the "error" key to "err".
func renameError(_ []string, a slog.Attr) slog.Attr {
	if a.Key == "error" {
		a.Key = "err"
	}
	return a
}

// tintAttr renames the error key and paints error values red.
func tintAttr(groups []string, a slog.Attr) slog.Attr {
	a = renameError(groups, a)
	if a.Value.Kind() == slog.KindAny {
		if _, ok := a.Value.Any().(error); ok {
			return tint.Attr(9, a)
		}
	}
	return a
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
