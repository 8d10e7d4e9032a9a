// Package logging sets up the structured debug log. A TUI owns the
// terminal, so nothing may write to stdout or stderr while the program
// runs; all diagnostics go to a rotated file next to the caches instead.
package logging

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger writing to lzm.log inside dir, rotated so long
// sessions across many repositories cannot grow the file without bound.
func New(dir, level string) zerolog.Logger {
	w := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "lzm.log"),
		MaxSize:    5, // megabytes
		MaxBackups: 2,
	}
	return zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
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
