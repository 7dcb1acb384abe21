package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.Mutex
	Logger *zerolog.Logger
)

// Init configures the process logger.
// level: "debug", "info", "warn", "error"; file: optional path.
// console=false keeps stderr clean (the TUI owns the terminal).
func Init(level string, file string, console bool) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var writers []io.Writer
	if console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	}
	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		writers = append(writers, f)
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 1:
		out = writers[0]
	case 2:
		out = zerolog.MultiLevelWriter(writers...)
	}

	l := zerolog.New(out).Level(lvl).With().Timestamp().Logger()

	mu.Lock()
	Logger = &l
	mu.Unlock()
	return nil
}

// Get returns the process logger, or a discarding one before Init.
func Get() *zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if Logger == nil {
		l := zerolog.New(io.Discard)
		Logger = &l
	}
	return Logger
}
