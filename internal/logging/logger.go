package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. dev gets a human-readable console writer,
// every other env emits JSON lines.
func New(env, level, component string) zerolog.Logger {
	return NewWithWriter(os.Stdout, env, level, component)
}

func NewWithWriter(w io.Writer, env, level, component string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	out := w
	if env == "dev" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("component", component).
		Str("env", env).
		Logger()
}
