package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New returns the process logger: JSON on stderr, or a console writer when
// appEnv is "development". Unknown levels fall back to info.
func New(appEnv, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stderr
	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}
