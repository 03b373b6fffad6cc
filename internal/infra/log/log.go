package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pathval/internal/config"
)

type Logger = zerolog.Logger

// NewLogger builds the process logger from the logging section and sets the global level.
func NewLogger(cfg config.Config) Logger {
	return NewLoggerTo(os.Stderr, cfg)
}

// NewLoggerTo is NewLogger writing to out.
func NewLoggerTo(out io.Writer, cfg config.Config) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	var l zerolog.Logger
	if cfg.Logging.Pretty {
		l = log.Output(zerolog.ConsoleWriter{Out: out})
	} else {
		l = log.Output(out)
	}
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	return l.With().Str("service", "pathval").Logger()
}
