// Package obslog provides the textual event sink the core components log
// through. It never returns an error: a logging call can never turn a
// success path into a failure path.
package obslog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global sink instance. Zero value logs to a disabled
// logger until Init is called, so packages that log before Init (e.g.
// in tests) don't panic.
var Logger zerolog.Logger = zerolog.Nop()

// Level is a logging severity.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds sink configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global sink. Unknown level names fall back to
// info rather than erroring; a bad logging flag must never stop the
// stack from starting.
func Init(cfg Config) {
	level, err := zerolog.ParseLevel(string(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent scopes the sink to one subsystem (e.g. "dispatcher",
// "pki", "session").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithSessionID scopes the sink to a session record.
func WithSessionID(id string) zerolog.Logger {
	return Logger.With().Str("session_id", id).Logger()
}

// WithChannelID scopes the sink to a secure-channel handle.
func WithChannelID(id uint32) zerolog.Logger {
	return Logger.With().Uint32("channel_id", id).Logger()
}

// WithThumbprint scopes the sink to a certificate thumbprint, the
// standard log identifier for PKI events.
func WithThumbprint(thumbprint string) zerolog.Logger {
	return Logger.With().Str("thumbprint", thumbprint).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

// Errorf logs msg with err attached as a structured field.
func Errorf(msg string, err error) {
	Logger.Error().Err(err).Msg(msg)
}
