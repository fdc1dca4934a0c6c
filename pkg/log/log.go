package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance.
	Logger zerolog.Logger
)

// Level represents a log severity.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
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

// WithComponent creates a child logger scoped to a runtime component
// ("registry", "head", "table", "lww", "orchestrator", ...).
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithWorkspace creates a child logger scoped to a workspace ID.
func WithWorkspace(workspaceID string) zerolog.Logger {
	return Logger.With().Str("workspace_id", workspaceID).Logger()
}

// WithDoc creates a child logger scoped to a document ID (the
// registry, a head, or a "{workspaceId}-{epoch}" data document).
func WithDoc(docID string) zerolog.Logger {
	return Logger.With().Str("doc_id", docID).Logger()
}

// Info logs an info-level message on the global logger.
func Info(msg string) {
	Logger.Info().Msg(msg)
}

// Debug logs a debug-level message on the global logger.
func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

// Warn logs a warn-level message on the global logger.
func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

// Error logs an error-level message on the global logger.
func Error(msg string) {
	Logger.Error().Msg(msg)
}

// Errorf logs an error with its wrapped cause.
func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

func init() {
	Init(Config{Level: InfoLevel})
}
