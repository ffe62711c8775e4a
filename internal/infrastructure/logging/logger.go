package logging

import (
	"io"
	"log/slog"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/golang-cz/devslog"
	"github.com/phsym/console-slog"
	slogformatter "github.com/samber/slog-formatter"

	"github.com/nerrad567/gray-media-core/internal/infrastructure/config"
)

// serviceName is attached to every log entry.
const serviceName = "graymedia"

// Logger wraps slog.Logger with Gray Media-specific functionality.
//
// It provides structured logging with default fields and level-based filtering.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Logger struct {
	*slog.Logger
}

// formatters renders errors as {message, type} groups and client addresses
// as plain strings in every output format.
var formatters = slogformatter.NewFormatterHandler(
	slogformatter.ErrorFormatter("error"),
	slogformatter.FormatByType(func(a netip.Addr) slog.Value {
		if !a.IsValid() {
			return slog.StringValue("")
		}
		return slog.StringValue(a.Unmap().String())
	}),
	slogformatter.FormatByType(func(ap netip.AddrPort) slog.Value {
		return slog.StringValue(ap.String())
	}),
)

// New creates a new Logger with the specified configuration.
//
// Formats:
//   - json: machine-parsable, for production
//   - text: slog key=value lines
//   - console: coloured single-line output for terminals
//   - dev: multi-line pretty output with sorted keys, for development
//
// Parameters:
//   - cfg: Logging configuration from config.yaml
//   - version: Application version for default field
//
// Returns:
//   - *Logger: Configured logger ready for use
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		output = os.Stderr
	default:
		output = os.Stdout
	}
	return NewWithWriter(cfg, version, output)
}

// NewWithWriter is New with an explicit output destination; cfg.Output is ignored.
func NewWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	level := parseLevel(cfg.Level)

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(output, &slog.HandlerOptions{
			AddSource: cfg.AddSource,
			Level:     level,
		})
	case "console":
		handler = console.NewHandler(output, &console.HandlerOptions{
			AddSource:  cfg.AddSource,
			Level:      level,
			TimeFormat: time.RFC3339Nano,
		})
	case "dev":
		handler = devslog.NewHandler(output, &devslog.Options{
			HandlerOptions: &slog.HandlerOptions{
				AddSource: cfg.AddSource,
				Level:     level,
			},
			SortKeys:   true,
			TimeFormat: time.RFC3339Nano,
		})
	default:
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{
			AddSource: cfg.AddSource,
			Level:     level,
		})
	}

	handler = formatters(handler).WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{
		Logger: slog.New(handler),
	}
}

// parseLevel converts a string log level to slog.Level.
//
// Supported levels: debug, info, warn, error
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes.
//
// Example:
//
//	mqttLogger := logger.With("component", "mqtt")
//	mqttLogger.Info("connected") // Includes component=mqtt
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Default creates a default logger for use before configuration is loaded.
// It writes JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}
