package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const defaultService = "marketplace-service"

// Logger wraps zap so components can be handed a named, field-enriched child
// without importing zap configuration details.
type Logger struct {
	*zap.Logger
}

// Options is the logger setup read from LOG_LEVEL, LOG_FORMAT, LOG_OUTPUT_FILE
// and SERVICE_NAME.
type Options struct {
	Level   zapcore.Level
	Console bool
	Output  string
	Service string
}

var (
	globalLogger *Logger
	once         sync.Once
)

// NewLogger builds the process-wide logger from the environment. Only the
// first call configures it; later calls return the same instance.
func NewLogger() *Logger {
	once.Do(func() {
		opts := OptionsFromEnv()
		zl, err := buildZapConfig(opts).Build(
			zap.AddCallerSkip(1),
			zap.Fields(zap.String("service", opts.Service)),
		)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: custom zap config failed (%v), using production defaults\n", err)
			zl, _ = zap.NewProduction()
		}

		globalLogger = &Logger{Logger: zl}
		globalLogger.Info("Logger initialized",
			zap.Stringer("level", opts.Level),
			zap.Bool("console", opts.Console),
			zap.String("output", opts.Output))
	})
	return globalLogger
}

// FromZap wraps an already built zap logger. Tests use it with zaptest.
func FromZap(zl *zap.Logger) *Logger {
	return &Logger{Logger: zl}
}

// OptionsFromEnv reads the logger options. Unknown levels fall back to info.
func OptionsFromEnv() Options {
	level, err := zapcore.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = zapcore.InfoLevel
	}
	format := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	opts := Options{
		Level:   level,
		Console: format == "console" || format == "text",
		Output:  strings.TrimSpace(os.Getenv("LOG_OUTPUT_FILE")),
		Service: strings.TrimSpace(os.Getenv("SERVICE_NAME")),
	}
	if opts.Output == "" {
		opts.Output = "stdout"
	}
	if opts.Service == "" {
		opts.Service = defaultService
	}
	return opts
}

func buildZapConfig(opts Options) zap.Config {
	var zc zap.Config
	if opts.Level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(opts.Level)

	switch opts.Output {
	case "stdout", "stderr":
		zc.OutputPaths = []string{opts.Output}
		zc.ErrorOutputPaths = []string{"stderr"}
	default:
		if err := os.MkdirAll(filepath.Dir(opts.Output), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "logger: cannot create log dir for %q (%v), writing to stdout\n", opts.Output, err)
			zc.OutputPaths = []string{"stdout"}
			zc.ErrorOutputPaths = []string{"stderr"}
		} else {
			zc.OutputPaths = []string{opts.Output, "stdout"}
			zc.ErrorOutputPaths = []string{opts.Output, "stderr"}
		}
	}

	if opts.Console {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc.Encoding = "json"
		zc.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	}
	return zc
}

// Named returns a child logger with name appended to the logger path.
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

// With returns a child logger carrying the given fields on every entry.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}
