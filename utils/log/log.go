package log

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// FormatJSON writes one JSON object per entry
	FormatJSON = "json"
	// FormatConsole writes human readable entries
	FormatConsole = "console"
)

// Config describes the logger built by New
type Config struct {
	// Level is a zap level name such as debug or info
	Level string `koanf:"level"`
	// Format is either FormatJSON or FormatConsole
	Format string `koanf:"format"`
}

// New builds a logger writing to stderr
func New(config Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(config.Level)

	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	var encoder zapcore.Encoder

	switch config.Format {
	case FormatJSON, "":
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	case FormatConsole:
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	default:
		return nil, fmt.Errorf("unknown log format %q", config.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level))

	return zap.New(core), nil
}

// Must is like New but panics if the logger
// cannot be built
func Must(config Config) *zap.Logger {
	logger, err := New(config)

	if err != nil {
		panic(err)
	}

	return logger
}

type key int

const (
	fieldsKey key = iota
	loggerKey
)

// WithContext enriches the logger with fields from the context
func WithContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	return logger.With(Fields(ctx)...)
}

// WithFields adds log fields to the context
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return context.WithValue(ctx, fieldsKey, append(Fields(ctx), fields...))
}

// Fields extracts log fields from the context
func Fields(ctx context.Context) []zap.Field {
	fields, ok := ctx.Value(fieldsKey).([]zap.Field)

	if !ok {
		return []zap.Field{}
	}

	return fields[:len(fields):len(fields)]
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// Logger extracts a logger from the context
func Logger(ctx context.Context) *zap.Logger {
	logger, ok := ctx.Value(loggerKey).(*zap.Logger)

	if !ok {
		return nil
	}

	return logger
}

// LoggerFromContext returns the logger passed through the context
// enriched with the context's fields. If there is none it uses
// defaultLogger instead.
func LoggerFromContext(ctx context.Context, defaultLogger *zap.Logger) *zap.Logger {
	logger := Logger(ctx)

	if logger == nil {
		logger = defaultLogger
	}

	return WithContext(ctx, logger)
}
