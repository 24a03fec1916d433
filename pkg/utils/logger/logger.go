package logger

import (
	"context"
	"fmt"
	"os"
	"time"

	"sandgate/pkg/utils/contextkey"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *Logger

// Logger wraps zap logger with context support
type Logger struct {
	zap *zap.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string `yaml:"level"`      // debug, info, warn, error
	Format     string `yaml:"format"`     // json, console
	OutputPath string `yaml:"outputPath"` // file path or "stdout"
	ErrorPath  string `yaml:"errorPath"`  // error log file path or "stderr"
}

// Init initializes the global logger
func Init(cfg Config) error {
	l, err := NewLogger(cfg)
	if err != nil {
		return err
	}
	globalLogger = l
	return nil
}

// NewLogger creates a new logger instance
func NewLogger(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	out, err := openSink(cfg.OutputPath, "stdout")
	if err != nil {
		return nil, err
	}
	errOut, err := openSink(cfg.ErrorPath, "stderr")
	if err != nil {
		return nil, err
	}

	// Warnings and above go to the error sink only.
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, out, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= level && l < zapcore.WarnLevel
		})),
		zapcore.NewCore(encoder.Clone(), errOut, zap.LevelEnablerFunc(func(l zapcore.Level) bool {
			return l >= level && l >= zapcore.WarnLevel
		})),
	)

	zapLogger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{zap: zapLogger}, nil
}

func openSink(path, fallback string) (zapcore.WriteSyncer, error) {
	if path == "" {
		path = fallback
	}
	switch path {
	case "stdout":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return zapcore.AddSync(file), nil
}

// Sync flushes any buffered log entries
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// WithContext returns the zap logger with fields carried by ctx
func (l *Logger) WithContext(ctx context.Context) *zap.Logger {
	return l.zap.With(extractFieldsFromContext(ctx)...)
}

func extractFieldsFromContext(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	var fields []zap.Field
	if v := ctx.Value(contextkey.RequestID); v != nil {
		fields = append(fields, zap.String("request_id", fmt.Sprint(v)))
	}
	if v := ctx.Value(contextkey.SessionKey); v != nil {
		fields = append(fields, zap.String("session_key", fmt.Sprint(v)))
	}
	if v := ctx.Value(contextkey.Channel); v != nil {
		fields = append(fields, zap.String("channel", fmt.Sprint(v)))
	}
	if v := ctx.Value(contextkey.Backend); v != nil {
		fields = append(fields, zap.String("backend", fmt.Sprint(v)))
	}
	return fields
}

// Debug logs a debug message
func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	if globalLogger == nil {
		return
	}
	globalLogger.WithContext(ctx).Debug(msg, fields...)
}

// Info logs an info message
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	if globalLogger == nil {
		return
	}
	globalLogger.WithContext(ctx).Info(msg, fields...)
}

// Warn logs a warning message
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	if globalLogger == nil {
		return
	}
	globalLogger.WithContext(ctx).Warn(msg, fields...)
}

// Error logs an error message
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	if globalLogger == nil {
		return
	}
	globalLogger.WithContext(ctx).Error(msg, fields...)
}

// Infof logs an info message with format
func Infof(ctx context.Context, format string, args ...interface{}) {
	if globalLogger == nil {
		return
	}
	globalLogger.WithContext(ctx).Info(fmt.Sprintf(format, args...))
}

// Warnf logs a warning message with format
func Warnf(ctx context.Context, format string, args ...interface{}) {
	if globalLogger == nil {
		return
	}
	globalLogger.WithContext(ctx).Warn(fmt.Sprintf(format, args...))
}

// Named returns a component logger. A nop logger is returned before Init.
func Named(name string) *zap.Logger {
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger.zap.Named(name)
}

// Replace swaps the global logger and returns a func restoring the previous one.
func Replace(l *zap.Logger) func() {
	prev := globalLogger
	globalLogger = &Logger{zap: l}
	return func() { globalLogger = prev }
}

// Sync flushes the global logger
func Sync() error {
	if globalLogger == nil {
		return nil
	}
	return globalLogger.Sync()
}

// ElapsedField renders a duration field rounded to milliseconds.
func ElapsedField(start time.Time) zap.Field {
	return zap.Duration("elapsed", time.Since(start).Round(time.Millisecond))
}
