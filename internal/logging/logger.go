// Package logging provides structured logging for wcbt using zap. Logs
// are operator-facing context only; artifacts remain the primary record
// of what a pipeline did.
package logging

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	once   sync.Once
)

// Config holds logging configuration.
type Config struct {
	Level string // debug, info, warn, error
	JSON  bool   // JSON encoding instead of console
	Quiet bool   // errors only, regardless of Level
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{Level: "info"}
}

// Init initializes the global logger once.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		err = initLogger(cfg)
	})
	return err
}

func initLogger(cfg Config) error {
	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}
	if cfg.Quiet {
		level = zapcore.ErrorLevel
	}

	zapCfg := zap.NewProductionConfig()
	if !cfg.JSON {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}

	built, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	logger = built
	sugar = built.Sugar()
	return nil
}

// InitDefault initializes with defaults when Init was never called.
func InitDefault() {
	if logger == nil {
		_ = Init(DefaultConfig())
	}
}

// L returns the global logger.
func L() *zap.Logger {
	InitDefault()
	return logger
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	InitDefault()
	return sugar
}

// Sync flushes any buffered log entries.
func Sync() error {
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

// Debug logs a debug message with fields.
func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

// Info logs an info message with fields.
func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }

// Warn logs a warning message with fields.
func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }

// Error logs an error message with fields.
func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Debugf logs a formatted debug message.
func Debugf(template string, args ...interface{}) { S().Debugf(template, args...) }

// Infof logs a formatted info message.
func Infof(template string, args ...interface{}) { S().Infof(template, args...) }

// Warnf logs a formatted warning message.
func Warnf(template string, args ...interface{}) { S().Warnf(template, args...) }

// Errorf logs a formatted error message.
func Errorf(template string, args ...interface{}) { S().Errorf(template, args...) }

// String creates a string field.
func String(key, val string) zap.Field { return zap.String(key, val) }

// Int creates an int field.
func Int(key string, val int) zap.Field { return zap.Int(key, val) }

// Int64 creates an int64 field.
func Int64(key string, val int64) zap.Field { return zap.Int64(key, val) }

// Bool creates a bool field.
func Bool(key string, val bool) zap.Field { return zap.Bool(key, val) }

// Err creates an error field.
func Err(err error) zap.Field { return zap.Error(err) }
