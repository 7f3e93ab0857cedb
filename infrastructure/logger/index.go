package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LoggerOptions struct {
	Key  string
	Data interface{}
}

// Logger is a no-op until InitializeLogger runs so packages and tests can log freely.
var Logger = zap.NewNop()

// InitializeLogger swaps the no-op logger for a real one.
// APP_ENV=development gives a human readable console logger.
func InitializeLogger() {
	var (
		l   *zap.Logger
		err error
	)
	if os.Getenv("APP_ENV") == "development" {
		l, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		l, err = cfg.Build()
	}
	if err != nil {
		return
	}
	Logger = l
}

// Sync flushes buffered log entries. Call before the process exits.
func Sync() {
	_ = Logger.Sync()
}

func fields(payload []LoggerOptions) []zapcore.Field {
	zapFields := make([]zapcore.Field, 0, len(payload))
	for _, data := range payload {
		zapFields = append(zapFields, zap.Any(data.Key, data.Data))
	}
	return zapFields
}

// This logs info level messages.
func Info(msg string, payload ...LoggerOptions) {
	Logger.Info(msg, fields(payload)...)
}

// This logs debug level messages.
func Debug(msg string, payload ...LoggerOptions) {
	Logger.Debug(msg, fields(payload)...)
}

// This logs error messages.
// describe the incident in msg and pass the error through logger options
// with key error
func Error(msg string, payload ...LoggerOptions) {
	Logger.Error(msg, fields(payload)...)
}

// This logs warning messages.
func Warning(msg string, payload ...LoggerOptions) {
	Logger.Warn(msg, fields(payload)...)
}
