package logging

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/xerrors"
)

type Config struct {
	// Level is a zap level name such as "debug" or "error". Empty means info.
	Level string
	// Debug switches to the human readable console encoder.
	Debug bool
}

// New builds a logr.Logger backed by zap. Keys follow the OpenTelemetry log
// data model: https://opentelemetry.io/docs/specs/otel/logs/data-model/
func New(config Config) (logr.Logger, func(), error) {
	return NewWithWriter(config, zapcore.Lock(os.Stderr))
}

func NewWithWriter(config Config, w zapcore.WriteSyncer) (logr.Logger, func(), error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if config.Level != "" {
		if err := level.UnmarshalText([]byte(config.Level)); err != nil {
			return logr.Discard(), func() {}, xerrors.Errorf("failed to parse log level: %w", err)
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.LevelKey = "severitytext"
	encoderConfig.MessageKey = "body"
	encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	var encoder zapcore.Encoder
	if config.Debug {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	z := zap.New(zapcore.NewCore(encoder, w, level), zap.AddStacktrace(zap.ErrorLevel))
	return zapr.NewLogger(z), func() { _ = z.Sync() }, nil
}
