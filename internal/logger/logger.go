// Package logger создает zap логгер для процессов сервиса оценки риска
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"water-risk-service/internal/config"
)

// New создает логгер по секции log конфигурации.
// Формат "console" дает читаемый вывод в stderr, иначе JSON в stdout.
// Нераспознанный уровень трактуется как info. Каждая запись содержит
// service_name и hostname; opts применяются при сборке логгера
func New(cfg config.LogConfig, service string, opts ...zap.Option) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zc.OutputPaths = []string{"stdout"}
		zc.ErrorOutputPaths = []string{"stderr"}
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	// на debug нужна каждая оценка, без семплирования
	if level == zapcore.DebugLevel {
		zc.Sampling = nil
	}

	log, err := zc.Build(opts...)
	if err != nil {
		return nil, err
	}
	return log.With(fields(service)...), nil
}

func fields(service string) []zap.Field {
	var out []zap.Field
	if service != "" {
		out = append(out, zap.String("service_name", service))
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		out = append(out, zap.String("hostname", hostname))
	}
	return out
}
