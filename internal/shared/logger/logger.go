package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New monta o zap padrão da plataforma: JSON em produção, console em
// local. Todo log carrega service/env para o agregador separar os
// serviços; timestamp sempre ISO8601, independente do ambiente
func New(serviceName string, env string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "local":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil // volume dos serviços não justifica sampling
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build(
		zap.Fields(
			zap.String("service", serviceName),
			zap.String("env", env),
		),
	)
}
