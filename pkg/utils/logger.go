package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns the service logger. Debug mode uses zap's development
// config (console encoder, debug level). Otherwise it builds a production
// config with ISO 8601 timestamps instead of epoch floats, since the demo's
// logs are read by people more often than by collectors.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
