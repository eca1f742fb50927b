// Package logging builds the process-wide zap logger.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ManuelReschke/Arcana/internal/pkg/env"
)

// New returns a development logger when APP_ENV=dev and a JSON production
// logger otherwise. LOG_LEVEL overrides the default level.
func New() (*zap.Logger, error) {
	var cfg zap.Config
	if env.IsDev() {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if raw := env.GetEnv("LOG_LEVEL", ""); raw != "" {
		lvl, err := zapcore.ParseLevel(raw)
		if err != nil {
			return nil, err
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	return cfg.Build()
}

// OrNop lets components accept an optional logger.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
