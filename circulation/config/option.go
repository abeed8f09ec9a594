package config

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// Option overrides a value after the environment has been read.
type Option func(cfg *Config)

func WithLogLevel(level zapcore.Level) Option {
	return func(cfg *Config) {
		cfg.Log.LogLevel = level
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(cfg *Config) {
		cfg.Server.WriteTimeout = d
	}
}

func WithDatabasePath(path string) Option {
	return func(cfg *Config) {
		if path != "" {
			cfg.Database.Path = path
		}
	}
}
