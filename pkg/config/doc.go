// Package config loads typed configuration structs from environment
// variables using github.com/caarlos0/env, with optional .env file support
// for local development via github.com/joho/godotenv.
//
// Each configuration type is parsed at most once per process and cached, so
// components depending on the same Config struct are guaranteed to see the
// same values.
//
//	type EngineConfig struct {
//		MaxAttempts int           `env:"DISPATCH_MAX_ATTEMPTS" envDefault:"3"`
//		BackoffBase time.Duration `env:"DISPATCH_BACKOFF_BASE" envDefault:"2s"`
//	}
//
//	var cfg EngineConfig
//	config.MustLoad(&cfg)
package config
