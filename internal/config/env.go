// Package config loads the process configuration from the environment and
// the legacy source mapping file.
package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	SQLDriver       string `env:"SQL_DRIVER" envDefault:"sqlserver" validate:"oneof=sqlserver pgx sqlite"`
	SQLConnString   string `env:"SQL_CONNECTION_STRING" validate:"required"`
	MongoConnString string `env:"MONGO_CONNECTION_STRING" validate:"required"`
	MongoDatabase   string `env:"MONGO_DATABASE"`
	MappingFile     string `env:"MAPPING_FILE"`

	BatchSize     int    `env:"BATCH_SIZE" envDefault:"100" validate:"gt=0,lte=10000"`
	CheckpointDir string `env:"CHECKPOINT_DIR" envDefault:"."`

	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=silent error warn info debug"`
	LogFile     string `env:"LOG_FILE"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

// LoadEnv loads the .env files that exist; missing files are not an error.
func LoadEnv(files ...string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// LoadConfig parses and validates the environment (which should be
// populated by the .env file in main.go).
func LoadConfig() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	if err := validator.New().Struct(&c); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &c, nil
}
