package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Tuning struct {
		// Defaults applied when a run request omits the field.
		Parallelism        int     `env:"TUNE_PARALLELISM" envDefault:"8"`
		PointsPerDimension int     `env:"TUNE_POINTS_PER_DIMENSION" envDefault:"5"`
		GeneticMixing      float64 `env:"TUNE_GENETIC_MIXING" envDefault:"0.7"`
		Seed               int64   `env:"TUNE_SEED" envDefault:"42"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Development runs default to debug logging unless overridden
	if cfg.Environment == "development" && cfg.Logging.Level == "info" {
		cfg.Logging.Level = "debug"
	}

	return cfg, nil
}
