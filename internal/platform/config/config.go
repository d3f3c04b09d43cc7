package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName  string   `env:"SERVICE_NAME" env-default:"simgov"`
	HTTPPort     string   `env:"HTTP_PORT" env-default:"8080"`
	PostgresDSN  string   `env:"POSTGRES_DSN"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`

	SchedulerTick  time.Duration `env:"SCHEDULER_TICK" env-default:"2s"`
	OutboxBatch    int           `env:"OUTBOX_BATCH" env-default:"100"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" env-default:"168h"`
}

func Load() (Config, error) {
	// A missing .env is fine outside local development.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
