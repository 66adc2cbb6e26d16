// Package config loads runtime settings from the environment.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port            string        `envconfig:"APP_PORT" default:"8080"`
	DatabaseURL     string        `envconfig:"DATABASE_URL"`
	Store           string        `envconfig:"STORE" default:"postgres"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text"`
	AMQPURL         string        `envconfig:"AMQP_URL"`
	AMQPExchange    string        `envconfig:"AMQP_EXCHANGE" default:"garments.events"`
	TokenAttempts   int           `envconfig:"TOKEN_MAX_ATTEMPTS" default:"5"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// Staff tokens are only required when JWTSecret is set.
	JWTSecret string        `envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"JWT_TTL" default:"12h"`
}

// Load reads an optional .env file, then the process environment.
func Load(files ...string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(files...)

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, errors.Wrap(err, "read environment")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE=postgres")
		}
	case StoreMemory:
	default:
		return errors.Errorf("unknown STORE %q (want postgres or memory)", c.Store)
	}
	if c.TokenAttempts <= 0 {
		return errors.Errorf("TOKEN_MAX_ATTEMPTS must be positive, got %d", c.TokenAttempts)
	}
	return nil
}
