package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR"        envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	WSOriginPatterns     []string      `env:"WS_ORIGIN_PATTERNS"     envSeparator:","`
	BroadcastSendTimeout time.Duration `env:"BROADCAST_SEND_TIMEOUT" envDefault:"3s"`
	BroadcastConcurrency int           `env:"BROADCAST_CONCURRENCY"  envDefault:"16"`

	GeocodeBaseURL   string        `env:"GEOCODE_BASE_URL"   envDefault:"https://nominatim.openstreetmap.org"`
	GeocodeDelay     time.Duration `env:"GEOCODE_DELAY"      envDefault:"1s"`
	GeocodeLimit     int           `env:"GEOCODE_LIMIT"      envDefault:"5"`
	GeocodeUserAgent string        `env:"GEOCODE_USER_AGENT" envDefault:"pubcrawl-backend"`

	RoutingBaseURL string `env:"ROUTING_BASE_URL" envDefault:"https://router.project-osrm.org"`
	RoutingProfile string `env:"ROUTING_PROFILE"  envDefault:"foot"`

	OutboundTimeout time.Duration `env:"OUTBOUND_TIMEOUT" envDefault:"10s"`
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER %q: want %s or %s", c.StoreDriver, DriverPostgres, DriverMemory))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q: want json or console", c.LogFormat))
	}
	if c.GeocodeLimit < 1 {
		errs = append(errs, errors.New("GEOCODE_LIMIT must be at least 1"))
	}
	if c.BroadcastConcurrency < 1 {
		errs = append(errs, errors.New("BROADCAST_CONCURRENCY must be at least 1"))
	}
	return errors.Join(errs...)
}
