package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/pietro1412/fantacontratti/go/internal/rubata/coordinator"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/gateway"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/outbox"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/scheduler"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Rubata struct {
		OfferTimerSeconds   int           `yaml:"offer_timer_seconds"`
		AuctionTimerSeconds int           `yaml:"auction_timer_seconds"`
		CommitRetryDelay    time.Duration `yaml:"commit_retry_delay"`
		PruneInterval       time.Duration `yaml:"prune_interval"`
	} `yaml:"rubata"`
	Scheduler scheduler.Config       `yaml:"scheduler"`
	NATS      outbox.JetStreamConfig `yaml:"nats"`
	Gateway   struct {
		Enabled    bool                     `yaml:"enabled"`
		Consumer   gateway.ConsumerConfig   `yaml:"consumer"`
		Connection gateway.ConnectionConfig `yaml:"connection"`
	} `yaml:"gateway"`
}

func defaultConfig() *Config {
	var cfg Config
	def := coordinator.DefaultConfig()
	cfg.Rubata.OfferTimerSeconds = def.OfferTimerSeconds
	cfg.Rubata.AuctionTimerSeconds = def.AuctionTimerSeconds
	cfg.Rubata.CommitRetryDelay = def.CommitRetryDelay
	cfg.Rubata.PruneInterval = 10 * time.Minute
	cfg.Scheduler = scheduler.DefaultConfig()
	cfg.NATS = outbox.DefaultJetStreamConfig()
	cfg.Gateway.Enabled = true
	cfg.Gateway.Consumer = gateway.DefaultConsumerConfig()
	cfg.Gateway.Connection = gateway.DefaultConnectionConfig()
	return &cfg
}

func (c *Config) coordinatorConfig() coordinator.Config {
	return coordinator.Config{
		OfferTimerSeconds:   c.Rubata.OfferTimerSeconds,
		AuctionTimerSeconds: c.Rubata.AuctionTimerSeconds,
		CommitRetryDelay:    c.Rubata.CommitRetryDelay,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// loadConfig reads the YAML file over the defaults. A missing file is not an
// error. Environment variables win over both.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", path).Msg("config file not found, using defaults")
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Rubata.OfferTimerSeconds = getEnvAsInt("RUBATA_OFFER_TIMER_SECONDS", config.Rubata.OfferTimerSeconds)
	config.Rubata.AuctionTimerSeconds = getEnvAsInt("RUBATA_AUCTION_TIMER_SECONDS", config.Rubata.AuctionTimerSeconds)
	config.Scheduler.Workers = getEnvAsInt("SCHEDULER_WORKERS", config.Scheduler.Workers)
	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)
	config.Gateway.Enabled = getEnvAsBool("GATEWAY_ENABLED", config.Gateway.Enabled)

	if config.Rubata.PruneInterval <= 0 {
		return nil, fmt.Errorf("rubata prune interval must be positive, got %s", config.Rubata.PruneInterval)
	}
	if config.Rubata.OfferTimerSeconds <= 0 || config.Rubata.AuctionTimerSeconds <= 0 {
		return nil, fmt.Errorf("rubata timers must be positive, got offer=%d auction=%d",
			config.Rubata.OfferTimerSeconds, config.Rubata.AuctionTimerSeconds)
	}
	return config, nil
}
