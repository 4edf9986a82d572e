// Package dbconfig turns DB_* environment variables into Postgres connection
// settings shared by the server, the outbox relay and the seed tool.
package dbconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Config struct {
	// URL, when set from DATABASE_URL, wins over the individual fields.
	URL string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns       int32
	ConnectTimeout time.Duration
}

func NewConfigFromEnv() Config {
	return Config{
		URL:            os.Getenv("DATABASE_URL"),
		Host:           getEnv("DB_HOST", "localhost"),
		Port:           getEnvAsInt("DB_PORT", 5432),
		User:           getEnv("DB_USER", "postgres"),
		Password:       getEnv("DB_PASSWORD", "postgres"),
		Database:       getEnv("DB_NAME", "fantacontratti"),
		SSLMode:        getEnv("DB_SSLMODE", "disable"),
		MaxConns:       int32(getEnvAsInt("DB_MAX_CONNS", 10)),
		ConnectTimeout: time.Duration(getEnvAsInt("DB_CONNECT_TIMEOUT_SECONDS", 5)) * time.Second,
	}
}

// DSN returns the connection URL. Credentials are escaped, so passwords may
// contain any character.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	q := url.Values{}
	q.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Redacted is DSN with the password masked, for logs.
func (c Config) Redacted() string {
	u, err := url.Parse(c.DSN())
	if err != nil {
		return "invalid database url"
	}
	return u.Redacted()
}

// PoolConfig is the pgx pool configuration for DSN with the pool limits applied.
func (c Config) PoolConfig() (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(c.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if c.MaxConns > 0 {
		cfg.MaxConns = c.MaxConns
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
