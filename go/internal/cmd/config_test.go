package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, 30, cfg.Rubata.OfferTimerSeconds)
	require.Equal(t, 30, cfg.Rubata.AuctionTimerSeconds)
	require.Equal(t, 5*time.Second, cfg.Rubata.CommitRetryDelay)
	require.Equal(t, 10*time.Minute, cfg.Rubata.PruneInterval)
	require.Equal(t, "RUBATA_EVENTS", cfg.NATS.StreamName)
	require.True(t, cfg.Gateway.Enabled)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
rubata:
  offer_timer_seconds: 20
  commit_retry_delay: 2s
  prune_interval: 1m
scheduler:
  workers: 2
nats:
  stream_name: TEST_EVENTS
gateway:
  consumer:
    consumer_name: test-gateway
`), 0o600))
	t.Setenv("RUBATA_AUCTION_TIMER_SECONDS", "45")
	t.Setenv("GATEWAY_ENABLED", "false")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 20, cfg.Rubata.OfferTimerSeconds)
	require.Equal(t, 45, cfg.Rubata.AuctionTimerSeconds)
	require.Equal(t, 2*time.Second, cfg.Rubata.CommitRetryDelay)
	require.Equal(t, time.Minute, cfg.Rubata.PruneInterval)
	require.Equal(t, 2, cfg.Scheduler.Workers)
	require.Equal(t, 64, cfg.Scheduler.QueueSize)
	require.Equal(t, "TEST_EVENTS", cfg.NATS.StreamName)
	require.Equal(t, "rubata.events", cfg.NATS.SubjectPrefix)
	require.Equal(t, "test-gateway", cfg.Gateway.Consumer.ConsumerName)
	require.False(t, cfg.Gateway.Enabled)

	cc := cfg.coordinatorConfig()
	require.Equal(t, 45, cc.AuctionTimerSeconds)
}

func TestLoadConfigRejectsNonPositiveTimers(t *testing.T) {
	t.Setenv("RUBATA_OFFER_TIMER_SECONDS", "-1")
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
