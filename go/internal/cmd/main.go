package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/gateway"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, pool, err := setupDatabase(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to setup database")
	}
	defer database.Close()
	defer pool.Close()

	services := setupServices(database, pool, config)

	restored, err := services.Registry.Restore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to restore rubata sessions")
	}
	log.Info().Int("sessions", restored).Msg("restored rubata sessions")

	go services.Connections.Start(ctx)
	go services.Registry.PruneEvery(ctx, config.Rubata.PruneInterval)
	go func() {
		if err := services.Scheduler.Run(ctx, services.Registry.HandleTimeout); err != nil {
			log.Error().Err(err).Msg("deadline scheduler stopped")
		}
	}()

	if config.Gateway.Enabled {
		consumer, err := gateway.NewEventConsumer(ctx, services.Connections, config.NATS, config.Gateway.Consumer)
		if err != nil {
			// status pushes still work, only relayed events are missing
			log.Error().Err(err).Msg("failed to start event consumer, continuing without relayed events")
		} else {
			defer consumer.Stop()
			go func() {
				if err := consumer.Start(ctx); err != nil {
					log.Error().Err(err).Msg("event consumer stopped")
				}
			}()
		}
	}

	server := setupServer(services)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("rubata server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	log.Info().Msg("graceful shutdown complete")
}
