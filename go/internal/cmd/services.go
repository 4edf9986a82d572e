package main

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/coordinator"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/db"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/gateway"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/outbox"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/repository"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/scheduler"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/service"
)

type Services struct {
	Registry    *coordinator.Registry
	Scheduler   *scheduler.Scheduler
	Connections *gateway.ConnectionManager
	WebSocket   *gateway.WebSocketHandler
	Rubata      *service.Service
}

// presence breaks the construction cycle between the connection manager,
// which reports presence, and the registry, which notifies through it.
type presence struct {
	registry *coordinator.Registry
}

func (p *presence) SetConnected(sessionID, memberID uuid.UUID, connected bool) {
	if p.registry != nil {
		p.registry.SetConnected(sessionID, memberID, connected)
	}
}

func (p *presence) Status(sessionID uuid.UUID) (*coordinator.Status, error) {
	return p.registry.Status(sessionID)
}

func setupServices(database *sql.DB, pool *pgxpool.Pool, config *Config) *Services {
	// Database layer → Repository layer → Coordinator layer → Service layer
	clock := clockwork.NewRealClock()

	league := repository.NewLeagueRepository(pool)
	sessions := repository.NewSessionRepository(database)
	events := outbox.NewApp(outbox.NewRepository(db.New(database)))

	sched := scheduler.New(clock, config.Scheduler)

	link := &presence{}
	connections := gateway.NewConnectionManager(config.Gateway.Connection, link, link, clock)

	registry := coordinator.NewRegistry(coordinator.Deps{
		League:    league,
		Committer: league,
		Store:     sessions,
		Notifier:  connections,
		Events:    events,
		Scheduler: sched,
		Clock:     clock,
		Config:    config.coordinatorConfig(),
	})
	link.registry = registry

	return &Services{
		Registry:    registry,
		Scheduler:   sched,
		Connections: connections,
		WebSocket:   gateway.NewWebSocketHandler(connections, registry),
		Rubata:      service.NewService(registry),
	}
}
