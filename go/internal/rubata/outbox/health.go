package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	EventsPublished   uint64    `json:"events_published"`
	LastEventTime     time.Time `json:"last_event_time"`
	PendingEvents     int       `json:"pending_events"`
	DatabaseConnected bool      `json:"database_connected"`
	NATSConnected     bool      `json:"nats_connected"`
	ListenerActive    bool      `json:"listener_active"`
	Errors            []string  `json:"errors"`
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthChecker reports whether the relay is keeping up.
type HealthChecker struct {
	listener   *Listener
	db         Pinger
	store      EventStore
	connected  func() bool
	maxPending int
}

func NewHealthChecker(listener *Listener, db Pinger, store EventStore, connected func() bool) *HealthChecker {
	return &HealthChecker{
		listener:   listener,
		db:         db,
		store:      store,
		connected:  connected,
		maxPending: 1000,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{Healthy: true, Errors: []string{}}
	status.EventsPublished, status.LastEventTime = h.listener.Stats()

	if err := h.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.connected != nil {
		status.NATSConnected = h.connected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	status.ListenerActive = h.listener.Running()
	if !status.ListenerActive {
		status.Healthy = false
		status.Errors = append(status.Errors, "listener not active")
	}

	if status.DatabaseConnected {
		pending, err := h.store.FetchUnsentOutbox(ctx, int32(h.maxPending+1))
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = len(pending)
			if status.PendingEvents > h.maxPending {
				status.Errors = append(status.Errors, fmt.Sprintf("more than %d pending events", h.maxPending))
			}
		}
	}
	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
