package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler upgrades rubata watchers and serves the polling fallback.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	statuses          StatusProvider
}

func NewWebSocketHandler(cm *ConnectionManager, statuses StatusProvider) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		statuses:          statuses,
	}
}

// HandleRubataConnection serves /ws/rubata?session_id=&member_id=.
func (h *WebSocketHandler) HandleRubataConnection(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}
	memberID, ok := uuidParam(w, r, "member_id")
	if !ok {
		return
	}

	st, err := h.statuses.Status(sessionID)
	if err != nil {
		writeStatusError(w, err)
		return
	}
	if st.Member(memberID) == nil && !isAdmin(st, memberID.String()) {
		http.Error(w, "not a participant of this rubata", http.StatusForbidden)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, memberID, sessionID); err != nil {
		// the upgrader has already replied
		log.Error().
			Err(err).
			Str("session_id", sessionID.String()).
			Str("member_id", memberID.String()).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleState serves GET /api/rubata/state?session_id= for clients that poll.
func (h *WebSocketHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sessionID, ok := uuidParam(w, r, "session_id")
	if !ok {
		return
	}

	st, err := h.statuses.Status(sessionID)
	if err != nil {
		writeStatusError(w, err)
		return
	}
	admin := isAdmin(st, r.URL.Query().Get("member_id"))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(forMember(st, admin)); err != nil {
		log.Error().Err(err).Msg("failed to encode rubata state response")
	}
}

func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/rubata", h.HandleRubataConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
	mux.HandleFunc("/api/rubata/state", h.HandleState)
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		http.Error(w, name+" is required", http.StatusBadRequest)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "invalid "+name+" format", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeStatusError(w http.ResponseWriter, err error) {
	if errors.Is(err, models.ErrNotFound) {
		http.Error(w, "rubata session not found", http.StatusNotFound)
		return
	}
	log.Error().Err(err).Msg("failed to get rubata status")
	http.Error(w, "failed to get rubata status", http.StatusInternalServerError)
}
