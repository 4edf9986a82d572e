package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/coordinator"
	"github.com/rs/zerolog/log"
)

var _ coordinator.Notifier = (*ConnectionManager)(nil)

// StatusProvider serves the current status of a session.
type StatusProvider interface {
	Status(sessionID uuid.UUID) (*coordinator.Status, error)
}

// Presence is told when a member's first connection opens and its last one
// closes.
type Presence interface {
	SetConnected(sessionID, memberID uuid.UUID, connected bool)
}

// ConnectionManager fans session snapshots and relayed events out to the
// WebSocket clients watching each session.
type ConnectionManager struct {
	sessionConnections map[uuid.UUID]map[*Connection]bool
	mu                 sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	clock    clockwork.Clock

	statuses StatusProvider
	presence Presence

	broadcastCh chan BroadcastMessage
}

// Connection is one WebSocket client.
type Connection struct {
	ID        string
	MemberID  uuid.UUID
	SessionID uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	ConnectedAt time.Time

	mu       sync.Mutex
	lastPing time.Time
}

type ConnectionConfig struct {
	WriteTimeout    time.Duration             `yaml:"write_timeout"`
	ReadTimeout     time.Duration             `yaml:"read_timeout"`
	PingInterval    time.Duration             `yaml:"ping_interval"`
	MaxMessageSize  int64                     `yaml:"max_message_size"`
	ReadBufferSize  int                       `yaml:"read_buffer_size"`
	WriteBufferSize int                       `yaml:"write_buffer_size"`
	SendBufferSize  int                       `yaml:"send_buffer_size"`
	CheckOrigin     func(r *http.Request) bool `yaml:"-"`
}

// BroadcastMessage carries either a status snapshot or a relayed event.
type BroadcastMessage struct {
	SessionID uuid.UUID
	Status    *coordinator.Status
	Event     *RubataEvent
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			// origins are enforced by the cors layer in front of the server
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig, statuses StatusProvider, presence Presence, clock clockwork.Clock) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		sessionConnections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		clock:       clock,
		statuses:    statuses,
		presence:    presence,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes broadcasts until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// NotifyStatus queues a status push. It never blocks the coordinator.
func (cm *ConnectionManager) NotifyStatus(sessionID uuid.UUID, status *coordinator.Status) {
	select {
	case cm.broadcastCh <- BroadcastMessage{SessionID: sessionID, Status: status}:
	default:
		log.Warn().Str("session_id", sessionID.String()).Msg("broadcast channel full, dropping status")
	}
}

// BroadcastEvent queues a relayed domain event for a session.
func (cm *ConnectionManager) BroadcastEvent(sessionID uuid.UUID, event *RubataEvent) {
	select {
	case cm.broadcastCh <- BroadcastMessage{SessionID: sessionID, Event: event}:
	default:
		log.Warn().
			Str("session_id", sessionID.String()).
			Str("event_type", event.Type).
			Msg("broadcast channel full, dropping event")
	}
}

func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, memberID, sessionID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	now := cm.clock.Now()
	connection := &Connection{
		ID:          uuid.New().String(),
		MemberID:    memberID,
		SessionID:   sessionID,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: now,
		lastPing:    now,
	}

	cm.registerConnection(connection)
	connection.sendStatus()

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("member_id", memberID.String()).
		Str("session_id", sessionID.String()).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	if cm.sessionConnections[conn.SessionID] == nil {
		cm.sessionConnections[conn.SessionID] = make(map[*Connection]bool)
	}
	first := !cm.memberConnectedLocked(conn.SessionID, conn.MemberID)
	cm.sessionConnections[conn.SessionID][conn] = true
	total := len(cm.sessionConnections[conn.SessionID])
	cm.mu.Unlock()

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID.String()).
		Int("total_connections", total).
		Msg("connection registered")

	if first && cm.presence != nil {
		cm.presence.SetConnected(conn.SessionID, conn.MemberID, true)
	}
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	connections, exists := cm.sessionConnections[conn.SessionID]
	if !exists || !connections[conn] {
		cm.mu.Unlock()
		return
	}
	delete(connections, conn)
	close(conn.Send)
	if len(connections) == 0 {
		delete(cm.sessionConnections, conn.SessionID)
	}
	last := !cm.memberConnectedLocked(conn.SessionID, conn.MemberID)
	cm.mu.Unlock()

	log.Info().
		Str("connection_id", conn.ID).
		Str("member_id", conn.MemberID.String()).
		Str("session_id", conn.SessionID.String()).
		Msg("connection unregistered")

	if last && cm.presence != nil {
		cm.presence.SetConnected(conn.SessionID, conn.MemberID, false)
	}
}

func (cm *ConnectionManager) memberConnectedLocked(sessionID, memberID uuid.UUID) bool {
	for c := range cm.sessionConnections[sessionID] {
		if c.MemberID == memberID {
			return true
		}
	}
	return false
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	frames, err := cm.encode(message)
	if err != nil {
		log.Error().Err(err).Str("session_id", message.SessionID.String()).Msg("failed to marshal broadcast")
		return
	}

	// Send only closes under the write lock, so non-blocking sends are safe
	// under the read lock.
	var slow []*Connection
	cm.mu.RLock()
	connections := cm.sessionConnections[message.SessionID]
	delivered := len(connections)
	for conn := range connections {
		data := frames.member
		if frames.admin != nil && isAdmin(message.Status, conn.MemberID.String()) {
			data = frames.admin
		}
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("member_id", conn.MemberID.String()).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	if delivered > 0 {
		log.Debug().
			Str("session_id", message.SessionID.String()).
			Bool("status", message.Status != nil).
			Int("connections", delivered-len(slow)).
			Msg("broadcast delivered")
	}
}

type encodedFrames struct {
	member []byte
	// admin is set only when admins see more than members
	admin []byte
}

// encode marshals once per audience.
func (cm *ConnectionManager) encode(message BroadcastMessage) (encodedFrames, error) {
	now := cm.clock.Now()
	msg := Message{SessionID: message.SessionID.String(), Timestamp: now}

	if message.Event != nil {
		msg.Type = MessageTypeEvent
		msg.Event = message.Event
		data, err := json.Marshal(msg)
		return encodedFrames{member: data}, err
	}

	msg.Type = MessageTypeStatus
	st := withRemaining(message.Status, now)
	msg.Status = forMember(st, false)
	member, err := json.Marshal(msg)
	if err != nil {
		return encodedFrames{}, err
	}
	if msg.Status == st {
		return encodedFrames{member: member}, nil
	}
	msg.Status = st
	admin, err := json.Marshal(msg)
	if err != nil {
		return encodedFrames{}, err
	}
	return encodedFrames{member: member, admin: admin}, nil
}

// ConnectionStats summarizes open connections.
type ConnectionStats struct {
	TotalConnections   int            `json:"total_connections"`
	ActiveSessions     int            `json:"active_sessions"`
	SessionConnections map[string]int `json:"session_connections"`
}

func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveSessions:     len(cm.sessionConnections),
		SessionConnections: make(map[string]int, len(cm.sessionConnections)),
	}
	for sessionID, connections := range cm.sessionConnections {
		stats.TotalConnections += len(connections)
		stats.SessionConnections[sessionID.String()] = len(connections)
	}
	return stats
}

// sendTo queues data for one connection if it is still registered.
func (cm *ConnectionManager) sendTo(conn *Connection, data []byte) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	if !cm.sessionConnections[conn.SessionID][conn] {
		return false
	}
	select {
	case conn.Send <- data:
		return true
	default:
		return false
	}
}

// sendStatus pushes the current snapshot to this connection only.
func (c *Connection) sendStatus() {
	cm := c.Manager
	if cm.statuses == nil {
		return
	}
	st, err := cm.statuses.Status(c.SessionID)
	if err != nil || st == nil {
		return
	}
	now := cm.clock.Now()
	data, err := json.Marshal(Message{
		Type:      MessageTypeStatus,
		SessionID: c.SessionID.String(),
		Timestamp: now,
		Status:    forMember(withRemaining(st, now), isAdmin(st, c.MemberID.String())),
	})
	if err != nil {
		log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to marshal status")
		return
	}
	cm.sendTo(c, data)
}

func (c *Connection) LastPing() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPing
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.lastPing = c.Manager.clock.Now()
	c.mu.Unlock()
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			return
		}
		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

func (c *Connection) handleClientMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Debug().Err(err).Str("connection_id", c.ID).Msg("ignoring malformed client message")
		return
	}
	switch msg.Type {
	case "refresh":
		c.sendStatus()
	default:
		log.Debug().
			Str("connection_id", c.ID).
			Str("type", msg.Type).
			Msg("ignoring client message")
	}
}
