package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/coordinator"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/events"
	"github.com/stretchr/testify/require"
)

type fakeStatuses struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]*coordinator.Status
}

func (f *fakeStatuses) Status(id uuid.UUID) (*coordinator.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.statuses[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return st, nil
}

type presenceCall struct {
	member    uuid.UUID
	connected bool
}

type recordingPresence struct {
	mu    sync.Mutex
	calls []presenceCall
}

func (p *recordingPresence) SetConnected(_, memberID uuid.UUID, connected bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, presenceCall{member: memberID, connected: connected})
}

func (p *recordingPresence) snapshot() []presenceCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]presenceCall(nil), p.calls...)
}

type gatewayHarness struct {
	t        *testing.T
	clock    *clockwork.FakeClock
	cm       *ConnectionManager
	presence *recordingPresence
	server   *httptest.Server
	status   *coordinator.Status
	member   uuid.UUID
	admin    uuid.UUID
}

func newGatewayHarness(t *testing.T) *gatewayHarness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC))
	member, admin := uuid.New(), uuid.New()
	deadline := clock.Now().Add(12 * time.Second)
	st := &coordinator.Status{
		SessionID:       uuid.New(),
		Phase:           models.PhaseAuction,
		Members:         []models.Member{{ID: member, Name: "Ale", TeamBudget: 100}},
		Admins:          []uuid.UUID{admin},
		Timer:           &coordinator.TimerView{Phase: models.PhaseAuction, Deadline: &deadline},
		LastCommitError: "commit failed: connection reset",
	}
	statuses := &fakeStatuses{statuses: map[uuid.UUID]*coordinator.Status{st.SessionID: st}}
	presence := &recordingPresence{}

	cm := NewConnectionManager(DefaultConnectionConfig(), statuses, presence, clock)
	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)

	mux := http.NewServeMux()
	NewWebSocketHandler(cm, statuses).RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})
	return &gatewayHarness{
		t: t, clock: clock, cm: cm, presence: presence, server: server,
		status: st, member: member, admin: admin,
	}
}

func (h *gatewayHarness) dial(memberID uuid.UUID) *websocket.Conn {
	h.t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") +
		"/ws/rubata?session_id=" + h.status.SessionID.String() + "&member_id=" + memberID.String()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(h.t, err)
	resp.Body.Close()
	h.t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestConnectSendsCurrentStatus(t *testing.T) {
	h := newGatewayHarness(t)
	conn := h.dial(h.member)

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeStatus, msg.Type)
	require.Equal(t, h.status.SessionID.String(), msg.SessionID)
	require.NotNil(t, msg.Status.Timer)
	require.Equal(t, 12, msg.Status.Timer.RemainingSeconds)
	require.Equal(t, int64(12000), msg.Status.Timer.RemainingMs)
	require.Empty(t, msg.Status.LastCommitError)

	require.Eventually(t, func() bool {
		calls := h.presence.snapshot()
		return len(calls) == 1 && calls[0] == presenceCall{member: h.member, connected: true}
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		calls := h.presence.snapshot()
		return len(calls) == 2 && calls[1] == presenceCall{member: h.member, connected: false}
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return h.cm.GetConnectionStats().TotalConnections == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatusBroadcastAudience(t *testing.T) {
	h := newGatewayHarness(t)
	memberConn := h.dial(h.member)
	adminConn := h.dial(h.admin)

	first := readMessage(t, adminConn)
	require.Equal(t, h.status.LastCommitError, first.Status.LastCommitError)
	readMessage(t, memberConn)

	require.Eventually(t, func() bool {
		return h.cm.GetConnectionStats().TotalConnections == 2
	}, 2*time.Second, 10*time.Millisecond)

	h.clock.Advance(2 * time.Second)
	h.cm.NotifyStatus(h.status.SessionID, h.status)

	got := readMessage(t, adminConn)
	require.Equal(t, MessageTypeStatus, got.Type)
	require.Equal(t, h.status.LastCommitError, got.Status.LastCommitError)
	require.Equal(t, 10, got.Status.Timer.RemainingSeconds)

	got = readMessage(t, memberConn)
	require.Empty(t, got.Status.LastCommitError)
	require.Equal(t, 10, got.Status.Timer.RemainingSeconds)

	// the shared snapshot is never modified
	require.Zero(t, h.status.Timer.RemainingSeconds)
}

func TestEventBroadcast(t *testing.T) {
	h := newGatewayHarness(t)
	conn := h.dial(h.member)
	readMessage(t, conn)

	require.Eventually(t, func() bool {
		return h.cm.GetConnectionStats().TotalConnections == 1
	}, 2*time.Second, 10*time.Millisecond)

	h.cm.BroadcastEvent(h.status.SessionID, &RubataEvent{
		ID:   uuid.NewString(),
		Type: events.TypeBidPlaced,
		Data: json.RawMessage(`{"amount":15}`),
	})
	// events for other sessions are not delivered
	h.cm.BroadcastEvent(uuid.New(), &RubataEvent{ID: uuid.NewString(), Type: events.TypeBidPlaced})

	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeEvent, msg.Type)
	require.Equal(t, events.TypeBidPlaced, msg.Event.Type)
	require.JSONEq(t, `{"amount":15}`, string(msg.Event.Data))
}

func TestRefreshResendsStatus(t *testing.T) {
	h := newGatewayHarness(t)
	conn := h.dial(h.member)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "refresh"}))
	msg := readMessage(t, conn)
	require.Equal(t, MessageTypeStatus, msg.Type)
}

func TestConnectRejections(t *testing.T) {
	h := newGatewayHarness(t)
	base := h.server.URL + "/ws/rubata"

	tests := []struct {
		name  string
		query string
		code  int
	}{
		{name: "missing session", query: "?member_id=" + h.member.String(), code: http.StatusBadRequest},
		{name: "bad member", query: "?session_id=" + h.status.SessionID.String() + "&member_id=x", code: http.StatusBadRequest},
		{name: "unknown session", query: "?session_id=" + uuid.NewString() + "&member_id=" + h.member.String(), code: http.StatusNotFound},
		{name: "outsider", query: "?session_id=" + h.status.SessionID.String() + "&member_id=" + uuid.NewString(), code: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(base + tt.query)
			require.NoError(t, err)
			resp.Body.Close()
			require.Equal(t, tt.code, resp.StatusCode)
		})
	}
}

func TestStatePolling(t *testing.T) {
	h := newGatewayHarness(t)

	resp, err := http.Get(h.server.URL + "/api/rubata/state?session_id=" + h.status.SessionID.String() + "&member_id=" + h.member.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st coordinator.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.Equal(t, models.PhaseAuction, st.Phase)
	require.Empty(t, st.LastCommitError)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/rubata/state?session_id="+h.status.SessionID.String()+"&member_id="+h.admin.String(), nil)
	NewWebSocketHandler(h.cm, h.cm.statuses).HandleState(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "connection reset")

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/rubata/state", nil)
	NewWebSocketHandler(h.cm, h.cm.statuses).HandleState(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDecodeEnvelope(t *testing.T) {
	sessionID := uuid.New()
	data, err := json.Marshal(events.Envelope{
		EventID:   uuid.NewString(),
		EventType: events.TypeAuctionClosed,
		SessionID: sessionID.String(),
		Timestamp: time.Now().UTC(),
		Payload:   json.RawMessage(`{"price":20}`),
	})
	require.NoError(t, err)

	gotID, event, err := decodeEnvelope(data)
	require.NoError(t, err)
	require.Equal(t, sessionID, gotID)
	require.Equal(t, events.TypeAuctionClosed, event.Type)

	_, _, err = decodeEnvelope([]byte(`{"eventType":"PickMade","sessionId":"` + sessionID.String() + `"}`))
	require.Error(t, err)

	_, _, err = decodeEnvelope([]byte(`{"eventType":"BidPlaced","sessionId":"nope"}`))
	require.Error(t, err)

	_, _, err = decodeEnvelope([]byte(`not json`))
	require.Error(t, err)
}

func TestWithRemaining(t *testing.T) {
	now := time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC)
	deadline := now.Add(1500 * time.Millisecond)
	st := &coordinator.Status{Timer: &coordinator.TimerView{Deadline: &deadline}}

	got := withRemaining(st, now)
	require.Equal(t, 2, got.Timer.RemainingSeconds)
	require.Equal(t, int64(1500), got.Timer.RemainingMs)
	require.NotSame(t, st, got)

	got = withRemaining(st, now.Add(time.Minute))
	require.Zero(t, got.Timer.RemainingMs)

	frozen := &coordinator.Status{Timer: &coordinator.TimerView{Frozen: true, RemainingSeconds: 7}}
	require.Same(t, frozen, withRemaining(frozen, now))
}
