package gateway

import (
	"encoding/json"
	"time"

	"github.com/pietro1412/fantacontratti/go/internal/rubata/coordinator"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/timer"
)

// MessageType tags what a pushed message carries.
type MessageType string

const (
	MessageTypeStatus MessageType = "StatusUpdated"
	MessageTypeEvent  MessageType = "RubataEvent"
)

// Message is the frame written to WebSocket clients.
type Message struct {
	Type      MessageType         `json:"type"`
	SessionID string              `json:"session_id"`
	Timestamp time.Time           `json:"timestamp"`
	Status    *coordinator.Status `json:"status,omitempty"`
	Event     *RubataEvent        `json:"event,omitempty"`
}

// RubataEvent is a relayed domain event.
type RubataEvent struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// clientMessage is what clients may send. Only "refresh" is understood; it
// asks for the current status to be pushed again.
type clientMessage struct {
	Type string `json:"type"`
}

// withRemaining returns st with the countdown derived from now. Published
// statuses are shared, so a copy is made when the timer changes.
func withRemaining(st *coordinator.Status, now time.Time) *coordinator.Status {
	if st == nil || st.Timer == nil || st.Timer.Frozen || st.Timer.Deadline == nil {
		return st
	}
	remaining := st.Timer.Deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	out := *st
	tv := *st.Timer
	tv.RemainingSeconds = timer.DisplaySeconds(remaining)
	tv.RemainingMs = remaining.Milliseconds()
	out.Timer = &tv
	return &out
}

// forMember hides commit diagnostics from non-admins.
func forMember(st *coordinator.Status, isAdmin bool) *coordinator.Status {
	if st == nil || isAdmin || st.LastCommitError == "" {
		return st
	}
	out := *st
	out.LastCommitError = ""
	return &out
}

func isAdmin(st *coordinator.Status, member string) bool {
	if st == nil {
		return false
	}
	for _, id := range st.Admins {
		if id.String() == member {
			return true
		}
	}
	return false
}
