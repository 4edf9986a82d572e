package events

import (
	"encoding/json"
	"time"
)

// Envelope is the message body published for every outbox event.
type Envelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	SessionID string          `json:"sessionId"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Message headers set on published events.
const (
	HeaderEventType = "Event-Type"
	HeaderSessionID = "Session-ID"
	HeaderEventID   = "Event-ID"
)
