package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKnown(t *testing.T) {
	require.True(t, Known(TypeBidPlaced))
	require.True(t, Known(TypeStealCommitted))
	require.False(t, Known("PickMade"))
	require.False(t, Known(""))
}

func TestEnvelopeKeepsPayloadVerbatim(t *testing.T) {
	payload := json.RawMessage(`{"session_id":"s1","amount":11}`)
	data, err := json.Marshal(Envelope{
		EventID:   "e1",
		EventType: TypeBidPlaced,
		SessionID: "s1",
		Timestamp: time.Date(2026, 9, 1, 21, 0, 0, 0, time.UTC),
		Payload:   payload,
	})
	require.NoError(t, err)

	var back map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &back))
	require.JSONEq(t, string(payload), string(back["payload"]))
	require.JSONEq(t, `"BidPlaced"`, string(back["eventType"]))
}
