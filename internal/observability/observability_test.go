package observability

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/ws", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9", IPFromRequest(req))

	req.Header.Set("X-Real-Ip", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", IPFromRequest(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", IPFromRequest(req))
}

func TestNewWSEnvelope(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	env := NewWSEnvelope("ws_disconnect",
		WSDetails{Kind: "room", ConnID: "c1", DurationMs: 42, Rooms: []string{"R"}},
		Identity{UserID: "U1"},
		BuildHeaders("req-1", ""),
		at,
	)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"event_type":"ws_events",
		"event_name":"ws_disconnect",
		"occurred_at":"2024-03-01T12:00:00Z",
		"payload":{
			"ws":{"kind":"room","event":"ws_disconnect","conn_id":"c1","duration_ms":42,"rooms":["R"]},
			"identity":{"user_id":"U1"},
			"headers":{"x-request-id":"req-1"}
		}
	}`, string(data))
}
