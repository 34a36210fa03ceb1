package observability

import "time"

// EventEnvelope is the broker payload for connection lifecycle events.
type EventEnvelope struct {
	EventType  string      `json:"event_type"`
	EventName  string      `json:"event_name"`
	OccurredAt string      `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

type WSPayload struct {
	WS       WSDetails         `json:"ws"`
	Identity Identity          `json:"identity"`
	Headers  map[string]string `json:"headers"`
}

type WSDetails struct {
	Kind       string   `json:"kind"`
	Event      string   `json:"event"`
	ConnID     string   `json:"conn_id"`
	DurationMs int64    `json:"duration_ms"`
	Reason     string   `json:"reason,omitempty"`
	Rooms      []string `json:"rooms,omitempty"`
}

type Identity struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
	IP       string `json:"ip,omitempty"`
}

// NewWSEnvelope wraps a connection lifecycle event for publishing.
func NewWSEnvelope(name string, details WSDetails, identity Identity, headers map[string]string, at time.Time) EventEnvelope {
	details.Event = name
	return EventEnvelope{
		EventType:  "ws_events",
		EventName:  name,
		OccurredAt: at.UTC().Format(time.RFC3339Nano),
		Payload: WSPayload{
			WS:       details,
			Identity: identity,
			Headers:  headers,
		},
	}
}

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
