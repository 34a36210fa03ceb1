package rabbitmq

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-chat/internal/observability"
	"room-chat/internal/telemetry"
)

func TestNewPublisherWithoutURLIsNoop(t *testing.T) {
	p := NewPublisher("", "chat.events", zerolog.Nop())

	assert.Equal(t, "noop", PublisherMode(p))
	assert.Equal(t, "empty amqp url", PublisherNoopReason(p))
	require.NoError(t, p.Publish(context.Background(), "audit.chat", telemetry.AuditEnvelope{EventType: "audit_log"}))
	require.NoError(t, p.Publish(context.Background(), "ws_events.rooms", observability.EventEnvelope{EventName: "ws_connect"}))
	require.NoError(t, p.Publish(context.Background(), "other", map[string]string{"k": "v"}))
	require.NoError(t, p.Close())
}

func TestPublisherModeUnknown(t *testing.T) {
	assert.Equal(t, "unknown", PublisherMode(nil))
	assert.Equal(t, "", PublisherNoopReason(nil))
}
