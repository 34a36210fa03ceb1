package ws

import "github.com/google/uuid"

const wsRoutingKey = "ws_events.rooms"

func newConnID() string {
	return uuid.NewString()
}
