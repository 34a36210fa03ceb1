package ws

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"room-chat/internal/models"
	"room-chat/internal/observability"
)

// Hub fans room events out to every connection joined to the room. A failed
// delivery to one connection never affects the others.
type Hub struct {
	tracker *Tracker
	log     zerolog.Logger

	// presence orders membership changes with their broadcasts, so members
	// see joins and leaves in the order the tracker applied them.
	presence sync.Mutex
}

// NewHub creates a hub over tracker.
func NewHub(tracker *Tracker, log zerolog.Logger) *Hub {
	return &Hub{
		tracker: tracker,
		log:     log.With().Str("component", "hub").Logger(),
	}
}

// Tracker exposes the membership tracker the hub broadcasts through.
func (h *Hub) Tracker() *Tracker { return h.tracker }

// Register makes conn known to the tracker.
func (h *Hub) Register(conn *Conn) {
	h.tracker.Register(conn)
}

// Publish delivers evt to the current members of evt.RoomID.
func (h *Hub) Publish(evt models.Event) {
	for _, conn := range h.tracker.MembersOf(evt.RoomID) {
		err := conn.Deliver(evt)
		switch {
		case err == nil:
			observability.IncWSDelivery(string(evt.Type), "ok")
		case errors.Is(err, ErrSendBufferFull):
			// A client that cannot keep up is dropped; it reloads history on reconnect.
			observability.IncWSDelivery(string(evt.Type), "buffer_full")
			h.log.Warn().Str("conn_id", conn.ID()).Str("room_id", evt.RoomID).Str("event", string(evt.Type)).Msg("send buffer full, closing connection")
			conn.Close()
		default:
			observability.IncWSDelivery(string(evt.Type), "closed")
			h.log.Debug().Err(err).Str("conn_id", conn.ID()).Str("room_id", evt.RoomID).Str("event", string(evt.Type)).Msg("skipping dead connection")
		}
	}
}

// Join adds the connection to roomID and announces it on the first join.
func (h *Hub) Join(connID, roomID string) (bool, error) {
	h.presence.Lock()
	defer h.presence.Unlock()
	evt, added, err := h.tracker.Join(connID, roomID)
	if err != nil {
		return false, err
	}
	if added {
		h.Publish(evt)
	}
	return added, nil
}

// Leave removes the connection from roomID and tells the remaining members.
func (h *Hub) Leave(connID, roomID string) bool {
	h.presence.Lock()
	defer h.presence.Unlock()
	evt, removed := h.tracker.Leave(connID, roomID)
	if removed {
		h.Publish(evt)
	}
	return removed
}

// Typing relays a transient typing signal. Nothing is stored and receivers
// expire the indicator themselves.
func (h *Hub) Typing(connID, roomID string) error {
	h.presence.Lock()
	defer h.presence.Unlock()
	conn, ok := h.tracker.Conn(connID)
	if !ok {
		return ErrUnknownConnection
	}
	if !h.tracker.IsMember(connID, roomID) {
		return ErrNotJoined
	}
	info := conn.Info()
	h.Publish(models.PresenceEvent(models.EventUserTyping, roomID, info.UserID, info.DisplayName, h.tracker.now().UTC()))
	return nil
}

// Disconnect runs membership cleanup for a torn down connection and notifies
// the rooms it had joined.
func (h *Hub) Disconnect(connID string) {
	h.presence.Lock()
	defer h.presence.Unlock()
	for _, evt := range h.tracker.OnDisconnect(connID) {
		h.Publish(evt)
	}
}

// Close tears down every live connection.
func (h *Hub) Close() {
	h.tracker.Close()
}
