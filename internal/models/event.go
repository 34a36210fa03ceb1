package models

import "time"

// EventType tags the kind of a room event.
type EventType string

const (
	EventMessageCreated EventType = "message_created"
	EventMessageEdited  EventType = "message_edited"
	EventMessageDeleted EventType = "message_deleted"
	EventMessageReacted EventType = "message_reacted"
	EventUserJoined     EventType = "user_joined"
	EventUserLeft       EventType = "user_left"
	EventUserTyping     EventType = "user_typing"
)

// Event is pushed over websocket connections joined to RoomID. Which of the
// optional fields are set depends on Type.
type Event struct {
	Type        EventType  `json:"type"`
	RoomID      string     `json:"room_id"`
	Message     *Message   `json:"message,omitempty"`
	MessageID   string     `json:"message_id,omitempty"`
	Content     string     `json:"content,omitempty"`
	EditedAt    *time.Time `json:"edited_at,omitempty"`
	Reactions   *Reactions `json:"reactions,omitempty"`
	UserID      string     `json:"user_id,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// MessageCreatedEvent carries the full committed message.
func MessageCreatedEvent(msg Message) Event {
	return Event{
		Type:      EventMessageCreated,
		RoomID:    msg.RoomID,
		Message:   &msg,
		MessageID: msg.ID,
		Timestamp: msg.SentAt,
	}
}

// MessageEditedEvent carries the new content of an edited message.
func MessageEditedEvent(msg Message) Event {
	evt := Event{
		Type:      EventMessageEdited,
		RoomID:    msg.RoomID,
		MessageID: msg.ID,
		Content:   msg.Content,
		EditedAt:  msg.EditedAt,
		Timestamp: time.Now().UTC(),
	}
	if msg.EditedAt != nil {
		evt.Timestamp = *msg.EditedAt
	}
	return evt
}

// MessageDeletedEvent notifies a hard removal.
func MessageDeletedEvent(roomID, messageID string, at time.Time) Event {
	return Event{
		Type:      EventMessageDeleted,
		RoomID:    roomID,
		MessageID: messageID,
		Timestamp: at,
	}
}

// MessageReactedEvent carries the whole reaction map after a toggle. An empty
// map is still serialized so clients can clear their state.
func MessageReactedEvent(roomID, messageID string, reactions Reactions, at time.Time) Event {
	snapshot := reactions.Clone()
	return Event{
		Type:      EventMessageReacted,
		RoomID:    roomID,
		MessageID: messageID,
		Reactions: &snapshot,
		Timestamp: at,
	}
}

// PresenceEvent builds a joined, left or typing event.
func PresenceEvent(kind EventType, roomID, userID, displayName string, at time.Time) Event {
	return Event{
		Type:        kind,
		RoomID:      roomID,
		UserID:      userID,
		DisplayName: displayName,
		Timestamp:   at,
	}
}
