package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Message represents a chat message posted to a room.
type Message struct {
	ID         string     `db:"id" json:"id"`
	RoomID     string     `db:"room_id" json:"room_id"`
	Content    string     `db:"content" json:"content"`
	AuthorID   string     `db:"author_id" json:"author_id"`
	AuthorName string     `db:"author_name" json:"author_name"`
	SentAt     time.Time  `db:"sent_at" json:"sent_at"`
	EditedAt   *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	Reactions  Reactions  `db:"reactions" json:"reactions"`
}

// Reactions maps a reacting user id to the single emoji that user has active.
type Reactions map[string]string

// Toggle applies a reaction from userID. Repeating the emoji the user already
// has removes it, a different emoji replaces it.
func (r Reactions) Toggle(userID, emoji string) Reactions {
	out := r.Clone()
	if current, ok := out[userID]; ok && current == emoji {
		delete(out, userID)
		return out
	}
	out[userID] = emoji
	return out
}

// Clone returns a copy that never aliases r. A nil receiver yields an empty map.
func (r Reactions) Clone() Reactions {
	out := make(Reactions, len(r))
	for userID, emoji := range r {
		out[userID] = emoji
	}
	return out
}

// Value stores reactions as a JSON object.
func (r Reactions) Value() (driver.Value, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(r))
}

// Scan decodes reactions from a JSON column.
func (r *Reactions) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = Reactions{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("reactions: unsupported source type %T", src)
	}

	decoded := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fmt.Errorf("reactions: %w", err)
		}
	}
	*r = Reactions(decoded)
	return nil
}
