package models

import "time"

// Room mirrors the row owned by the room metadata service. Only existence is
// checked here.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
