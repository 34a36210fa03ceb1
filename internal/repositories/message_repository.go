package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"room-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the durable message store. Each call is atomic for a
// single message row.
type MessageRepository interface {
	Append(ctx context.Context, msg models.Message) (string, error)
	Get(ctx context.Context, messageID string) (models.Message, error)
	UpdateContent(ctx context.Context, messageID string, content string, editedAt time.Time) (models.Message, error)
	Remove(ctx context.Context, messageID string) error
	// ListByRoom runs a fresh query on every call, oldest message first.
	ListByRoom(ctx context.Context, roomID string) ([]models.Message, error)
}

// ReactionLedger persists per-message reactions.
type ReactionLedger interface {
	// Toggle is a single read-modify-write on the message's reaction map.
	Toggle(ctx context.Context, messageID string, userID string, emoji string) (models.Reactions, error)
}

const messageColumns = `id, room_id, content, author_id, author_name, sent_at, edited_at, reactions`

// MessageRepo is a sqlx-backed implementation of MessageRepository and ReactionLedger.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append inserts a message. ID and SentAt are assigned by the caller.
func (r *MessageRepo) Append(ctx context.Context, msg models.Message) (string, error) {
	reactions := msg.Reactions
	if reactions == nil {
		reactions = models.Reactions{}
	}
	var id string
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, room_id, content, author_id, author_name, sent_at, reactions) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		msg.ID, msg.RoomID, msg.Content, msg.AuthorID, msg.AuthorName, msg.SentAt, reactions).Scan(&id)
	return id, err
}

// Get fetches a single message.
func (r *MessageRepo) Get(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// UpdateContent replaces the content of a message and stamps edited_at.
func (r *MessageRepo) UpdateContent(ctx context.Context, messageID string, content string, editedAt time.Time) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages SET content=$2, edited_at=$3 WHERE id=$1 RETURNING `+messageColumns, messageID, content, editedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// Remove hard-deletes a message.
func (r *MessageRepo) Remove(ctx context.Context, messageID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// ListByRoom returns messages in ascending send order.
func (r *MessageRepo) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE room_id=$1 ORDER BY sent_at ASC, id ASC`, roomID)
	return msgs, err
}

// Toggle locks the message row, applies the toggle and writes the map back.
func (r *MessageRepo) Toggle(ctx context.Context, messageID string, userID string, emoji string) (reactions models.Reactions, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var current models.Reactions
	if err = tx.GetContext(ctx, &current, `SELECT reactions FROM messages WHERE id=$1 FOR UPDATE`, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrMessageNotFound
		}
		return nil, err
	}

	reactions = current.Toggle(userID, emoji)
	if _, err = tx.ExecContext(ctx, `UPDATE messages SET reactions=$2 WHERE id=$1`, messageID, reactions); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reaction: %w", err)
	}
	return reactions, nil
}
