package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"room-chat/internal/models"
)

// maxTxnRetries bounds optimistic retries when concurrent writers touch the
// same message key.
const maxTxnRetries = 32

// BadgerMessageRepo stores messages in an embedded BadgerDB.
//
// Layout:
//
//	msg:{id}                          -> JSON message
//	room:{hex room id}:{sent_at}:{id} -> id
//
// sent_at is zero padded to 19 digits so a forward prefix scan yields send order.
type BadgerMessageRepo struct {
	db *badger.DB
}

// NewBadgerMessageRepo constructs a BadgerMessageRepo.
func NewBadgerMessageRepo(db *badger.DB) *BadgerMessageRepo {
	return &BadgerMessageRepo{db: db}
}

func messageKey(id string) []byte {
	return []byte("msg:" + id)
}

func roomPrefix(roomID string) []byte {
	return []byte(fmt.Sprintf("room:%x:", roomID))
}

func roomIndexKey(msg models.Message) []byte {
	return []byte(fmt.Sprintf("room:%x:%019d:%s", msg.RoomID, msg.SentAt.UnixNano(), msg.ID))
}

// Append writes the message and its room index entry in one transaction.
func (r *BadgerMessageRepo) Append(ctx context.Context, msg models.Message) (string, error) {
	if msg.Reactions == nil {
		msg.Reactions = models.Reactions{}
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	err = r.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(msg.ID), payload); err != nil {
			return err
		}
		return txn.Set(roomIndexKey(msg), []byte(msg.ID))
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// Get fetches a single message.
func (r *BadgerMessageRepo) Get(ctx context.Context, messageID string) (models.Message, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, err
	}
	var msg models.Message
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		msg, err = readMessage(txn, messageID)
		return err
	})
	return msg, err
}

// UpdateContent replaces content and stamps EditedAt.
func (r *BadgerMessageRepo) UpdateContent(ctx context.Context, messageID string, content string, editedAt time.Time) (models.Message, error) {
	var updated models.Message
	err := r.update(ctx, func(txn *badger.Txn) error {
		msg, err := readMessage(txn, messageID)
		if err != nil {
			return err
		}
		msg.Content = content
		msg.EditedAt = &editedAt
		if err := writeMessage(txn, msg); err != nil {
			return err
		}
		updated = msg
		return nil
	})
	return updated, err
}

// Remove deletes the message and its room index entry.
func (r *BadgerMessageRepo) Remove(ctx context.Context, messageID string) error {
	return r.update(ctx, func(txn *badger.Txn) error {
		msg, err := readMessage(txn, messageID)
		if err != nil {
			return err
		}
		if err := txn.Delete(messageKey(messageID)); err != nil {
			return err
		}
		return txn.Delete(roomIndexKey(msg))
	})
}

// ListByRoom scans the room index in key order.
func (r *BadgerMessageRepo) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msgs := []models.Message{}
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(roomID)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			msg, err := readMessage(txn, string(id))
			if errors.Is(err, ErrMessageNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// Toggle applies a reaction toggle. Badger detects concurrent writers to the
// same key at commit and the loser is retried against the fresh value.
func (r *BadgerMessageRepo) Toggle(ctx context.Context, messageID string, userID string, emoji string) (models.Reactions, error) {
	var reactions models.Reactions
	err := r.update(ctx, func(txn *badger.Txn) error {
		msg, err := readMessage(txn, messageID)
		if err != nil {
			return err
		}
		msg.Reactions = msg.Reactions.Toggle(userID, emoji)
		if err := writeMessage(txn, msg); err != nil {
			return err
		}
		reactions = msg.Reactions
		return nil
	})
	return reactions, err
}

func (r *BadgerMessageRepo) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = r.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("badger update after %d attempts: %w", maxTxnRetries, err)
}

func readMessage(txn *badger.Txn, messageID string) (models.Message, error) {
	item, err := txn.Get(messageKey(messageID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	var msg models.Message
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &msg)
	})
	if err != nil {
		return models.Message{}, err
	}
	if msg.Reactions == nil {
		msg.Reactions = models.Reactions{}
	}
	return msg, nil
}

func writeMessage(txn *badger.Txn, msg models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return txn.Set(messageKey(msg.ID), payload)
}
