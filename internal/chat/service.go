// Package chat applies message lifecycle operations to the store and hands the
// resulting room events to a publisher once the store has committed them.
package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"room-chat/internal/models"
	"room-chat/internal/observability"
	"room-chat/internal/repositories"
)

const (
	defaultMaxContentLength = 4000
	maxEmojiLength          = 64
)

var tracer = otel.Tracer("room-chat/chat")

// Publisher receives events for committed mutations. Publish must not block
// on slow receivers.
type Publisher interface {
	Publish(evt models.Event)
}

// RoomChecker reports whether a room exists.
type RoomChecker interface {
	Exists(ctx context.Context, roomID string) (bool, error)
}

// Config tunes a Service. Zero values pick defaults.
type Config struct {
	MaxContentLength int
	// Rooms is consulted on send and history. Nil accepts any room id.
	Rooms RoomChecker
	Now   func() time.Time
}

// Service is the message lifecycle engine.
type Service struct {
	messages         repositories.MessageRepository
	reactions        repositories.ReactionLedger
	publisher        Publisher
	rooms            RoomChecker
	maxContentLength int
	clock            *clock
	locks            roomLocks
	log              zerolog.Logger
}

// NewService constructs a Service.
func NewService(messages repositories.MessageRepository, reactions repositories.ReactionLedger, publisher Publisher, log zerolog.Logger, cfg Config) *Service {
	maxLen := cfg.MaxContentLength
	if maxLen <= 0 {
		maxLen = defaultMaxContentLength
	}
	return &Service{
		messages:         messages,
		reactions:        reactions,
		publisher:        publisher,
		rooms:            cfg.Rooms,
		maxContentLength: maxLen,
		clock:            newClock(cfg.Now),
		log:              log.With().Str("component", "chat").Logger(),
	}
}

// Send stores a new message and emits MessageCreated.
func (s *Service) Send(ctx context.Context, roomID, authorID, authorName, content string) (msg models.Message, err error) {
	ctx, span := tracer.Start(ctx, "chat.send", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer func() { s.finish(span, "send", err) }()

	if strings.TrimSpace(roomID) == "" || authorID == "" {
		return models.Message{}, fmt.Errorf("%w: room and author are required", ErrInvalidInput)
	}
	if err := s.validateContent(content); err != nil {
		return models.Message{}, err
	}
	if err := s.checkRoom(ctx, roomID); err != nil {
		return models.Message{}, err
	}

	// Once the commit starts it runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	unlock := s.locks.lock(roomID)
	defer unlock()

	msg = models.Message{
		ID:         uuid.NewString(),
		RoomID:     roomID,
		Content:    content,
		AuthorID:   authorID,
		AuthorName: authorName,
		SentAt:     s.clock.Now(),
		Reactions:  models.Reactions{},
	}
	if _, err := s.messages.Append(ctx, msg); err != nil {
		return models.Message{}, s.storageErr("append message", msg.ID, err)
	}

	s.publisher.Publish(models.MessageCreatedEvent(msg))
	return msg, nil
}

// Edit replaces the content of a message authored by requesterID.
func (s *Service) Edit(ctx context.Context, messageID, requesterID, content string) (msg models.Message, err error) {
	ctx, span := tracer.Start(ctx, "chat.edit", trace.WithAttributes(attribute.String("message.id", messageID)))
	defer func() { s.finish(span, "edit", err) }()

	if messageID == "" || requesterID == "" {
		return models.Message{}, fmt.Errorf("%w: message and requester are required", ErrInvalidInput)
	}
	if err := s.validateContent(content); err != nil {
		return models.Message{}, err
	}
	current, err := s.authored(ctx, messageID, requesterID, "edit")
	if err != nil {
		return models.Message{}, err
	}

	ctx = context.WithoutCancel(ctx)
	unlock := s.locks.lock(current.RoomID)
	defer unlock()

	updated, err := s.messages.UpdateContent(ctx, messageID, content, s.clock.Now())
	if err != nil {
		return models.Message{}, s.storageErr("update message", messageID, err)
	}

	s.publisher.Publish(models.MessageEditedEvent(updated))
	return updated, nil
}

// Delete hard-removes a message authored by requesterID.
func (s *Service) Delete(ctx context.Context, messageID, requesterID string) (err error) {
	ctx, span := tracer.Start(ctx, "chat.delete", trace.WithAttributes(attribute.String("message.id", messageID)))
	defer func() { s.finish(span, "delete", err) }()

	if messageID == "" || requesterID == "" {
		return fmt.Errorf("%w: message and requester are required", ErrInvalidInput)
	}
	current, err := s.authored(ctx, messageID, requesterID, "delete")
	if err != nil {
		return err
	}

	ctx = context.WithoutCancel(ctx)
	unlock := s.locks.lock(current.RoomID)
	defer unlock()

	if err := s.messages.Remove(ctx, messageID); err != nil {
		return s.storageErr("remove message", messageID, err)
	}

	s.publisher.Publish(models.MessageDeletedEvent(current.RoomID, messageID, s.clock.Now()))
	return nil
}

// React toggles userID's emoji on a message and emits the resulting map.
func (s *Service) React(ctx context.Context, messageID, userID, emoji string) (reactions models.Reactions, err error) {
	ctx, span := tracer.Start(ctx, "chat.react", trace.WithAttributes(attribute.String("message.id", messageID)))
	defer func() { s.finish(span, "react", err) }()

	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, fmt.Errorf("%w: emoji is required", ErrInvalidInput)
	}
	if len(emoji) > maxEmojiLength {
		return nil, fmt.Errorf("%w: emoji is too long", ErrInvalidInput)
	}
	if messageID == "" || userID == "" {
		return nil, fmt.Errorf("%w: message and user are required", ErrInvalidInput)
	}

	current, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, s.storageErr("get message", messageID, err)
	}

	ctx = context.WithoutCancel(ctx)
	unlock := s.locks.lock(current.RoomID)
	defer unlock()

	reactions, err = s.reactions.Toggle(ctx, messageID, userID, emoji)
	if err != nil {
		return nil, s.storageErr("toggle reaction", messageID, err)
	}

	s.publisher.Publish(models.MessageReactedEvent(current.RoomID, messageID, reactions, s.clock.Now()))
	return reactions, nil
}

// History returns the room's messages, oldest first.
func (s *Service) History(ctx context.Context, roomID string) (msgs []models.Message, err error) {
	ctx, span := tracer.Start(ctx, "chat.history", trace.WithAttributes(attribute.String("room.id", roomID)))
	defer func() { s.finish(span, "history", err) }()

	if strings.TrimSpace(roomID) == "" {
		return nil, fmt.Errorf("%w: room is required", ErrInvalidInput)
	}
	if err := s.checkRoom(ctx, roomID); err != nil {
		return nil, err
	}

	msgs, err = s.messages.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, s.storageErr("list messages", roomID, err)
	}
	slices.SortStableFunc(msgs, func(a, b models.Message) int {
		return a.SentAt.Compare(b.SentAt)
	})
	return msgs, nil
}

func (s *Service) authored(ctx context.Context, messageID, requesterID, action string) (models.Message, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, s.storageErr("get message", messageID, err)
	}
	if msg.AuthorID != requesterID {
		return models.Message{}, fmt.Errorf("%w: only the author may %s message %s", ErrForbidden, action, messageID)
	}
	return msg, nil
}

func (s *Service) validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > s.maxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidInput, s.maxContentLength)
	}
	return nil
}

func (s *Service) checkRoom(ctx context.Context, roomID string) error {
	if s.rooms == nil {
		return nil
	}
	exists, err := s.rooms.Exists(ctx, roomID)
	if err != nil {
		return s.storageErr("check room", roomID, err)
	}
	if !exists {
		return fmt.Errorf("%w: room %s", ErrNotFound, roomID)
	}
	return nil
}

func (s *Service) storageErr(op, id string, err error) error {
	if errors.Is(err, repositories.ErrMessageNotFound) {
		return fmt.Errorf("%w: message %s", ErrNotFound, id)
	}
	if errors.Is(err, repositories.ErrRoomNotFound) {
		return fmt.Errorf("%w: room %s", ErrNotFound, id)
	}
	s.log.Error().Err(err).Str("op", op).Str("id", id).Msg("store operation failed")
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func (s *Service) finish(span trace.Span, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = ErrorCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.IncMessageOp(op, outcome)
	span.End()
}
