package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"room-chat/internal/models"
	"room-chat/internal/repositories"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Append(ctx context.Context, msg models.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID string) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateContent(ctx context.Context, messageID string, content string, editedAt time.Time) (models.Message, error) {
	args := m.Called(ctx, messageID, content, editedAt)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Remove(ctx context.Context, messageID string) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ListByRoom(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type ReactionLedgerMock struct {
	mock.Mock
}

func (m *ReactionLedgerMock) Toggle(ctx context.Context, messageID string, userID string, emoji string) (models.Reactions, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	var reactions models.Reactions
	if val := args.Get(0); val != nil {
		reactions = val.(models.Reactions)
	}
	return reactions, args.Error(1)
}

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) Exists(ctx context.Context, roomID string) (bool, error) {
	args := m.Called(ctx, roomID)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID string) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

type MessageServiceMock struct {
	mock.Mock
}

func (m *MessageServiceMock) Send(ctx context.Context, roomID, authorID, authorName, content string) (models.Message, error) {
	args := m.Called(ctx, roomID, authorID, authorName, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageServiceMock) Edit(ctx context.Context, messageID, requesterID, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, requesterID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageServiceMock) Delete(ctx context.Context, messageID, requesterID string) error {
	args := m.Called(ctx, messageID, requesterID)
	return args.Error(0)
}

func (m *MessageServiceMock) React(ctx context.Context, messageID, userID, emoji string) (models.Reactions, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	var reactions models.Reactions
	if val := args.Get(0); val != nil {
		reactions = val.(models.Reactions)
	}
	return reactions, args.Error(1)
}

func (m *MessageServiceMock) History(ctx context.Context, roomID string) ([]models.Message, error) {
	args := m.Called(ctx, roomID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

type EventPublisherMock struct {
	mock.Mock
}

func (m *EventPublisherMock) Publish(evt models.Event) {
	m.Called(evt)
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ReactionLedger = (*ReactionLedgerMock)(nil)
var _ repositories.RoomRepository = (*RoomRepositoryMock)(nil)
