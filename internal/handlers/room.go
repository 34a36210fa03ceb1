package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"room-chat/internal/models"
	"room-chat/internal/repositories"
)

type roomLookup interface {
	GetRoom(ctx context.Context, roomID string) (models.Room, error)
}

// RoomHandler serves read-only room metadata.
type RoomHandler struct {
	rooms roomLookup
}

// NewRoomHandler constructs a RoomHandler.
func NewRoomHandler(rooms roomLookup) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// GetRoom handles GET /rooms/:room_id.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.rooms.GetRoom(c.Request.Context(), c.Param("room_id"))
	if errors.Is(err, repositories.ErrRoomNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to load room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}
