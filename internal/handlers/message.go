package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"room-chat/internal/chat"
	"room-chat/internal/models"
	"room-chat/internal/telemetry"
)

type messageService interface {
	Send(ctx context.Context, roomID, authorID, authorName, content string) (models.Message, error)
	Edit(ctx context.Context, messageID, requesterID, content string) (models.Message, error)
	Delete(ctx context.Context, messageID, requesterID string) error
	React(ctx context.Context, messageID, userID, emoji string) (models.Reactions, error)
	History(ctx context.Context, roomID string) ([]models.Message, error)
}

// MessageHandler exposes the message lifecycle over REST for clients that
// are not holding a websocket open.
type MessageHandler struct {
	chat  messageService
	audit *telemetry.AuditEmitter
}

// NewMessageHandler constructs a MessageHandler.
func NewMessageHandler(chat messageService, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{chat: chat, audit: audit}
}

// Register wires the message routes onto group.
func (h *MessageHandler) Register(group gin.IRoutes) {
	group.GET("/rooms/:room_id/messages", h.History)
	group.POST("/rooms/:room_id/messages", h.Send)
	group.PUT("/messages/:message_id", h.Edit)
	group.DELETE("/messages/:message_id", h.Delete)
	group.POST("/messages/:message_id/react", h.React)
}

// History handles GET /rooms/:room_id/messages.
func (h *MessageHandler) History(c *gin.Context) {
	msgs, err := h.chat.History(c.Request.Context(), c.Param("room_id"))
	if err != nil {
		h.fail(c, err, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Send handles POST /rooms/:room_id/messages.
func (h *MessageHandler) Send(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.chat.Send(c.Request.Context(), c.Param("room_id"), c.GetString("userID"), c.GetString("displayName"), req.Content)
	if err != nil {
		h.fail(c, err, "could not send message")
		return
	}

	h.emitAudit(c, "INFO", "Message sent")
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// Edit handles PUT /messages/:message_id.
func (h *MessageHandler) Edit(c *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.chat.Edit(c.Request.Context(), c.Param("message_id"), c.GetString("userID"), req.Content)
	if err != nil {
		h.fail(c, err, "could not edit message")
		return
	}

	h.emitAudit(c, "INFO", "Message edited")
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// Delete handles DELETE /messages/:message_id.
func (h *MessageHandler) Delete(c *gin.Context) {
	if err := h.chat.Delete(c.Request.Context(), c.Param("message_id"), c.GetString("userID")); err != nil {
		h.fail(c, err, "could not delete message")
		return
	}

	h.emitAudit(c, "INFO", "Message deleted")
	c.Status(http.StatusNoContent)
}

// React handles POST /messages/:message_id/react.
func (h *MessageHandler) React(c *gin.Context) {
	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.emitAudit(c, "ERROR", "invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reactions, err := h.chat.React(c.Request.Context(), c.Param("message_id"), c.GetString("userID"), req.Emoji)
	if err != nil {
		h.fail(c, err, "could not react to message")
		return
	}

	h.emitAudit(c, "INFO", "Message reacted")
	c.JSON(http.StatusOK, gin.H{"message_id": c.Param("message_id"), "reactions": reactions.Clone()})
}

func (h *MessageHandler) fail(c *gin.Context, err error, fallback string) {
	status, text := http.StatusInternalServerError, fallback
	switch {
	case errors.Is(err, chat.ErrInvalidInput):
		status, text = http.StatusBadRequest, err.Error()
	case errors.Is(err, chat.ErrNotFound):
		status, text = http.StatusNotFound, "not found"
	case errors.Is(err, chat.ErrForbidden):
		status, text = http.StatusForbidden, "not allowed"
	case errors.Is(err, chat.ErrStorage):
		status = http.StatusServiceUnavailable
	}
	h.emitAudit(c, "ERROR", chat.ErrorCode(err))
	c.JSON(status, gin.H{"error": text, "code": chat.ErrorCode(err)})
}

func (h *MessageHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), c.GetString("userID"))
}
