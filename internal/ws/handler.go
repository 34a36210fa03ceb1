package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"room-chat/internal/chat"
	"room-chat/internal/models"
	"room-chat/internal/observability"
	"room-chat/internal/telemetry"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second
	// Send pings to the peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum inbound frame size.
	maxMessageSize = 16 * 1024

	defaultActionTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type chatService interface {
	Send(ctx context.Context, roomID, authorID, authorName, content string) (models.Message, error)
	Edit(ctx context.Context, messageID, requesterID, content string) (models.Message, error)
	Delete(ctx context.Context, messageID, requesterID string) error
	React(ctx context.Context, messageID, userID, emoji string) (models.Reactions, error)
	History(ctx context.Context, roomID string) ([]models.Message, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Action is an inbound client frame.
type Action struct {
	Action    string `json:"action" validate:"required,oneof=send edit delete react join leave typing history"`
	RequestID string `json:"request_id,omitempty" validate:"max=128"`
	RoomID    string `json:"room_id,omitempty" validate:"max=128"`
	MessageID string `json:"message_id,omitempty" validate:"max=128"`
	Content   string `json:"content,omitempty"`
	Emoji     string `json:"emoji,omitempty"`
}

// HandlerConfig tunes the websocket transport.
type HandlerConfig struct {
	SendBuffer    int
	ActionTimeout time.Duration
	// Rooms is consulted before a join. Nil accepts any room id.
	Rooms chat.RoomChecker
}

// Handler upgrades authenticated requests and dispatches their actions.
type Handler struct {
	hub      *Hub
	chat     chatService
	audit    *telemetry.AuditEmitter
	events   eventPublisher
	validate *validator.Validate
	log      zerolog.Logger
	cfg      HandlerConfig
}

// NewHandler constructs a Handler. audit and events may be nil.
func NewHandler(hub *Hub, chat chatService, audit *telemetry.AuditEmitter, events eventPublisher, log zerolog.Logger, cfg HandlerConfig) *Handler {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = defaultActionTimeout
	}
	return &Handler{
		hub:      hub,
		chat:     chat,
		audit:    audit,
		events:   events,
		validate: validator.New(),
		log:      log.With().Str("component", "ws").Logger(),
		cfg:      cfg,
	}
}

// Handle upgrades the connection, registers it and optionally joins the rooms
// named by repeated room_id query parameters.
func (h *Handler) Handle(c *gin.Context) {
	userID := c.GetString("userID")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}

	ctx, span := otel.Tracer("room-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()

	wsConn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DisplayName: c.GetString("displayName"),
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	conn := NewConn(info, h.cfg.SendBuffer)
	h.hub.Register(conn)

	observability.IncWSActive("room")
	observability.IncWSEvent("room", "ws_connect")
	h.publishWSEvent(ctx, info, "ws_connect", "", nil)

	for _, roomID := range c.QueryArray("room_id") {
		if _, err := h.join(ctx, conn.ID(), roomID); err != nil {
			h.log.Warn().Err(err).Str("conn_id", conn.ID()).Str("room_id", roomID).Msg("auto join failed")
		}
	}

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Conn) {
	info := conn.Info()
	var closeReason string
	defer func() {
		rooms := h.hub.Tracker().RoomsOf(conn.ID())
		h.hub.Disconnect(conn.ID())
		conn.Close()
		wsConn.Close()
		observability.DecWSActive("room")
		observability.IncWSEvent("room", "ws_disconnect")
		h.publishWSEvent(context.Background(), info, "ws_disconnect", closeReason, rooms)
	}()

	wsConn.SetReadLimit(maxMessageSize)
	_ = wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		return wsConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("room", "ws_error")
				h.log.Warn().Err(err).Str("conn_id", conn.ID()).Msg("websocket read error")
			}
			return
		}

		reply := h.handleFrame(conn, data)
		if err := conn.Reply(reply); err != nil {
			h.log.Warn().Err(err).Str("conn_id", conn.ID()).Str("action", reply.Action).Msg("could not queue reply")
		}
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case evt := <-conn.Events():
			if err := h.writeJSON(wsConn, evt); err != nil {
				return
			}
		case reply := <-conn.Replies():
			if err := h.writeJSON(wsConn, reply); err != nil {
				return
			}
		case <-conn.Done():
			_ = wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = wsConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			_ = wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeJSON(wsConn *websocket.Conn, v any) error {
	_ = wsConn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := wsConn.WriteJSON(v); err != nil {
		h.log.Debug().Err(err).Msg("websocket write error")
		return err
	}
	return nil
}

func (h *Handler) handleFrame(conn *Conn, data []byte) Reply {
	var action Action
	if err := json.Unmarshal(data, &action); err != nil {
		return Reply{Code: "invalid_input", Error: "malformed action"}
	}
	reply := Reply{RequestID: action.RequestID, Action: action.Action}
	if err := h.validate.Struct(action); err != nil {
		reply.Code = "invalid_input"
		reply.Error = err.Error()
		return reply
	}

	// Actions outlive the connection that issued them.
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.ActionTimeout)
	defer cancel()

	err := h.dispatch(ctx, conn, action, &reply)
	if err != nil {
		reply.Code = errorCode(err)
		reply.Error = err.Error()
	} else {
		reply.OK = true
	}
	h.emitAudit(ctx, conn, action, err)
	return reply
}

func (h *Handler) dispatch(ctx context.Context, conn *Conn, action Action, reply *Reply) error {
	info := conn.Info()
	switch action.Action {
	case "send":
		if err := h.require(action.RoomID, "room_id"); err != nil {
			return err
		}
		msg, err := h.chat.Send(ctx, action.RoomID, info.UserID, info.DisplayName, action.Content)
		if err != nil {
			return err
		}
		reply.Message = &msg
	case "edit":
		if err := h.require(action.MessageID, "message_id"); err != nil {
			return err
		}
		msg, err := h.chat.Edit(ctx, action.MessageID, info.UserID, action.Content)
		if err != nil {
			return err
		}
		reply.Message = &msg
	case "delete":
		if err := h.require(action.MessageID, "message_id"); err != nil {
			return err
		}
		return h.chat.Delete(ctx, action.MessageID, info.UserID)
	case "react":
		if err := h.require(action.MessageID, "message_id"); err != nil {
			return err
		}
		reactions, err := h.chat.React(ctx, action.MessageID, info.UserID, action.Emoji)
		if err != nil {
			return err
		}
		reply.Reactions = &reactions
	case "history":
		if err := h.require(action.RoomID, "room_id"); err != nil {
			return err
		}
		msgs, err := h.chat.History(ctx, action.RoomID)
		if err != nil {
			return err
		}
		reply.Messages = msgs
	case "join":
		if err := h.require(action.RoomID, "room_id"); err != nil {
			return err
		}
		added, err := h.join(ctx, conn.ID(), action.RoomID)
		if err != nil {
			return err
		}
		reply.Joined = &added
	case "leave":
		if err := h.require(action.RoomID, "room_id"); err != nil {
			return err
		}
		h.hub.Leave(conn.ID(), action.RoomID)
	case "typing":
		if err := h.require(action.RoomID, "room_id"); err != nil {
			return err
		}
		return h.hub.Typing(conn.ID(), action.RoomID)
	}
	return nil
}

func (h *Handler) join(ctx context.Context, connID, roomID string) (bool, error) {
	if h.cfg.Rooms != nil {
		exists, err := h.cfg.Rooms.Exists(ctx, roomID)
		if err != nil {
			return false, fmt.Errorf("%w: check room: %w", chat.ErrStorage, err)
		}
		if !exists {
			return false, fmt.Errorf("%w: room %s", chat.ErrNotFound, roomID)
		}
	}
	return h.hub.Join(connID, roomID)
}

func (h *Handler) require(value, field string) error {
	if err := h.validate.Var(value, "required"); err != nil {
		return fmt.Errorf("%w: %s is required", chat.ErrInvalidInput, field)
	}
	return nil
}

func (h *Handler) emitAudit(ctx context.Context, conn *Conn, action Action, err error) {
	if h.audit == nil {
		return
	}
	switch action.Action {
	case "send", "edit", "delete", "react":
	default:
		return
	}
	level, text := "INFO", "ws "+action.Action
	if err != nil {
		level, text = "ERROR", "ws "+action.Action+": "+errorCode(err)
	}
	info := conn.Info()
	h.audit.Emit(ctx, level, text, info.RequestID, info.UserID)
}

func (h *Handler) publishWSEvent(ctx context.Context, info ConnInfo, name, reason string, rooms []string) {
	if h.events == nil {
		return
	}
	envelope := observability.NewWSEnvelope(name,
		observability.WSDetails{
			Kind:       "room",
			ConnID:     info.ConnID,
			DurationMs: time.Since(info.ConnectedAt).Milliseconds(),
			Reason:     reason,
			Rooms:      rooms,
		},
		observability.Identity{UserID: info.UserID, DeviceID: info.DeviceID, IP: info.IP},
		observability.BuildHeaders(info.RequestID, info.TraceID),
		time.Now(),
	)
	if err := h.events.Publish(ctx, wsRoutingKey, envelope); err != nil {
		observability.IncAMQPPublishError()
		h.log.Warn().Err(err).Str("event", name).Msg("ws event publish failed")
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotJoined):
		return "not_joined"
	case errors.Is(err, ErrUnknownConnection):
		return "internal"
	default:
		return chat.ErrorCode(err)
	}
}
