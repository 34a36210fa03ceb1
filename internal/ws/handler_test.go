package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-chat/internal/chat"
	"room-chat/internal/repositories"
)

type frame struct {
	Type      string          `json:"type"`
	Action    string          `json:"action"`
	RequestID string          `json:"request_id"`
	OK        bool            `json:"ok"`
	Code      string          `json:"code"`
	RoomID    string          `json:"room_id"`
	UserID    string          `json:"user_id"`
	Message   json.RawMessage `json:"message"`
	Joined    *bool           `json:"joined"`
}

type knownRooms map[string]bool

func (k knownRooms) Exists(_ context.Context, roomID string) (bool, error) {
	return k[roomID], nil
}

func setupWSServer(t *testing.T) *httptest.Server {
	t.Helper()
	return setupWSServerWithRooms(t, nil)
}

func setupWSServerWithRooms(t *testing.T, rooms chat.RoomChecker) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)

	hub := NewHub(NewTracker(), zerolog.Nop())
	repo := repositories.NewBadgerMessageRepo(db)
	svc := chat.NewService(repo, repo, hub, zerolog.Nop(), chat.Config{Rooms: rooms})
	handler := NewHandler(hub, svc, nil, nil, zerolog.Nop(), HandlerConfig{ActionTimeout: 5 * time.Second, Rooms: rooms})

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		if user := c.Query("user"); user != "" {
			c.Set("userID", user)
			c.Set("displayName", strings.ToUpper(user))
		}
		c.Next()
	}, handler.Handle)

	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		hub.Close()
		_ = db.Close()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads frames until match returns true. Acks and room events share
// the socket, so their relative order is not fixed.
func readUntil(t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		if match(f) {
			return f
		}
	}
}

func isAck(requestID string) func(frame) bool {
	return func(f frame) bool { return f.Type == "ack" && f.RequestID == requestID }
}

func TestHandleRejectsAnonymous(t *testing.T) {
	srv := setupWSServer(t)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleJoinSendAndBroadcast(t *testing.T) {
	srv := setupWSServer(t)
	alice := dial(t, srv, "user=alice")
	bob := dial(t, srv, "user=bob&room_id=R")

	// bob was joined from the query string, so an explicit join is a no-op.
	require.NoError(t, bob.WriteJSON(Action{Action: "join", RequestID: "b0", RoomID: "R"}))
	ack := readUntil(t, bob, isAck("b0"))
	require.NotNil(t, ack.Joined)
	assert.False(t, *ack.Joined)

	require.NoError(t, alice.WriteJSON(Action{Action: "join", RequestID: "j1", RoomID: "R"}))
	ack = readUntil(t, alice, isAck("j1"))
	assert.True(t, ack.OK)
	require.NotNil(t, ack.Joined)
	assert.True(t, *ack.Joined)

	joined := readUntil(t, bob, func(f frame) bool { return f.Type == "user_joined" && f.UserID == "alice" })
	assert.Equal(t, "R", joined.RoomID)

	require.NoError(t, alice.WriteJSON(Action{Action: "send", RequestID: "s1", RoomID: "R", Content: "hello"}))
	ack = readUntil(t, alice, isAck("s1"))
	assert.True(t, ack.OK)

	created := readUntil(t, bob, func(f frame) bool { return f.Type == "message_created" })
	assert.Equal(t, "R", created.RoomID)
	assert.Contains(t, string(created.Message), `"content":"hello"`)
	assert.Contains(t, string(created.Message), `"author_id":"alice"`)
}

func TestHandleReportsErrors(t *testing.T) {
	srv := setupWSServer(t)
	conn := dial(t, srv, "user=alice")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	ack := readUntil(t, conn, func(f frame) bool { return f.Type == "ack" })
	assert.False(t, ack.OK)
	assert.Equal(t, "invalid_input", ack.Code)

	require.NoError(t, conn.WriteJSON(Action{Action: "shout", RequestID: "x1"}))
	ack = readUntil(t, conn, isAck("x1"))
	assert.Equal(t, "invalid_input", ack.Code)

	require.NoError(t, conn.WriteJSON(Action{Action: "send", RequestID: "x2", RoomID: "R", Content: "  "}))
	ack = readUntil(t, conn, isAck("x2"))
	assert.Equal(t, "invalid_input", ack.Code)

	require.NoError(t, conn.WriteJSON(Action{Action: "typing", RequestID: "x3", RoomID: "R"}))
	ack = readUntil(t, conn, isAck("x3"))
	assert.Equal(t, "not_joined", ack.Code)

	require.NoError(t, conn.WriteJSON(Action{Action: "delete", RequestID: "x4", MessageID: "missing"}))
	ack = readUntil(t, conn, isAck("x4"))
	assert.Equal(t, "not_found", ack.Code)
}

func TestHandleJoinRejectsUnknownRoom(t *testing.T) {
	srv := setupWSServerWithRooms(t, knownRooms{"R": true})
	conn := dial(t, srv, "user=alice&room_id=ghost")

	require.NoError(t, conn.WriteJSON(Action{Action: "typing", RequestID: "t0", RoomID: "ghost"}))
	ack := readUntil(t, conn, isAck("t0"))
	assert.Equal(t, "not_joined", ack.Code, "query string join of an unknown room must not take effect")

	require.NoError(t, conn.WriteJSON(Action{Action: "join", RequestID: "j0", RoomID: "ghost"}))
	ack = readUntil(t, conn, isAck("j0"))
	assert.False(t, ack.OK)
	assert.Equal(t, "not_found", ack.Code)
	assert.Nil(t, ack.Joined)

	require.NoError(t, conn.WriteJSON(Action{Action: "join", RequestID: "j1", RoomID: "R"}))
	ack = readUntil(t, conn, isAck("j1"))
	assert.True(t, ack.OK)
	require.NotNil(t, ack.Joined)
	assert.True(t, *ack.Joined)
}
