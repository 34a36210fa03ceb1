package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"room-chat/internal/mocks"
	"room-chat/internal/models"
	"room-chat/internal/repositories"
)

func setupRoomRouter(rooms *mocks.RoomRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/rooms/:room_id", NewRoomHandler(rooms).GetRoom)
	return r
}

func TestGetRoom(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(rooms)
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rooms.On("GetRoom", mock.Anything, "R").Return(models.Room{ID: "R", Name: "general", CreatedAt: created}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/R", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"room":{"id":"R","name":"general","created_at":"2024-03-01T12:00:00Z"}}`, rec.Body.String())
}

func TestGetRoomErrors(t *testing.T) {
	rooms := new(mocks.RoomRepositoryMock)
	router := setupRoomRouter(rooms)
	rooms.On("GetRoom", mock.Anything, "missing").Return(nil, repositories.ErrRoomNotFound).Once()
	rooms.On("GetRoom", mock.Anything, "broken").Return(nil, errors.New("conn reset")).Once()

	for path, status := range map[string]int{"/rooms/missing": http.StatusNotFound, "/rooms/broken": http.StatusServiceUnavailable} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, status, rec.Code, path)
	}
}
