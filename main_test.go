package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"room-chat/internal/config"
)

type stubPinger struct {
	err error
}

func (p stubPinger) PingContext(context.Context) error { return p.err }

func TestNewLoggerLevel(t *testing.T) {
	logger := newLogger(config.Config{LogLevel: "warn", Environment: "production"})
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())

	logger = newLogger(config.Config{LogLevel: "bogus", Environment: "production"})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]struct {
		pinger stubPinger
		status int
	}{
		"up":   {stubPinger{}, http.StatusOK},
		"down": {stubPinger{err: errors.New("down")}, http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.GET("/healthz", healthz(tc.pinger))

			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			require.Equal(t, tc.status, rec.Code)
		})
	}
}
