package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"room-chat/internal/telemetry"
	"room-chat/internal/ws"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, hub *ws.Hub, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/audit-test", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitter.Emit(c.Request.Context(), "INFO", "audit test", requestIDFromContext(c), c.GetString("userID"))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/debug/rooms/:room_id/members", func(c *gin.Context) {
		members := hub.Tracker().MembersOf(c.Param("room_id"))
		out := make([]gin.H, 0, len(members))
		for _, conn := range members {
			info := conn.Info()
			out = append(out, gin.H{"conn_id": info.ConnID, "user_id": info.UserID, "display_name": info.DisplayName})
		}
		c.JSON(http.StatusOK, gin.H{"room_id": c.Param("room_id"), "members": out, "connections": hub.Tracker().Len()})
	})
}
