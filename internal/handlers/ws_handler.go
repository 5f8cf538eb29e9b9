package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// ordersFeed streams order events to an admin dashboard until it disconnects.
func (h *api) ordersFeed(c *gin.Context) {
	if err := h.Hub.Serve(c.Writer, c.Request); err != nil {
		// the upgrader has already written the HTTP error
		h.Log.Warn("orders feed upgrade failed", slog.String("client_ip", c.ClientIP()), slog.Any("error", err))
	}
}
