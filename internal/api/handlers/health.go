// SPDX-License-Identifier: AGPL-3.0-only
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/fluffyriot/rpinsights/internal/helpers"
	"github.com/fluffyriot/rpinsights/internal/middleware"
	"github.com/gin-gonic/gin"
)

const (
	healthTimeout       = 2 * time.Second
	codeDatabaseDown    = "database_unavailable"
	codeDatabaseMissing = "database_not_configured"
)

// HealthCheckHandler pings the database. Failures use the shared error
// envelope with 503 so load balancers take the instance out.
func (h *Handler) HealthCheckHandler(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, middleware.ErrorBody(codeDatabaseMissing, "database connection not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	start := time.Now()
	if err := h.DB.PingContext(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, middleware.ErrorBody(codeDatabaseDown, helpers.Truncate("database ping failed: "+err.Error(), maxMessage)))
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "dbLatencyMs": time.Since(start).Milliseconds()})
}
