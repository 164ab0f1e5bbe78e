package handlers

import (
	"errors"
	"net/http"

	"github.com/fluffyriot/rpinsights/internal/cache"
	"github.com/fluffyriot/rpinsights/internal/helpers"
	"github.com/fluffyriot/rpinsights/internal/logging"
	"github.com/fluffyriot/rpinsights/internal/metrics"
	"github.com/fluffyriot/rpinsights/internal/middleware"
	"github.com/fluffyriot/rpinsights/internal/stats"
	"github.com/fluffyriot/rpinsights/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

type trendResponse struct {
	OK bool `json:"ok"`
	stats.Trend
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// TrendHandler serves the session account's daily series for ?days=.
// Responses carry an ETag; a matching If-None-Match or fp yields 304.
func (h *Handler) TrendHandler(c *gin.Context) {
	ctx := c.Request.Context()
	days := stats.ClampWindow(c.Query("days"))

	id, err := h.Resolver.Resolve(ctx, middleware.AccountHint(c))
	if err != nil {
		fail(c, err, nil)
		return
	}

	key := cache.TrendKey(id.CanonicalID, days)
	if entry, ok := h.Freshness.Lookup(key); ok {
		h.writeCached(c, "trend", entry)
		return
	}

	trend, err := h.Trends.Trend(ctx, id, days)
	resp := trendResponse{OK: true, Trend: trend}
	partial := false
	if err != nil {
		if !errors.Is(err, stats.ErrFollowersQueryFailed) {
			fail(c, err, nil)
			return
		}
		logging.Warn().Err(err).Str("account", id.CanonicalID.String()).Msg("Trend: followers unavailable")
		resp.Error = string(worker.CodeFollowersQueryFailed)
		resp.Message = helpers.Truncate(err.Error(), maxMessage)
		partial = true
	}

	etag, err := cache.Fingerprint(trend)
	if err != nil {
		fail(c, err, nil)
		return
	}
	body, err := json.Marshal(resp)
	if err != nil {
		fail(c, err, nil)
		return
	}
	if !partial {
		h.Freshness.Remember(key, etag, body)
	}
	h.writeCached(c, "trend", cache.Entry{ETag: etag, Body: body})
}

// CardHandler returns the live profile card for the session account.
func (h *Handler) CardHandler(c *gin.Context) {
	ctx := c.Request.Context()
	hint := middleware.AccountHint(c)

	id, err := h.Resolver.Resolve(ctx, hint)
	if err != nil {
		fail(c, err, nil)
		return
	}

	key := cache.CardKey(id.CanonicalID)
	if entry, ok := h.Freshness.Lookup(key); ok {
		h.writeCached(c, "card", entry)
		return
	}

	card, err := h.Jobs.FetchProfileCard(ctx, id.CanonicalID.String())
	if err != nil {
		fail(c, err, nil)
		return
	}

	etag, err := cache.Fingerprint(card)
	if err != nil {
		fail(c, err, nil)
		return
	}
	body, err := json.Marshal(gin.H{"ok": true, "card": card})
	if err != nil {
		fail(c, err, nil)
		return
	}
	h.Freshness.Remember(key, etag, body)
	h.writeCached(c, "card", cache.Entry{ETag: etag, Body: body})
}

func (h *Handler) writeCached(c *gin.Context, route string, entry cache.Entry) {
	c.Header("ETag", entry.ETag)
	c.Header("Cache-Control", "private, no-cache")
	if cache.Matches(entry.ETag, c.GetHeader("If-None-Match"), c.Query("fp")) {
		metrics.NotModified.WithLabelValues(route).Inc()
		c.Status(http.StatusNotModified)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", entry.Body)
}
