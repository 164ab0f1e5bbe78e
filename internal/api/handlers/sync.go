package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/fluffyriot/rpinsights/internal/logging"
	"github.com/fluffyriot/rpinsights/internal/middleware"
	"github.com/gin-gonic/gin"
)

type syncMediaRequest struct {
	AccountID    string `json:"accountId"`
	LookbackDays *int   `json:"lookbackDays"`
}

// SyncMediaHandler runs the media job for one account and waits for it.
func (h *Handler) SyncMediaHandler(c *gin.Context) {
	var req syncMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		invalid(c, "request body must be JSON: "+err.Error())
		return
	}
	if req.AccountID == "" {
		req.AccountID = c.Query("accountId")
	}
	req.AccountID = strings.TrimSpace(req.AccountID)
	if req.AccountID == "" {
		invalid(c, "accountId is required")
		return
	}

	lookback := h.DefaultLookbackDays
	if req.LookbackDays != nil {
		lookback = *req.LookbackDays
	}

	logging.Info().Str("account", req.AccountID).Int("lookbackDays", lookback).Str("caller", middleware.SyncCaller(c)).Msg("MediaSync: triggered")
	res, err := h.Jobs.SyncMedia(c.Request.Context(), req.AccountID, lookback)
	if err != nil {
		fail(c, err, gin.H{"summary": res.Summary, "diagnostics": res.Diagnostics})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":           true,
		"accountId":    res.AccountID,
		"lookbackDays": res.LookbackDays,
		"summary":      res.Summary,
		"diagnostics":  res.Diagnostics,
	})
}

// SyncAccountInsightsHandler runs the account insights job over every stored
// credential. ?debug=1 adds a readback of the last week of stored rows.
func (h *Handler) SyncAccountInsightsHandler(c *gin.Context) {
	debug := c.Query("debug") == "1" || strings.EqualFold(c.Query("debug"), "true")

	logging.Info().Bool("debug", debug).Str("caller", middleware.SyncCaller(c)).Msg("AccountInsights: triggered")
	res, err := h.Jobs.SyncAccountInsights(c.Request.Context(), debug)
	if err != nil {
		fail(c, err, gin.H{"upserted": res.Upserted, "skipped": res.Skipped, "total": res.Total})
		return
	}

	body := gin.H{
		"ok":       true,
		"day":      res.Day,
		"upserted": res.Upserted,
		"skipped":  res.Skipped,
		"total":    res.Total,
		"accounts": res.Accounts,
	}
	if debug {
		body["debug"] = res.Debug
	}
	c.JSON(http.StatusOK, body)
}
