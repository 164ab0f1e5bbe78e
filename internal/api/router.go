package api

import (
	"github.com/fluffyriot/rpinsights/internal/api/handlers"
	"github.com/fluffyriot/rpinsights/internal/middleware"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const sessionName = "rpinsights_session"

type RouterConfig struct {
	SyncSecret    string
	TrustedHeader string
	TrustedValue  string
	SessionSecret []byte
	SecureCookies bool
}

func NewRouter(h *handlers.Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.RequestLogger(), middleware.SecurityHeadersMiddleware(cfg.SecureCookies))

	store := cookie.NewStore(cfg.SessionSecret)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 3600,
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/health", h.HealthCheckHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sync := r.Group("/sync", middleware.SyncAuth(cfg.SyncSecret, cfg.TrustedHeader, cfg.TrustedValue))
	{
		sync.POST("/media", h.SyncMediaHandler)
		sync.POST("/account-insights", h.SyncAccountInsightsHandler)
	}

	account := r.Group("/", middleware.SessionAccount())
	{
		account.GET("/trend", h.TrendHandler)
		account.GET("/card", h.CardHandler)
	}

	return r
}
