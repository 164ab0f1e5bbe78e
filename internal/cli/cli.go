// SPDX-License-Identifier: AGPL-3.0-only
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fluffyriot/rpinsights/internal/api"
	"github.com/fluffyriot/rpinsights/internal/api/handlers"
	"github.com/fluffyriot/rpinsights/internal/auth"
	"github.com/fluffyriot/rpinsights/internal/cache"
	"github.com/fluffyriot/rpinsights/internal/config"
	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/fluffyriot/rpinsights/internal/exports"
	"github.com/fluffyriot/rpinsights/internal/fetcher"
	"github.com/fluffyriot/rpinsights/internal/identity"
	"github.com/fluffyriot/rpinsights/internal/logging"
	"github.com/fluffyriot/rpinsights/internal/stats"
	"github.com/fluffyriot/rpinsights/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// App holds every wired component for one process.
type App struct {
	Config      *config.AppConfig
	DB          *sql.DB
	Store       *database.Store
	Credentials *auth.CredentialStore
	Resolver    *identity.Resolver
	Graph       *fetcher.Client
	Cache       *cache.RistrettoStore
	Freshness   *cache.Freshness
	Worker      *worker.Worker
	Reconciler  *stats.Reconciler
}

func Bootstrap(cfg *config.AppConfig) (*App, error) {
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	key, err := cfg.TokenKeyBytes()
	if err != nil {
		return nil, err
	}

	db, store, err := config.LoadDatabase(cfg)
	if err != nil {
		return nil, err
	}

	creds, err := auth.NewCredentialStore(store, key)
	if err != nil {
		db.Close()
		return nil, err
	}

	memo, err := cache.NewRistrettoStore(cfg.Cache.MaxBytes, cfg.Cache.TTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	freshness := cache.NewFreshness(memo, stats.AllowedWindows)

	graph := fetcher.NewClient(cfg.Graph.Timeout,
		fetcher.WithBaseURL(cfg.Graph.BaseURL),
		fetcher.WithAPIVersion(cfg.Graph.APIVersion),
		fetcher.WithBreakerThreshold(uint32(max(cfg.Graph.BreakerThreshold, 1))),
	)

	resolver := identity.NewResolver(store)
	policy := worker.FetchPolicy{
		ItemDelay:   cfg.Sync.ItemDelay,
		ItemTimeout: cfg.Sync.ItemTimeout,
		Concurrency: cfg.Sync.Concurrency,
	}

	return &App{
		Config:      cfg,
		DB:          db,
		Store:       store,
		Credentials: creds,
		Resolver:    resolver,
		Graph:       graph,
		Cache:       memo,
		Freshness:   freshness,
		Worker:      worker.NewWorker(store, graph, creds, resolver, freshness, policy),
		Reconciler:  stats.NewReconciler(store, nil),
	}, nil
}

func (a *App) Close() {
	a.Cache.Close()
	if err := a.DB.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database")
	}
}

// Serve runs the HTTP API until SIGINT or SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)

	h := handlers.NewHandler(a.DB, a.Worker, a.Reconciler, a.Resolver, a.Freshness, a.Config.Sync.DefaultLookbackDays)
	router := api.NewRouter(h, api.RouterConfig{
		SyncSecret:    a.Config.Sync.Secret,
		TrustedHeader: a.Config.Sync.TrustedHeader,
		TrustedValue:  a.Config.Sync.TrustedValue,
		SessionSecret: []byte(a.Config.Security.SessionSecret),
		SecureCookies: a.Config.Security.SecureCookies,
	})

	srv := &http.Server{
		Addr:         a.Config.Server.Addr(),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("Server: listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("Server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// RunMediaSync runs the media job once, for one account or for every stored
// credential when account is empty, and prints the results as JSON.
func (a *App) RunMediaSync(ctx context.Context, out io.Writer, account string, lookbackDays int) error {
	if account == "" {
		results, err := a.Worker.SyncMediaAll(ctx, lookbackDays)
		if encErr := writeJSON(out, results); encErr != nil {
			return encErr
		}
		return err
	}

	res, err := a.Worker.SyncMedia(ctx, account, lookbackDays)
	if encErr := writeJSON(out, res); encErr != nil {
		return encErr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", worker.CodeOf(err), err)
	}
	return nil
}

func (a *App) RunAccountInsights(ctx context.Context, out io.Writer, debug bool) error {
	res, err := a.Worker.SyncAccountInsights(ctx, debug)
	if encErr := writeJSON(out, res); encErr != nil {
		return encErr
	}
	if err != nil {
		return fmt.Errorf("%s: %w", worker.CodeOf(err), err)
	}
	return nil
}

type trendOutput struct {
	stats.Trend
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// RunTrend prints the reconciled trend for one account as JSON or CSV. A
// follower store failure still prints the rest of the series.
func (a *App) RunTrend(ctx context.Context, out io.Writer, account string, days int, format string) error {
	switch format {
	case "", "json", "csv":
	default:
		return fmt.Errorf("unknown format %q, want json or csv", format)
	}

	id, err := a.Resolver.Resolve(ctx, account)
	if err != nil {
		return fmt.Errorf("%s: %w", worker.CodeOf(err), err)
	}

	trend, err := a.Reconciler.Trend(ctx, id, stats.SnapWindow(days))
	result := trendOutput{Trend: trend}
	if err != nil {
		if !errors.Is(err, stats.ErrFollowersQueryFailed) {
			return fmt.Errorf("%s: %w", worker.CodeOf(err), err)
		}
		logging.Warn().Err(err).Str("account", id.CanonicalID.String()).Msg("Trend: followers unavailable")
		result.Error = string(worker.CodeFollowersQueryFailed)
		result.Message = err.Error()
	}

	if format == "csv" {
		return exports.WriteTrendCSV(out, trend)
	}
	return writeJSON(out, result)
}

type AccountInput struct {
	Username  string
	IgUserID  int64
	PageID    string
	Token     string
	LegacyIDs []int64
	// ExchangeToken trades Token for a long-lived token before storing it.
	ExchangeToken bool
}

// AddAccount registers an account with its encrypted token and any extra
// numeric ids older stores still use.
func (a *App) AddAccount(ctx context.Context, out io.Writer, in AccountInput) error {
	token := in.Token
	if in.ExchangeToken {
		login := fetcher.LoginConfig(a.Config.Graph.AppID, a.Config.Graph.AppSecret, a.Config.Graph.RedirectURL)
		long, err := a.Graph.ExchangeLongLivedToken(ctx, login, in.Token)
		if err != nil {
			return fmt.Errorf("failed to exchange token: %w", err)
		}
		token = long.AccessToken
		logging.Info().Str("username", in.Username).Time("expires", long.Expiry).Msg("Exchanged long-lived token")
	}

	now := time.Now().UTC()
	acc, err := a.Store.CreateAccount(ctx, database.CreateAccountParams{
		ID:        uuid.New(),
		Username:  in.Username,
		IgUserID:  in.IgUserID,
		PageID:    in.PageID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	if err := a.Credentials.Insert(ctx, acc.ID, token, in.PageID); err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	for _, legacy := range in.LegacyIDs {
		if legacy == in.IgUserID {
			continue
		}
		if err := a.Store.AddAccountLegacyID(ctx, database.AddAccountLegacyIDParams{AccountID: acc.ID, LegacyID: legacy}); err != nil {
			return fmt.Errorf("failed to add legacy id %d: %w", legacy, err)
		}
	}

	return writeJSON(out, map[string]any{"accountId": acc.ID, "username": acc.Username, "igUserId": acc.IgUserID})
}

func writeJSON(out io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
