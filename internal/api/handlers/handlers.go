package handlers

import (
	"context"

	"github.com/fluffyriot/rpinsights/internal/cache"
	"github.com/fluffyriot/rpinsights/internal/identity"
	"github.com/fluffyriot/rpinsights/internal/stats"
	"github.com/fluffyriot/rpinsights/internal/worker"
)

// Jobs is the part of *worker.Worker the endpoints trigger.
type Jobs interface {
	SyncMedia(ctx context.Context, accountHint string, lookbackDays int) (worker.MediaSyncResult, error)
	SyncAccountInsights(ctx context.Context, debug bool) (worker.AccountInsightsResult, error)
	FetchProfileCard(ctx context.Context, hint string) (worker.ProfileCard, error)
}

type TrendReader interface {
	Trend(ctx context.Context, id identity.Identity, days int) (stats.Trend, error)
}

type Resolver interface {
	Resolve(ctx context.Context, hint string) (identity.Identity, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	DB        Pinger
	Jobs      Jobs
	Trends    TrendReader
	Resolver  Resolver
	Freshness *cache.Freshness

	DefaultLookbackDays int
}

func NewHandler(db Pinger, jobs Jobs, trends TrendReader, resolver Resolver, freshness *cache.Freshness, defaultLookback int) *Handler {
	return &Handler{
		DB:                  db,
		Jobs:                jobs,
		Trends:              trends,
		Resolver:            resolver,
		Freshness:           freshness,
		DefaultLookbackDays: defaultLookback,
	}
}
