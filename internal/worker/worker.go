package worker

import (
	"context"
	"time"

	"github.com/fluffyriot/rpinsights/internal/auth"
	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/fluffyriot/rpinsights/internal/fetcher"
	"github.com/fluffyriot/rpinsights/internal/identity"
	"github.com/google/uuid"
)

type Store interface {
	UpsertMediaRecords(ctx context.Context, rows []database.UpsertMediaRecordParams) (int, error)
	ListMediaRecordsForDay(ctx context.Context, arg database.ListMediaRecordsForDayParams) ([]database.MediaRecord, error)
	UpsertDailyMediaAggregate(ctx context.Context, arg database.UpsertDailyMediaAggregateParams) error
	UpsertAccountDailySnapshot(ctx context.Context, arg database.UpsertAccountDailySnapshotParams) error
	ListAccountDailySnapshots(ctx context.Context, arg database.ListAccountDailySnapshotsParams) ([]database.AccountDailySnapshot, error)
	UpsertDailyFollowerCount(ctx context.Context, arg database.UpsertDailyFollowerCountParams) error
}

// Graph is the subset of *fetcher.Client the jobs call.
type Graph interface {
	ExchangeToken(ctx context.Context, accountToken, pageID string) (string, error)
	ListMedia(ctx context.Context, igUserID int64, token, cutoffDay string, itemCap int) ([]fetcher.MediaItem, int, error)
	FetchResilientInsights(ctx context.Context, mediaID, token string, isVideoLike bool) fetcher.Insights
	FetchAccountSeries(ctx context.Context, igUserID int64, token, metric string, since, until time.Time) ([]fetcher.SeriesValue, error)
	FetchProfile(ctx context.Context, igUserID int64, token string) (fetcher.Profile, error)
}

type Credentials interface {
	Get(ctx context.Context, accountID uuid.UUID) (string, error)
	List(ctx context.Context) ([]auth.Credential, int, error)
}

type Resolver interface {
	Resolve(ctx context.Context, hint string) (identity.Identity, error)
}

// Invalidator drops cached reads for an account after its data changed.
type Invalidator interface {
	InvalidateAccount(account uuid.UUID)
}

// Worker runs the ingestion jobs. Every run is synchronous and scoped to the
// caller's request; there is no background scheduler.
type Worker struct {
	Store       Store
	Graph       Graph
	Credentials Credentials
	Resolver    Resolver
	Cache       Invalidator
	Policy      FetchPolicy
	Now         func() time.Time
}

func NewWorker(store Store, graph Graph, creds Credentials, resolver Resolver, cache Invalidator, policy FetchPolicy) *Worker {
	return &Worker{
		Store:       store,
		Graph:       graph,
		Credentials: creds,
		Resolver:    resolver,
		Cache:       cache,
		Policy:      policy,
		Now:         time.Now,
	}
}

func (w *Worker) now() time.Time {
	if w.Now == nil {
		return time.Now().UTC()
	}
	return w.Now().UTC()
}

func (w *Worker) invalidate(account uuid.UUID) {
	if w.Cache != nil {
		w.Cache.InvalidateAccount(account)
	}
}
