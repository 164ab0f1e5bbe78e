package worker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fluffyriot/rpinsights/internal/auth"
	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/fluffyriot/rpinsights/internal/fetcher"
	"github.com/fluffyriot/rpinsights/internal/identity"
	"github.com/google/uuid"
)

type memStore struct {
	mu         sync.Mutex
	media      map[string]database.MediaRecord
	aggregates map[string]database.UpsertDailyMediaAggregateParams
	snapshots  map[string]database.UpsertAccountDailySnapshotParams
	followers  map[string]database.UpsertDailyFollowerCountParams

	mediaErr     error
	aggErr       map[string]error
	snapshotErr  error
	followersErr error
}

func newMemStore() *memStore {
	return &memStore{
		media:      map[string]database.MediaRecord{},
		aggregates: map[string]database.UpsertDailyMediaAggregateParams{},
		snapshots:  map[string]database.UpsertAccountDailySnapshotParams{},
		followers:  map[string]database.UpsertDailyFollowerCountParams{},
		aggErr:     map[string]error{},
	}
}

func (m *memStore) UpsertMediaRecords(_ context.Context, rows []database.UpsertMediaRecordParams) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mediaErr != nil {
		return 0, m.mediaErr
	}
	for _, r := range rows {
		m.media[r.AccountID.String()+"/"+r.MediaID] = database.MediaRecord{
			AccountID:     r.AccountID,
			MediaID:       r.MediaID,
			MediaType:     r.MediaType,
			PublishedAt:   r.PublishedAt,
			PublishedDay:  r.PublishedDay,
			LikeCount:     r.LikeCount,
			CommentsCount: r.CommentsCount,
			Reach:         r.Reach,
			Impressions:   r.Impressions,
			Saves:         r.Saves,
			Shares:        r.Shares,
			Plays:         r.Plays,
			RawPayload:    r.RawPayload,
			UpdatedAt:     r.UpdatedAt,
		}
	}
	return len(rows), nil
}

func (m *memStore) ListMediaRecordsForDay(_ context.Context, arg database.ListMediaRecordsForDayParams) ([]database.MediaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.MediaRecord
	for _, r := range m.media {
		if r.AccountID == arg.AccountID && r.PublishedDay == arg.Day {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MediaID < out[j].MediaID })
	return out, nil
}

func (m *memStore) UpsertDailyMediaAggregate(_ context.Context, arg database.UpsertDailyMediaAggregateParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.aggErr[arg.Day]; err != nil {
		return err
	}
	m.aggregates[arg.AccountID.String()+"/"+arg.Day] = arg
	return nil
}

func (m *memStore) UpsertAccountDailySnapshot(_ context.Context, arg database.UpsertAccountDailySnapshotParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshotErr != nil {
		return m.snapshotErr
	}
	m.snapshots[fmt.Sprintf("%s/%d/%s", arg.AccountID, arg.IgUserID, arg.Day)] = arg
	return nil
}

func (m *memStore) ListAccountDailySnapshots(_ context.Context, arg database.ListAccountDailySnapshotsParams) ([]database.AccountDailySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []database.AccountDailySnapshot
	for _, s := range m.snapshots {
		if s.AccountID == arg.AccountID && s.Day >= arg.FromDay && s.Day <= arg.ToDay {
			out = append(out, database.AccountDailySnapshot{AccountID: s.AccountID, IgUserID: s.IgUserID, Day: s.Day, Reach: s.Reach})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (m *memStore) UpsertDailyFollowerCount(_ context.Context, arg database.UpsertDailyFollowerCountParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.followersErr != nil {
		return m.followersErr
	}
	m.followers[fmt.Sprintf("%d/%s", arg.IgUserID, arg.Day)] = arg
	return nil
}

func (m *memStore) snapshotDays() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var days []string
	for _, s := range m.snapshots {
		days = append(days, s.Day)
	}
	sort.Strings(days)
	return days
}

type fakeGraph struct {
	mu          sync.Mutex
	items       []fetcher.MediaItem
	pages       int
	listErr     error
	exchangeErr error
	insights    map[string]fetcher.Insights
	series      map[string][]fetcher.SeriesValue
	seriesErr   map[string]error
	profile     fetcher.Profile
	profileErr  error

	insightCalls []string
	cutoff       string
}

func (g *fakeGraph) ExchangeToken(_ context.Context, accountToken, pageID string) (string, error) {
	if g.exchangeErr != nil {
		return "", g.exchangeErr
	}
	return "page:" + accountToken, nil
}

func (g *fakeGraph) ListMedia(_ context.Context, _ int64, _ string, cutoffDay string, _ int) ([]fetcher.MediaItem, int, error) {
	g.cutoff = cutoffDay
	return g.items, g.pages, g.listErr
}

func (g *fakeGraph) FetchResilientInsights(_ context.Context, mediaID, _ string, _ bool) fetcher.Insights {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.insightCalls = append(g.insightCalls, mediaID)
	if ins, ok := g.insights[mediaID]; ok {
		return ins
	}
	return fetcher.Insights{Metrics: map[string]int64{}}
}

func (g *fakeGraph) FetchAccountSeries(_ context.Context, _ int64, _ string, metric string, _, _ time.Time) ([]fetcher.SeriesValue, error) {
	if err := g.seriesErr[metric]; err != nil {
		return nil, err
	}
	return g.series[metric], nil
}

func (g *fakeGraph) FetchProfile(_ context.Context, _ int64, _ string) (fetcher.Profile, error) {
	return g.profile, g.profileErr
}

type fakeCreds struct {
	tokens        map[uuid.UUID]string
	list          []auth.Credential
	undecryptable int
	listErr       error
}

func (c *fakeCreds) Get(_ context.Context, id uuid.UUID) (string, error) {
	t, ok := c.tokens[id]
	if !ok {
		return "", fmt.Errorf("account %s: %w", id, auth.ErrMissingCredential)
	}
	return t, nil
}

func (c *fakeCreds) List(_ context.Context) ([]auth.Credential, int, error) {
	return c.list, c.undecryptable, c.listErr
}

type fakeResolver struct {
	ids map[string]identity.Identity
}

func (r *fakeResolver) Resolve(_ context.Context, hint string) (identity.Identity, error) {
	id, ok := r.ids[hint]
	if !ok {
		return identity.Identity{}, fmt.Errorf("account %q: %w", hint, identity.ErrAccountNotFound)
	}
	return id, nil
}

type recordingInvalidator struct {
	accounts []uuid.UUID
}

func (r *recordingInvalidator) InvalidateAccount(id uuid.UUID) {
	r.accounts = append(r.accounts, id)
}

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type harness struct {
	w     *Worker
	store *memStore
	graph *fakeGraph
	creds *fakeCreds
	cache *recordingInvalidator
	id    identity.Identity
}

func newHarness() *harness {
	id := identity.Identity{CanonicalID: uuid.New(), Username: "creator", PageID: "page-1", LegacyIDs: []int64{1784}}
	h := &harness{
		store: newMemStore(),
		graph: &fakeGraph{pages: 1, profile: fetcher.Profile{Username: "creator", FollowersCount: 1500}},
		creds: &fakeCreds{
			tokens: map[uuid.UUID]string{id.CanonicalID: "user-token"},
			list:   []auth.Credential{{AccountID: id.CanonicalID, Username: "creator", IgUserID: 1784, PageID: "page-1", AccessToken: "user-token"}},
		},
		cache: &recordingInvalidator{},
		id:    id,
	}
	resolver := &fakeResolver{ids: map[string]identity.Identity{
		"creator":               id,
		id.CanonicalID.String(): id,
	}}
	h.w = NewWorker(h.store, h.graph, h.creds, resolver, h.cache, FetchPolicy{Concurrency: 1})
	h.w.Now = func() time.Time { return testNow }
	return h
}

func at(day string, hour int) time.Time {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return t.Add(time.Duration(hour) * time.Hour)
}
