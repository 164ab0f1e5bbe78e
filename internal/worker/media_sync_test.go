package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/fluffyriot/rpinsights/internal/auth"
	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/fluffyriot/rpinsights/internal/fetcher"
	"github.com/fluffyriot/rpinsights/internal/identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoPostsYesterday(h *harness) {
	h.graph.items = []fetcher.MediaItem{
		{ID: "m1", MediaType: "IMAGE", Timestamp: at("2024-03-09", 10), LikeCount: 10, CommentsCount: 2},
		{ID: "m2", MediaType: "VIDEO", Timestamp: at("2024-03-09", 18), LikeCount: 5, CommentsCount: 1},
	}
	h.graph.insights = map[string]fetcher.Insights{
		"m1": {Metrics: map[string]int64{fetcher.MetricReach: 100, fetcher.MetricSaved: 3, fetcher.MetricImpressions: 150}},
		"m2": {
			Metrics: map[string]int64{fetcher.MetricSaved: 1, fetcher.MetricViews: 40},
			Errors:  []fetcher.MetricError{{Metric: fetcher.MetricReach, Kind: fetcher.KindTransient, Status: 500, Message: "boom"}},
		},
	}
}

func TestSyncMediaOneInsightFailure(t *testing.T) {
	h := newHarness()
	twoPostsYesterday(h)

	res, err := h.w.SyncMedia(context.Background(), "creator", 14)
	require.NoError(t, err)

	assert.Equal(t, h.id.CanonicalID, res.AccountID)
	assert.Equal(t, 14, res.LookbackDays)
	assert.Equal(t, MediaSyncSummary{MediaFetched: 2, MediaUpserted: 2, DaysRecomputed: 1, RowsAggregated: 2}, res.Summary)
	assert.Equal(t, 1, res.Diagnostics.PerItemInsightFailures)
	require.Len(t, res.Diagnostics.ItemFailures, 1)
	assert.Equal(t, "m2", res.Diagnostics.ItemFailures[0].MediaID)
	assert.Equal(t, fetcher.MetricReach, res.Diagnostics.ItemFailures[0].Metric)
	assert.Contains(t, res.Diagnostics.FirstError, "boom")
	assert.Equal(t, "2024-02-25", h.graph.cutoff)

	agg, ok := h.store.aggregates[h.id.CanonicalID.String()+"/2024-03-09"]
	require.True(t, ok)
	assert.Equal(t, int32(2), agg.PostCount)
	assert.Equal(t, int64(15), agg.Likes)
	assert.Equal(t, int64(3), agg.Comments)
	assert.Equal(t, int64(100), agg.Reach)
	assert.Equal(t, int64(4), agg.Saves)
	assert.Equal(t, int64(190), agg.Impressions, "views stand in for missing impressions")

	m2 := h.store.media[h.id.CanonicalID.String()+"/m2"]
	assert.False(t, m2.Reach.Valid, "failed metric stays null")

	assert.Equal(t, []uuid.UUID{h.id.CanonicalID}, h.cache.accounts)
	f, ok := h.store.followers["1784/2024-03-10"]
	require.True(t, ok)
	assert.Equal(t, int64(1500), f.FollowersCount)
}

func TestSyncMediaIsIdempotent(t *testing.T) {
	h := newHarness()
	twoPostsYesterday(h)

	_, err := h.w.SyncMedia(context.Background(), "creator", 14)
	require.NoError(t, err)
	first := h.store.aggregates[h.id.CanonicalID.String()+"/2024-03-09"]

	res, err := h.w.SyncMedia(context.Background(), "creator", 14)
	require.NoError(t, err)
	second := h.store.aggregates[h.id.CanonicalID.String()+"/2024-03-09"]

	assert.Equal(t, first, second)
	assert.Len(t, h.store.media, 2)
	assert.Equal(t, 2, res.Summary.RowsAggregated)
}

func TestSyncMediaRecomputesFromStoredRows(t *testing.T) {
	h := newHarness()
	_, err := h.store.UpsertMediaRecords(context.Background(), []database.UpsertMediaRecordParams{{
		AccountID:    h.id.CanonicalID,
		MediaID:      "older",
		PublishedAt:  at("2024-03-09", 2),
		PublishedDay: "2024-03-09",
		LikeCount:    7,
	}})
	require.NoError(t, err)
	twoPostsYesterday(h)

	res, err := h.w.SyncMedia(context.Background(), "creator", 14)
	require.NoError(t, err)

	agg := h.store.aggregates[h.id.CanonicalID.String()+"/2024-03-09"]
	assert.Equal(t, int32(3), agg.PostCount)
	assert.Equal(t, int64(22), agg.Likes)
	assert.Equal(t, 3, res.Summary.RowsAggregated)
}

func TestSyncMediaSkipsTodayAndOutOfWindowDays(t *testing.T) {
	h := newHarness()
	h.graph.items = []fetcher.MediaItem{
		{ID: "today", Timestamp: at("2024-03-10", 9)},
		{ID: "old", Timestamp: at("2024-02-01", 9)},
		{ID: "inside", Timestamp: at("2024-03-01", 9)},
	}

	res, err := h.w.SyncMedia(context.Background(), "creator", 14)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Summary.MediaUpserted)
	assert.Equal(t, 1, res.Summary.DaysRecomputed)
	assert.Len(t, h.store.aggregates, 1)
	_, ok := h.store.aggregates[h.id.CanonicalID.String()+"/2024-03-01"]
	assert.True(t, ok)
}

func TestSyncMediaFailedDayIsRecorded(t *testing.T) {
	h := newHarness()
	h.graph.items = []fetcher.MediaItem{
		{ID: "a", Timestamp: at("2024-03-08", 9)},
		{ID: "b", Timestamp: at("2024-03-09", 9)},
	}
	h.store.aggErr["2024-03-08"] = errors.New("deadlock detected")

	res, err := h.w.SyncMedia(context.Background(), "creator", 14)
	require.NoError(t, err)

	assert.Equal(t, []string{"2024-03-08"}, res.Diagnostics.FailedDays)
	assert.Equal(t, 1, res.Summary.DaysRecomputed)
	assert.Contains(t, res.Diagnostics.FirstError, "deadlock")
}

func TestSyncMediaSchemaMissingIsFatal(t *testing.T) {
	h := newHarness()
	twoPostsYesterday(h)
	h.store.aggErr["2024-03-09"] = &database.SchemaMissingError{Op: "UpsertDailyMediaAggregate", Object: "daily_media_aggregates", Err: errors.New("relation does not exist")}

	_, err := h.w.SyncMedia(context.Background(), "creator", 14)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, CodeSchemaMissing, CodeOf(err))
}

func TestSyncMediaPersistenceFailure(t *testing.T) {
	h := newHarness()
	twoPostsYesterday(h)
	h.store.mediaErr = errors.New("connection reset")

	res, err := h.w.SyncMedia(context.Background(), "creator", 14)
	require.Error(t, err)
	assert.Equal(t, CodePersistence, CodeOf(err))
	assert.Equal(t, 2, res.Summary.MediaFetched)
	assert.Zero(t, res.Summary.MediaUpserted)
	assert.Empty(t, h.cache.accounts)
}

func TestSyncMediaMissingCredential(t *testing.T) {
	h := newHarness()
	delete(h.creds.tokens, h.id.CanonicalID)

	_, err := h.w.SyncMedia(context.Background(), "creator", 14)
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrMissingCredential)
	assert.Equal(t, CodeMissingCredential, CodeOf(err))
	assert.Empty(t, h.store.media)
}

func TestSyncMediaUnknownAccount(t *testing.T) {
	h := newHarness()

	_, err := h.w.SyncMedia(context.Background(), "nobody", 14)
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrAccountNotFound)
	assert.Equal(t, CodeAccountNotFound, CodeOf(err))
}

func TestSyncMediaListingFailure(t *testing.T) {
	h := newHarness()
	h.graph.pages = 2
	h.graph.listErr = &fetcher.GraphError{Kind: fetcher.KindAuthExpired, Status: 401, Code: 190, Message: "token expired"}

	res, err := h.w.SyncMedia(context.Background(), "creator", 14)
	require.Error(t, err)
	assert.Equal(t, CodeUpstreamAuthExpired, CodeOf(err))
	assert.Equal(t, 2, res.Diagnostics.PagingPages)
	assert.Contains(t, res.Diagnostics.FirstError, "token expired")
}

func TestSyncMediaProfileFailureDoesNotFailRun(t *testing.T) {
	h := newHarness()
	twoPostsYesterday(h)
	h.graph.profileErr = &fetcher.GraphError{Kind: fetcher.KindTransient, Status: 503, Message: "unavailable"}

	res, err := h.w.SyncMedia(context.Background(), "creator", 14)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.MediaUpserted)
	assert.Empty(t, h.store.followers)
}

func TestClampLookback(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, DefaultLookbackDays},
		{-5, 1},
		{1, 1},
		{14, 14},
		{90, 90},
		{400, MaxLookbackDays},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampLookback(tt.in), "lookback %d", tt.in)
	}
}

func TestSyncMediaAllContinuesPastAccountFailures(t *testing.T) {
	h := newHarness()
	twoPostsYesterday(h)
	missing := auth.Credential{AccountID: uuid.New(), Username: "ghost", IgUserID: 99}
	h.creds.list = append([]auth.Credential{missing}, h.creds.list...)

	results, err := h.w.SyncMediaAll(context.Background(), 14)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, missing.AccountID, results[0].AccountID)
	assert.NotEmpty(t, results[0].Diagnostics.FirstError)
	assert.Equal(t, 2, results[1].Summary.MediaUpserted)
}

func TestSyncMediaAllStopsOnFatal(t *testing.T) {
	h := newHarness()
	twoPostsYesterday(h)
	h.store.mediaErr = &database.SchemaMissingError{Op: "UpsertMediaRecord", Object: "media_records", Err: errors.New("relation does not exist")}
	h.creds.list = append(h.creds.list, h.creds.list[0])

	results, err := h.w.SyncMediaAll(context.Background(), 14)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Len(t, results, 1)
}
