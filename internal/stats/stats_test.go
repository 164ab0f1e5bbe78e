package stats

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/fluffyriot/rpinsights/internal/identity"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	snapshots    []database.AccountDailySnapshot
	aggregates   []database.DailyMediaAggregate
	followers    []database.DailyFollowerCount
	snapErr      error
	aggErr       error
	followersErr error

	followerIDs []int64
}

func (f *fakeStore) ListAccountDailySnapshots(_ context.Context, arg database.ListAccountDailySnapshotsParams) ([]database.AccountDailySnapshot, error) {
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	var out []database.AccountDailySnapshot
	for _, s := range f.snapshots {
		if s.AccountID == arg.AccountID && s.Day >= arg.FromDay && s.Day <= arg.ToDay {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDailyMediaAggregates(_ context.Context, arg database.ListDailyMediaAggregatesParams) ([]database.DailyMediaAggregate, error) {
	if f.aggErr != nil {
		return nil, f.aggErr
	}
	var out []database.DailyMediaAggregate
	for _, a := range f.aggregates {
		if a.AccountID == arg.AccountID && a.Day >= arg.FromDay && a.Day <= arg.ToDay {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListDailyFollowerCounts(_ context.Context, arg database.ListDailyFollowerCountsParams) ([]database.DailyFollowerCount, error) {
	f.followerIDs = arg.IgUserIDs
	if f.followersErr != nil {
		return nil, f.followersErr
	}
	var out []database.DailyFollowerCount
	for _, r := range f.followers {
		if r.Day >= arg.FromDay && r.Day <= arg.ToDay {
			out = append(out, r)
		}
	}
	return out, nil
}

var fixedNow = time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func nullInt(v int64) sql.NullInt64 { return sql.NullInt64{Int64: v, Valid: true} }

func testIdentity() identity.Identity {
	return identity.Identity{CanonicalID: uuid.New(), Username: "creator", LegacyIDs: []int64{1784, 55}}
}

func TestClampWindow(t *testing.T) {
	cases := map[string]int{
		"":     30,
		"abc":  30,
		"0":    30,
		"-4":   30,
		"7":    7,
		"1":    7,
		"8":    14,
		"30":   30,
		"45":   60,
		"91":   365,
		"365":  365,
		"1000": 365,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ClampWindow(raw), raw)
	}
}

func TestTrendIsDense(t *testing.T) {
	id := testIdentity()
	store := &fakeStore{
		aggregates: []database.DailyMediaAggregate{
			{AccountID: id.CanonicalID, Day: "2024-03-05", PostCount: 1, Likes: 10, Comments: 2, Reach: 90},
		},
	}
	r := NewReconciler(store, clock)

	trend, err := r.Trend(context.Background(), id, 7)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", trend.RangeStart)
	assert.Equal(t, "2024-03-10", trend.RangeEnd)
	require.Len(t, trend.Points, 7)
	for i, p := range trend.Points {
		want := time.Date(2024, 3, 4+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		assert.Equal(t, want, p.Date)
	}
	assert.Nil(t, trend.Points[0].Reach)
	require.NotNil(t, trend.Points[1].Reach)
	assert.Equal(t, int64(90), *trend.Points[1].Reach)
	assert.Equal(t, int64(12), *trend.Points[1].Interactions)
	assert.Equal(t, []int64{1784, 55}, store.followerIDs)
}

func TestTrendWindowSnapsToAllowedValue(t *testing.T) {
	r := NewReconciler(&fakeStore{}, clock)
	trend, err := r.Trend(context.Background(), testIdentity(), 10)
	require.NoError(t, err)
	assert.Len(t, trend.Points, 14)
	assert.Equal(t, 14, trend.Days)
}

func TestSnapshotTakesPrecedenceOverAggregate(t *testing.T) {
	id := testIdentity()
	store := &fakeStore{
		snapshots: []database.AccountDailySnapshot{
			{AccountID: id.CanonicalID, IgUserID: 1784, Day: "2024-03-08", Reach: nullInt(500), TotalInteractions: nullInt(40)},
		},
		aggregates: []database.DailyMediaAggregate{
			{AccountID: id.CanonicalID, Day: "2024-03-08", Likes: 100, Comments: 10, Saves: 5, Shares: 1, Reach: 300, Impressions: 700},
		},
	}
	trend, err := NewReconciler(store, clock).Trend(context.Background(), id, 7)
	require.NoError(t, err)

	p := trend.Points[4]
	require.Equal(t, "2024-03-08", p.Date)
	assert.Equal(t, int64(40), *p.Interactions)
	assert.Equal(t, int64(500), *p.Reach)
	// snapshot has no impressions, so the aggregate fills that field alone
	assert.Equal(t, int64(700), *p.Impressions)
}

func TestKPIDelta(t *testing.T) {
	id := testIdentity()
	store := &fakeStore{
		snapshots: []database.AccountDailySnapshot{
			{AccountID: id.CanonicalID, Day: "2024-03-06", Reach: nullInt(100)},
			{AccountID: id.CanonicalID, Day: "2024-03-07", Reach: nullInt(100)},
			{AccountID: id.CanonicalID, Day: "2024-03-09", Reach: nullInt(120)},
		},
		followers: []database.DailyFollowerCount{
			{IgUserID: 1784, Day: "2024-03-10", FollowersCount: 1000},
		},
	}
	trend, err := NewReconciler(store, clock).Trend(context.Background(), id, 7)
	require.NoError(t, err)

	require.NotNil(t, trend.KPI.Reach.Delta)
	assert.Equal(t, int64(20), *trend.KPI.Reach.Delta)
	assert.Equal(t, int64(120), *trend.KPI.Reach.Last)

	assert.Equal(t, int64(1000), *trend.KPI.Followers.Last)
	assert.Nil(t, trend.KPI.Followers.Delta)

	assert.Nil(t, trend.KPI.Interactions.Last)
	assert.Nil(t, trend.KPI.Interactions.Delta)
}

func TestFollowersPreferPrimaryLegacyID(t *testing.T) {
	id := testIdentity()
	store := &fakeStore{
		followers: []database.DailyFollowerCount{
			{IgUserID: 1784, Day: "2024-03-09", FollowersCount: 900},
			{IgUserID: 55, Day: "2024-03-09", FollowersCount: 10},
			{IgUserID: 55, Day: "2024-03-08", FollowersCount: 11},
		},
	}
	trend, err := NewReconciler(store, clock).Trend(context.Background(), id, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(11), *trend.Points[4].Followers)
	assert.Equal(t, int64(900), *trend.Points[5].Followers)
}

func TestMissingFollowerStoreIsDistinctError(t *testing.T) {
	id := testIdentity()
	store := &fakeStore{
		snapshots: []database.AccountDailySnapshot{
			{AccountID: id.CanonicalID, Day: "2024-03-09", Reach: nullInt(321), TotalInteractions: nullInt(12)},
		},
		followersErr: database.Classify("list follower counts", &pq.Error{Code: "42P01", Message: `relation "daily_follower_counts" does not exist`}),
	}
	trend, err := NewReconciler(store, clock).Trend(context.Background(), id, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFollowersQueryFailed)
	assert.ErrorIs(t, err, database.ErrSchemaMissing)
	assert.NotErrorIs(t, err, ErrTrendQueryFailed)

	require.Len(t, trend.Points, 7)
	assert.Equal(t, int64(321), *trend.Points[5].Reach)
	assert.Equal(t, int64(12), *trend.Points[5].Interactions)
	assert.Nil(t, trend.Points[5].Followers)
	assert.Equal(t, int64(321), *trend.KPI.Reach.Last)
}

func TestOtherStoreFailuresAreGeneric(t *testing.T) {
	id := testIdentity()
	for _, store := range []*fakeStore{
		{snapErr: errors.New("boom")},
		{aggErr: errors.New("boom")},
	} {
		_, err := NewReconciler(store, clock).Trend(context.Background(), id, 7)
		assert.ErrorIs(t, err, ErrTrendQueryFailed)
		assert.NotErrorIs(t, err, ErrFollowersQueryFailed)
	}
}

func TestNoLegacyIDsSkipsFollowerStore(t *testing.T) {
	id := testIdentity()
	id.LegacyIDs = nil
	store := &fakeStore{followersErr: errors.New("should not be called")}
	trend, err := NewReconciler(store, clock).Trend(context.Background(), id, 7)
	require.NoError(t, err)
	assert.Len(t, trend.Points, 7)
}
