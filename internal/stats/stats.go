package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/fluffyriot/rpinsights/internal/helpers"
	"github.com/fluffyriot/rpinsights/internal/identity"
)

var (
	// ErrFollowersQueryFailed means the follower store could not be read,
	// typically because it is not provisioned. The rest of the trend is still valid.
	ErrFollowersQueryFailed = errors.New("followers_query_failed")
	ErrTrendQueryFailed     = errors.New("trend_query_failed")
)

type Store interface {
	ListAccountDailySnapshots(ctx context.Context, arg database.ListAccountDailySnapshotsParams) ([]database.AccountDailySnapshot, error)
	ListDailyMediaAggregates(ctx context.Context, arg database.ListDailyMediaAggregatesParams) ([]database.DailyMediaAggregate, error)
	ListDailyFollowerCounts(ctx context.Context, arg database.ListDailyFollowerCountsParams) ([]database.DailyFollowerCount, error)
}

type Point struct {
	Date         string `json:"date"`
	Reach        *int64 `json:"reach"`
	Impressions  *int64 `json:"impressions"`
	Interactions *int64 `json:"interactions"`
	Followers    *int64 `json:"followers"`
}

type KPI struct {
	Last  *int64 `json:"last"`
	Delta *int64 `json:"delta"`
}

type KPIs struct {
	Reach        KPI `json:"reach"`
	Interactions KPI `json:"interactions"`
	Followers    KPI `json:"followers"`
}

type Trend struct {
	RangeStart string  `json:"rangeStart"`
	RangeEnd   string  `json:"rangeEnd"`
	Days       int     `json:"days"`
	Points     []Point `json:"points"`
	KPI        KPIs    `json:"kpi"`
}

// Reconciler merges account snapshots, media aggregates and follower samples
// into one dense daily series.
type Reconciler struct {
	store Store
	now   func() time.Time
}

func NewReconciler(store Store, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: store, now: now}
}

// Trend builds the series for the days ending today (UTC). When only the
// follower store fails the full trend is returned together with an error
// wrapping ErrFollowersQueryFailed.
func (r *Reconciler) Trend(ctx context.Context, id identity.Identity, days int) (Trend, error) {
	days = SnapWindow(days)
	end := helpers.StartOfDay(r.now())
	start := end.AddDate(0, 0, -(days - 1))
	from, to := helpers.DayOf(start), helpers.DayOf(end)

	snapshots, err := r.store.ListAccountDailySnapshots(ctx, database.ListAccountDailySnapshotsParams{
		AccountID: id.CanonicalID,
		FromDay:   from,
		ToDay:     to,
	})
	if err != nil {
		return Trend{}, fmt.Errorf("%w: account snapshots: %w", ErrTrendQueryFailed, err)
	}

	aggregates, err := r.store.ListDailyMediaAggregates(ctx, database.ListDailyMediaAggregatesParams{
		AccountID: id.CanonicalID,
		FromDay:   from,
		ToDay:     to,
	})
	if err != nil {
		return Trend{}, fmt.Errorf("%w: media aggregates: %w", ErrTrendQueryFailed, err)
	}

	var (
		followers    []database.DailyFollowerCount
		followersErr error
	)
	if len(id.LegacyIDs) > 0 {
		followers, err = r.store.ListDailyFollowerCounts(ctx, database.ListDailyFollowerCountsParams{
			IgUserIDs: id.LegacyIDs,
			FromDay:   from,
			ToDay:     to,
		})
		if err != nil {
			followersErr = fmt.Errorf("%w: %w", ErrFollowersQueryFailed, err)
			followers = nil
		}
	}

	snapByDay := make(map[string]database.AccountDailySnapshot, len(snapshots))
	for _, s := range snapshots {
		// rows arrive ordered by updated_at, the latest write for a day wins
		snapByDay[s.Day] = s
	}
	aggByDay := make(map[string]database.DailyMediaAggregate, len(aggregates))
	for _, a := range aggregates {
		aggByDay[a.Day] = a
	}
	followersByDay := pickFollowers(followers, id)

	trend := Trend{
		RangeStart: from,
		RangeEnd:   to,
		Days:       days,
		Points:     make([]Point, 0, days),
	}
	for _, day := range helpers.DayRange(start, end) {
		p := Point{Date: day}
		snap, hasSnap := snapByDay[day]
		agg, hasAgg := aggByDay[day]

		p.Reach = pick(hasSnap, snap.Reach.Valid, snap.Reach.Int64, hasAgg, agg.Reach)
		p.Impressions = pick(hasSnap, snap.Impressions.Valid, snap.Impressions.Int64, hasAgg, agg.Impressions)
		p.Interactions = pick(hasSnap, snap.TotalInteractions.Valid, snap.TotalInteractions.Int64,
			hasAgg, agg.Likes+agg.Comments+agg.Saves+agg.Shares)
		if v, ok := followersByDay[day]; ok {
			p.Followers = ptr(v)
		}
		trend.Points = append(trend.Points, p)
	}

	trend.KPI = KPIs{
		Reach:        kpi(trend.Points, func(p Point) *int64 { return p.Reach }),
		Interactions: kpi(trend.Points, func(p Point) *int64 { return p.Interactions }),
		Followers:    kpi(trend.Points, func(p Point) *int64 { return p.Followers }),
	}
	return trend, followersErr
}

// pick prefers the snapshot value and falls back to the aggregate. Sources are
// never combined.
func pick(hasSnap, snapValid bool, snapValue int64, hasAgg bool, aggValue int64) *int64 {
	if hasSnap && snapValid {
		return ptr(snapValue)
	}
	if hasAgg {
		return ptr(aggValue)
	}
	return nil
}

// pickFollowers keeps one sample per day, preferring the primary legacy id.
func pickFollowers(rows []database.DailyFollowerCount, id identity.Identity) map[string]int64 {
	primary, _ := id.PrimaryLegacyID()
	out := make(map[string]int64)
	fromPrimary := make(map[string]bool)
	for _, row := range rows {
		if fromPrimary[row.Day] && row.IgUserID != primary {
			continue
		}
		out[row.Day] = row.FollowersCount
		if row.IgUserID == primary {
			fromPrimary[row.Day] = true
		}
	}
	return out
}

// kpi returns the last non-null value and its difference to the previous
// non-null value. Delta is nil with fewer than two values.
func kpi(points []Point, field func(Point) *int64) KPI {
	var last, prev *int64
	for _, p := range points {
		if v := field(p); v != nil {
			prev, last = last, v
		}
	}
	out := KPI{Last: last}
	if last != nil && prev != nil {
		out.Delta = ptr(*last - *prev)
	}
	return out
}

func ptr(v int64) *int64 { return &v }
