package worker

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/fluffyriot/rpinsights/internal/fetcher"
	"github.com/fluffyriot/rpinsights/internal/helpers"
	"github.com/fluffyriot/rpinsights/internal/identity"
	"github.com/fluffyriot/rpinsights/internal/logging"
	"github.com/fluffyriot/rpinsights/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	DefaultLookbackDays = 30
	MaxLookbackDays     = 90
	MediaItemCap        = 300

	maxReportedItemFailures = 20
)

type MediaSyncSummary struct {
	MediaFetched   int `json:"mediaFetched"`
	MediaUpserted  int `json:"mediaUpserted"`
	DaysRecomputed int `json:"daysRecomputed"`
	RowsAggregated int `json:"rowsAggregated"`
}

type ItemFailure struct {
	MediaID string `json:"mediaId"`
	Metric  string `json:"metric,omitempty"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

type MediaSyncDiagnostics struct {
	PagingPages            int           `json:"pagingPages"`
	PerItemInsightFailures int           `json:"perItemInsightFailures"`
	ItemFailures           []ItemFailure `json:"itemFailures,omitempty"`
	FailedDays             []string      `json:"failedDays,omitempty"`
	FirstError             string        `json:"firstError,omitempty"`
}

type MediaSyncResult struct {
	AccountID    uuid.UUID            `json:"accountId"`
	Username     string               `json:"username,omitempty"`
	LookbackDays int                  `json:"lookbackDays"`
	Summary      MediaSyncSummary     `json:"summary"`
	Diagnostics  MediaSyncDiagnostics `json:"diagnostics"`
}

func (d *MediaSyncDiagnostics) noteError(msg string) {
	if d.FirstError == "" {
		d.FirstError = helpers.Truncate(msg, 200)
	}
}

// ClampLookback bounds a requested lookback to 1..MaxLookbackDays, using
// DefaultLookbackDays when none was given.
func ClampLookback(days int) int {
	if days == 0 {
		return DefaultLookbackDays
	}
	return helpers.ClampInt(days, 1, MaxLookbackDays)
}

// SyncMedia pulls recent posts and their insights for one account, upserts
// them and recomputes the daily aggregate of every touched completed day from
// all stored rows of that day.
func (w *Worker) SyncMedia(ctx context.Context, accountHint string, lookbackDays int) (MediaSyncResult, error) {
	start := time.Now()
	res, err := w.syncMedia(ctx, accountHint, ClampLookback(lookbackDays))
	metrics.JobDuration.WithLabelValues("media_sync").Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = string(CodeOf(err))
		res.Diagnostics.noteError(err.Error())
	}
	metrics.JobRuns.WithLabelValues("media_sync", outcome).Inc()
	return res, err
}

func (w *Worker) syncMedia(ctx context.Context, accountHint string, lookback int) (MediaSyncResult, error) {
	res := MediaSyncResult{LookbackDays: lookback}

	id, err := w.Resolver.Resolve(ctx, accountHint)
	if err != nil {
		return res, err
	}
	res.AccountID = id.CanonicalID
	res.Username = id.Username
	log := logging.With().Str("account", id.CanonicalID.String()).Logger()

	igUserID, ok := id.PrimaryLegacyID()
	if !ok {
		return res, fmt.Errorf("account %s has no numeric id: %w", id.CanonicalID, identity.ErrAccountNotFound)
	}

	token, err := w.Credentials.Get(ctx, id.CanonicalID)
	if err != nil {
		log.Warn().Err(err).Msg("MediaSync: skipping account without credential")
		return res, err
	}
	pageToken, err := w.Graph.ExchangeToken(ctx, token, id.PageID)
	if err != nil {
		log.Warn().Err(err).Msg("MediaSync: token exchange failed")
		return res, err
	}

	w.captureFromProfile(ctx, id, pageToken)

	now := w.now()
	today := helpers.DayOf(now)
	cutoff := helpers.DayOf(now.AddDate(0, 0, -lookback))
	yesterday := helpers.DayOf(now.AddDate(0, 0, -1))

	items, pages, err := w.Graph.ListMedia(ctx, igUserID, pageToken, cutoff, MediaItemCap)
	res.Diagnostics.PagingPages = pages
	if err != nil {
		log.Error().Err(err).Int("pages", pages).Msg("MediaSync: listing failed")
		return res, err
	}
	res.Summary.MediaFetched = len(items)

	insights := make([]fetcher.Insights, len(items))
	err = w.Policy.ForEach(ctx, len(items), func(ictx context.Context, i int) {
		insights[i] = w.Graph.FetchResilientInsights(ictx, items[i].ID, pageToken, items[i].IsVideoLike())
	})
	if err != nil {
		return res, err
	}

	rows := make([]database.UpsertMediaRecordParams, 0, len(items))
	for i, item := range items {
		ins := insights[i]
		if f := ins.FirstFailure(); f != nil {
			res.Diagnostics.PerItemInsightFailures++
			if len(res.Diagnostics.ItemFailures) < maxReportedItemFailures {
				res.Diagnostics.ItemFailures = append(res.Diagnostics.ItemFailures, ItemFailure{
					MediaID: item.ID,
					Metric:  f.Metric,
					Status:  f.Status,
					Message: helpers.Truncate(f.Message, 200),
				})
			}
			res.Diagnostics.noteError(fmt.Sprintf("insights %s %s: %s", item.ID, f.Metric, f.Message))
		}
		rows = append(rows, mediaRow(id.CanonicalID, item, ins, now))
	}

	n, err := w.Store.UpsertMediaRecords(ctx, rows)
	if err != nil {
		log.Error().Err(err).Int("rows", len(rows)).Msg("MediaSync: media upsert failed")
		if IsFatal(err) {
			return res, err
		}
		return res, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	res.Summary.MediaUpserted = n
	metrics.MediaUpserted.Add(float64(n))

	for _, day := range touchedDays(items, cutoff, yesterday) {
		rowsAggregated, err := w.recomputeDay(ctx, id.CanonicalID, day)
		if err != nil {
			if IsFatal(err) {
				return res, err
			}
			log.Warn().Err(err).Str("day", day).Msg("MediaSync: aggregate recompute failed")
			res.Diagnostics.FailedDays = append(res.Diagnostics.FailedDays, day)
			res.Diagnostics.noteError(fmt.Sprintf("aggregate %s: %v", day, err))
			continue
		}
		res.Summary.DaysRecomputed++
		res.Summary.RowsAggregated += rowsAggregated
	}

	w.invalidate(id.CanonicalID)
	log.Info().
		Int("fetched", res.Summary.MediaFetched).
		Int("upserted", res.Summary.MediaUpserted).
		Int("days", res.Summary.DaysRecomputed).
		Int("insightFailures", res.Diagnostics.PerItemInsightFailures).
		Str("today", today).
		Msg("MediaSync: account done")
	return res, nil
}

// recomputeDay rebuilds the aggregate for day from every stored media row of
// that day, not only the rows fetched in this run.
func (w *Worker) recomputeDay(ctx context.Context, account uuid.UUID, day string) (int, error) {
	records, err := w.Store.ListMediaRecordsForDay(ctx, database.ListMediaRecordsForDayParams{
		AccountID: account,
		Day:       day,
	})
	if err != nil {
		return 0, err
	}
	if err := w.Store.UpsertDailyMediaAggregate(ctx, Aggregate(account, day, records)); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Aggregate sums one day's media rows. Missing insight values count as zero.
func Aggregate(account uuid.UUID, day string, records []database.MediaRecord) database.UpsertDailyMediaAggregateParams {
	agg := database.UpsertDailyMediaAggregateParams{
		AccountID: account,
		Day:       day,
		PostCount: int32(len(records)),
	}
	for _, r := range records {
		agg.Likes += r.LikeCount
		agg.Comments += r.CommentsCount
		agg.Saves += r.Saves.Int64
		agg.Shares += r.Shares.Int64
		agg.Reach += r.Reach.Int64
		agg.Impressions += r.Impressions.Int64
		agg.Plays += r.Plays.Int64
	}
	return agg
}

func mediaRow(account uuid.UUID, item fetcher.MediaItem, ins fetcher.Insights, now time.Time) database.UpsertMediaRecordParams {
	raw := item.Raw
	if len(raw) == 0 {
		raw, _ = json.Marshal(map[string]string{"id": item.ID})
	}
	impressions := nullable(ins, fetcher.MetricImpressions)
	if !impressions.Valid {
		impressions = nullable(ins, fetcher.MetricViews)
	}
	return database.UpsertMediaRecordParams{
		AccountID:     account,
		MediaID:       item.ID,
		MediaType:     item.MediaType,
		Permalink:     item.Permalink,
		Caption:       item.Caption,
		PublishedAt:   item.Timestamp,
		PublishedDay:  helpers.DayOf(item.Timestamp),
		LikeCount:     item.LikeCount,
		CommentsCount: item.CommentsCount,
		Reach:         nullable(ins, fetcher.MetricReach),
		Impressions:   impressions,
		Saves:         nullable(ins, fetcher.MetricSaved),
		Shares:        nullable(ins, fetcher.MetricShares),
		Plays:         nullable(ins, fetcher.MetricPlays),
		RawPayload:    raw,
		UpdatedAt:     now,
	}
}

func nullable(ins fetcher.Insights, metric string) sql.NullInt64 {
	v, ok := ins.Value(metric)
	return sql.NullInt64{Int64: v, Valid: ok}
}

// touchedDays returns the sorted publish days of items within [from, to].
func touchedDays(items []fetcher.MediaItem, from, to string) []string {
	set := make(map[string]struct{})
	for _, item := range items {
		d := helpers.DayOf(item.Timestamp)
		if d < from || d > to {
			continue
		}
		set[d] = struct{}{}
	}
	days := make([]string, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}
