package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fluffyriot/rpinsights/internal/auth"
	"github.com/fluffyriot/rpinsights/internal/database"
	"github.com/fluffyriot/rpinsights/internal/fetcher"
	"github.com/fluffyriot/rpinsights/internal/helpers"
	"github.com/fluffyriot/rpinsights/internal/logging"
	"github.com/fluffyriot/rpinsights/internal/metrics"
	"github.com/google/uuid"
)

const (
	insightsTrailingDays = 4
	debugReadbackDays    = 7
)

const (
	metricReach             = "reach"
	metricImpressions       = "impressions"
	metricTotalInteractions = "total_interactions"
	metricAccountsEngaged   = "accounts_engaged"
)

var accountMetrics = []string{metricReach, metricImpressions, metricTotalInteractions, metricAccountsEngaged}

type AccountInsightsOutcome struct {
	AccountID uuid.UUID `json:"accountId"`
	Username  string    `json:"username,omitempty"`
	Day       string    `json:"day,omitempty"`
	Upserted  bool      `json:"upserted"`
	Error     ErrorCode `json:"error,omitempty"`
	Message   string    `json:"message,omitempty"`
	// MetricErrors lists metrics that failed while the others were still stored.
	MetricErrors []fetcher.MetricError `json:"metricErrors,omitempty"`
}

type DebugReadback struct {
	AccountID uuid.UUID `json:"accountId"`
	Rows      int       `json:"rows"`
	FirstDay  string    `json:"firstDay,omitempty"`
	LastDay   string    `json:"lastDay,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type AccountInsightsResult struct {
	// Day is the newest completed day written in this run.
	Day      string                   `json:"day"`
	Upserted int                      `json:"upserted"`
	Skipped  int                      `json:"skipped"`
	Total    int                      `json:"total"`
	Accounts []AccountInsightsOutcome `json:"accounts"`
	Debug    []DebugReadback          `json:"debug,omitempty"`
}

type dayBucket struct {
	values map[string]int64
}

// SyncAccountInsights walks every stored credential in turn, fetches the
// trailing daily account metrics and writes only the newest fully elapsed
// day. Days at or after the current UTC day are never written.
func (w *Worker) SyncAccountInsights(ctx context.Context, debug bool) (AccountInsightsResult, error) {
	start := time.Now()
	res, err := w.syncAccountInsights(ctx, debug)
	metrics.JobDuration.WithLabelValues("account_insights").Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = string(CodeOf(err))
	}
	metrics.JobRuns.WithLabelValues("account_insights", outcome).Inc()
	return res, err
}

func (w *Worker) syncAccountInsights(ctx context.Context, debug bool) (AccountInsightsResult, error) {
	res := AccountInsightsResult{Accounts: []AccountInsightsOutcome{}}

	creds, undecryptable, err := w.Credentials.List(ctx)
	if err != nil {
		return res, err
	}
	res.Total = len(creds) + undecryptable
	res.Skipped = undecryptable

	for _, cred := range creds {
		out, err := w.accountInsights(ctx, cred)
		if err != nil {
			if IsFatal(err) {
				return res, err
			}
			out.Error = CodeOf(err)
			out.Message = helpers.Truncate(err.Error(), 200)
			logging.Warn().Err(err).Str("account", cred.AccountID.String()).Msg("AccountInsights: account skipped")
		}
		if out.Upserted {
			res.Upserted++
			if out.Day > res.Day {
				res.Day = out.Day
			}
		} else {
			res.Skipped++
		}
		res.Accounts = append(res.Accounts, out)
	}

	if debug {
		res.Debug = w.readback(ctx, creds)
	}

	logging.Info().Int("upserted", res.Upserted).Int("skipped", res.Skipped).Int("total", res.Total).Str("day", res.Day).Msg("AccountInsights: done")
	return res, nil
}

func (w *Worker) accountInsights(ctx context.Context, cred auth.Credential) (AccountInsightsOutcome, error) {
	out := AccountInsightsOutcome{AccountID: cred.AccountID, Username: cred.Username}
	if cred.IgUserID <= 0 {
		return out, fmt.Errorf("account %s has no numeric id: %w", cred.AccountID, ErrInvalidRequest)
	}

	pageToken, err := w.Graph.ExchangeToken(ctx, cred.AccessToken, cred.PageID)
	if err != nil {
		return out, err
	}

	now := w.now()
	today := helpers.DayOf(now)
	midnight := helpers.StartOfDay(now)
	since := midnight.AddDate(0, 0, -insightsTrailingDays)

	buckets := make(map[string]*dayBucket)
	fetched := 0
	var firstErr error
	for _, metric := range accountMetrics {
		from, until := since, now
		if fetcher.TotalValueMetrics[metric] {
			// one total per request, so ask for yesterday alone
			from, until = midnight.AddDate(0, 0, -1), midnight
		}
		series, err := w.Graph.FetchAccountSeries(ctx, cred.IgUserID, pageToken, metric, from, until)
		if err != nil {
			kind := fetcher.KindOf(err)
			switch kind {
			case fetcher.KindUnsupportedMetric:
				continue
			case fetcher.KindAuthExpired, fetcher.KindRateLimited:
				return out, err
			}
			if firstErr == nil {
				firstErr = err
			}
			out.MetricErrors = append(out.MetricErrors, metricError(metric, err))
			logging.Warn().Err(err).Str("account", cred.AccountID.String()).Str("metric", metric).Msg("AccountInsights: metric failed")
			continue
		}
		fetched++
		for _, v := range series {
			day := BucketDay(v.EndTime)
			if day >= today {
				continue
			}
			b, ok := buckets[day]
			if !ok {
				b = &dayBucket{values: make(map[string]int64)}
				buckets[day] = b
			}
			b.values[metric] = v.Value
		}
	}
	if fetched == 0 && firstErr != nil {
		return out, firstErr
	}

	newest := ""
	for day := range buckets {
		if day > newest {
			newest = day
		}
	}
	if newest == "" {
		logging.Info().Str("account", cred.AccountID.String()).Int("metrics", fetched).Msg("AccountInsights: no completed day returned")
		return out, nil
	}

	b := buckets[newest]
	err = w.Store.UpsertAccountDailySnapshot(ctx, database.UpsertAccountDailySnapshotParams{
		AccountID:         cred.AccountID,
		IgUserID:          cred.IgUserID,
		Day:               newest,
		Reach:             bucketValue(b, metricReach),
		Impressions:       bucketValue(b, metricImpressions),
		TotalInteractions: bucketValue(b, metricTotalInteractions),
		AccountsEngaged:   bucketValue(b, metricAccountsEngaged),
		UpdatedAt:         now,
	})
	if err != nil {
		if IsFatal(err) {
			return out, err
		}
		return out, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	metrics.SnapshotsUpserted.Inc()
	w.invalidate(cred.AccountID)
	out.Day = newest
	out.Upserted = true
	return out, nil
}

func metricError(metric string, err error) fetcher.MetricError {
	me := fetcher.MetricError{Metric: metric, Kind: fetcher.KindOf(err), Message: helpers.Truncate(err.Error(), 200)}
	var ge *fetcher.GraphError
	if errors.As(err, &ge) {
		me.Status = ge.Status
	}
	return me
}

// BucketDay maps a period end timestamp to the UTC day the period covers.
func BucketDay(endTime time.Time) string {
	return helpers.DayOf(endTime.Add(-time.Second))
}

func bucketValue(b *dayBucket, metric string) sql.NullInt64 {
	v, ok := b.values[metric]
	return sql.NullInt64{Int64: v, Valid: ok}
}

func (w *Worker) readback(ctx context.Context, creds []auth.Credential) []DebugReadback {
	now := w.now()
	from := helpers.DayOf(now.AddDate(0, 0, -debugReadbackDays))
	to := helpers.DayOf(now.AddDate(0, 0, -1))

	var out []DebugReadback
	for _, cred := range creds {
		rb := DebugReadback{AccountID: cred.AccountID}
		rows, err := w.Store.ListAccountDailySnapshots(ctx, database.ListAccountDailySnapshotsParams{
			AccountID: cred.AccountID,
			FromDay:   from,
			ToDay:     to,
		})
		if err != nil {
			rb.Error = helpers.Truncate(err.Error(), 200)
		} else {
			rb.Rows = len(rows)
			if len(rows) > 0 {
				rb.FirstDay = rows[0].Day
				rb.LastDay = rows[len(rows)-1].Day
			}
		}
		out = append(out, rb)
	}
	return out
}
