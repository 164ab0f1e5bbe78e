package fetcher

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"time"
)

// Metric names requested per media item.
const (
	MetricReach       = "reach"
	MetricSaved       = "saved"
	MetricImpressions = "impressions"
	MetricViews       = "views"
	MetricPlays       = "plays"
	MetricShares      = "shares"
)

type MetricError struct {
	Metric  string    `json:"metric"`
	Kind    ErrorKind `json:"kind"`
	Status  int       `json:"status,omitempty"`
	Message string    `json:"message"`
}

// Insights holds whatever metrics could be fetched for one item. A rejected
// metric never hides the others.
type Insights struct {
	Metrics map[string]int64
	Errors  []MetricError
}

func (i Insights) Value(metric string) (int64, bool) {
	v, ok := i.Metrics[metric]
	return v, ok
}

// Failed reports whether any metric failed for a reason other than being unsupported.
func (i Insights) Failed() bool {
	return i.FirstFailure() != nil
}

func (i Insights) FirstFailure() *MetricError {
	for idx := range i.Errors {
		if i.Errors[idx].Kind != KindUnsupportedMetric {
			return &i.Errors[idx]
		}
	}
	return nil
}

// FetchMetric fetches a single lifetime metric for one media item.
func (c *Client) FetchMetric(ctx context.Context, mediaID, token, metric string) (int64, error) {
	params := url.Values{}
	params.Set("metric", metric)

	var resp insightsResponse
	if err := c.get(ctx, "media_insights", mediaID+"/insights", token, params, &resp); err != nil {
		return 0, err
	}
	for _, d := range resp.Data {
		if d.Name != "" && d.Name != metric {
			continue
		}
		if d.TotalValue != nil {
			if v, ok := numberToInt(d.TotalValue.Value); ok {
				return v, nil
			}
		}
		for _, val := range d.Values {
			if v, ok := numberToInt(val.Value); ok {
				return v, nil
			}
		}
	}
	return 0, &GraphError{Kind: KindUnsupportedMetric, Endpoint: "media_insights", Message: "metric " + metric + " returned no data"}
}

// FetchResilientInsights requests reach, saved and impressions one metric at a
// time, falling back to views when impressions is rejected. Plays and shares
// are requested for video-like items only and silently dropped when
// unsupported. An expired token or rate limit stops the remaining requests.
func (c *Client) FetchResilientInsights(ctx context.Context, mediaID, token string, isVideoLike bool) Insights {
	out := Insights{Metrics: make(map[string]int64)}

	// stop reports whether the remaining metrics should be skipped.
	record := func(metric string, err error, silentUnsupported bool) (stop bool) {
		kind := KindOf(err)
		if kind == KindUnsupportedMetric && silentUnsupported {
			return false
		}
		me := MetricError{Metric: metric, Kind: kind, Message: err.Error()}
		var ge *GraphError
		if errors.As(err, &ge) {
			me.Status = ge.Status
			if ge.Message != "" {
				me.Message = ge.Message
			}
		}
		out.Errors = append(out.Errors, me)
		return kind == KindAuthExpired || kind == KindRateLimited
	}

	for _, metric := range []string{MetricReach, MetricSaved} {
		v, err := c.FetchMetric(ctx, mediaID, token, metric)
		if err != nil {
			if record(metric, err, false) {
				return out
			}
			continue
		}
		out.Metrics[metric] = v
	}

	v, err := c.FetchMetric(ctx, mediaID, token, MetricImpressions)
	switch {
	case err == nil:
		out.Metrics[MetricImpressions] = v
	case KindOf(err) == KindUnsupportedMetric:
		views, verr := c.FetchMetric(ctx, mediaID, token, MetricViews)
		if verr != nil {
			if record(MetricViews, verr, false) {
				return out
			}
		} else {
			out.Metrics[MetricViews] = views
		}
	default:
		if record(MetricImpressions, err, false) {
			return out
		}
	}

	if !isVideoLike {
		return out
	}
	for _, metric := range []string{MetricPlays, MetricShares} {
		v, err := c.FetchMetric(ctx, mediaID, token, metric)
		if err != nil {
			if record(metric, err, true) {
				return out
			}
			continue
		}
		out.Metrics[metric] = v
	}
	return out
}

// TotalValueMetrics are account metrics the API only serves as one total over
// the requested range.
var TotalValueMetrics = map[string]bool{
	"total_interactions": true,
	"accounts_engaged":   true,
}

// FetchAccountSeries returns one account-level metric with period=day over
// [since, until]. A total_value answer comes back as a single value ending at until.
func (c *Client) FetchAccountSeries(ctx context.Context, igUserID int64, token, metric string, since, until time.Time) ([]SeriesValue, error) {
	params := url.Values{}
	params.Set("metric", metric)
	params.Set("period", "day")
	if TotalValueMetrics[metric] {
		params.Set("metric_type", "total_value")
	}
	params.Set("since", strconv.FormatInt(since.Unix(), 10))
	params.Set("until", strconv.FormatInt(until.Unix(), 10))

	var resp insightsResponse
	if err := c.get(ctx, "account_insights", strconv.FormatInt(igUserID, 10)+"/insights", token, params, &resp); err != nil {
		return nil, err
	}

	var series []SeriesValue
	for _, d := range resp.Data {
		if d.Name != "" && d.Name != metric {
			continue
		}
		if len(d.Values) == 0 && d.TotalValue != nil {
			if v, ok := numberToInt(d.TotalValue.Value); ok {
				series = append(series, SeriesValue{Metric: metric, Value: v, EndTime: until.UTC()})
			}
			continue
		}
		for _, val := range d.Values {
			v, ok := numberToInt(val.Value)
			if !ok || val.EndTime == "" {
				continue
			}
			end, err := parseGraphTime(val.EndTime)
			if err != nil {
				continue
			}
			series = append(series, SeriesValue{Metric: metric, Value: v, EndTime: end})
		}
	}
	return series, nil
}
