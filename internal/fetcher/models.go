package fetcher

import (
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Graph timestamps look like 2024-01-02T15:04:05+0000.
const graphTimeLayout = "2006-01-02T15:04:05-0700"

func parseGraphTime(s string) (time.Time, error) {
	t, err := time.Parse(graphTimeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
	}
	return t.UTC(), err
}

type MediaItem struct {
	ID            string
	MediaType     string
	ProductType   string
	Caption       string
	Permalink     string
	Timestamp     time.Time
	LikeCount     int64
	CommentsCount int64
	Raw           json.RawMessage
}

// IsVideoLike reports whether plays and shares are worth requesting.
func (m MediaItem) IsVideoLike() bool {
	return m.MediaType == "VIDEO" || m.ProductType == "REELS"
}

type mediaNode struct {
	ID            string `json:"id"`
	MediaType     string `json:"media_type"`
	ProductType   string `json:"media_product_type"`
	Caption       string `json:"caption"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}

type mediaPage struct {
	Data   []json.RawMessage `json:"data"`
	Paging struct {
		Cursors struct {
			Before string `json:"before"`
			After  string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

type insightsResponse struct {
	Data []struct {
		Name   string `json:"name"`
		Period string `json:"period"`
		Values []struct {
			Value   json.Number `json:"value"`
			EndTime string      `json:"end_time"`
		} `json:"values"`
		TotalValue *struct {
			Value json.Number `json:"value"`
		} `json:"total_value"`
	} `json:"data"`
}

type SeriesValue struct {
	Metric  string
	Value   int64
	EndTime time.Time
}

type Profile struct {
	ID             string
	Username       string
	FollowersCount int64
	MediaCount     int64
}

type profileResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	FollowersCount int64  `json:"followers_count"`
	MediaCount     int64  `json:"media_count"`
}

type pageTokenResponse struct {
	ID          string `json:"id"`
	AccessToken string `json:"access_token"`
}

func numberToInt(n json.Number) (int64, bool) {
	if n == "" {
		return 0, false
	}
	if v, err := n.Int64(); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}
