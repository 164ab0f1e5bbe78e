package exports

import (
	"bytes"
	"testing"

	"github.com/fluffyriot/rpinsights/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestWriteTrendCSV(t *testing.T) {
	trend := stats.Trend{
		Days: 2,
		Points: []stats.Point{
			{Date: "2024-03-08", Reach: ptr(0), Followers: ptr(900)},
			{Date: "2024-03-09", Reach: ptr(100), Impressions: ptr(190), Interactions: ptr(6)},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteTrendCSV(&buf, trend))

	want := "date,reach,impressions,interactions,followers\n" +
		"2024-03-08,0,,,900\n" +
		"2024-03-09,100,190,6,\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteTrendCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTrendCSV(&buf, stats.Trend{}))
	assert.Equal(t, "date,reach,impressions,interactions,followers\n", buf.String())
}
