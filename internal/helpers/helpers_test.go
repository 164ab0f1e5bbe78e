package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayOfUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2024, 3, 10, 2, 0, 0, 0, loc)
	assert.Equal(t, "2024-03-09", DayOf(ts))
}

func TestDayRange(t *testing.T) {
	start := time.Date(2024, 2, 27, 15, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}, DayRange(start, end))
	assert.Nil(t, DayRange(end, start))
}

func TestAddDays(t *testing.T) {
	d, err := AddDays("2024-01-01", -1)
	require.NoError(t, err)
	assert.Equal(t, "2023-12-31", d)

	_, err = AddDays("nope", 1)
	assert.Error(t, err)
}

func TestClampAndTruncate(t *testing.T) {
	assert.Equal(t, 1, ClampInt(0, 1, 90))
	assert.Equal(t, 90, ClampInt(400, 1, 90))
	assert.Equal(t, 14, ClampInt(14, 1, 90))
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "ab", Truncate("ab", 3))
}
