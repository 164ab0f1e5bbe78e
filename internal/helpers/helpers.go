package helpers

import (
	"time"
)

// DayLayout is the canonical day format used by every store.
const DayLayout = "2006-01-02"

func DayOf(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func ParseDay(day string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, day, time.UTC)
}

func AddDays(day string, n int) (string, error) {
	t, err := ParseDay(day)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, n).Format(DayLayout), nil
}

// DayRange lists every day from start to end inclusive. It returns nil when
// end precedes start.
func DayRange(start, end time.Time) []string {
	from := StartOfDay(start)
	to := StartOfDay(end)
	var days []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d.Format(DayLayout))
	}
	return days
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
