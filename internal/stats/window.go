package stats

import (
	"strconv"
	"strings"
)

// AllowedWindows are the trend lengths in days a caller may request.
var AllowedWindows = []int{7, 14, 30, 60, 90, 365}

const DefaultWindow = 30

// ClampWindow parses a days query value. Values between allowed windows
// snap up to the next one; anything above the largest is capped and
// anything unparseable or non-positive falls back to DefaultWindow.
func ClampWindow(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultWindow
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultWindow
	}
	return SnapWindow(n)
}

func SnapWindow(days int) int {
	if days <= 0 {
		return DefaultWindow
	}
	for _, w := range AllowedWindows {
		if days <= w {
			return w
		}
	}
	return AllowedWindows[len(AllowedWindows)-1]
}
