package exports

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/fluffyriot/rpinsights/internal/stats"
)

var trendHeader = []string{"date", "reach", "impressions", "interactions", "followers"}

// WriteTrendCSV writes one row per day. Unknown values are left empty so they
// stay distinct from a measured zero.
func WriteTrendCSV(w io.Writer, t stats.Trend) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(trendHeader); err != nil {
		return err
	}
	for _, p := range t.Points {
		if err := writer.Write([]string{
			p.Date,
			formatNullable(p.Reach),
			formatNullable(p.Impressions),
			formatNullable(p.Interactions),
			formatNullable(p.Followers),
		}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatNullable(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
