package reporting

import (
	"time"
)

// DailyCount is one day's tally in a time series. Date is the UTC day
// in YYYY-MM-DD form.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// DayKey formats a timestamp as its UTC day bucket.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// FillDaily expands a sparse day-keyed count map into a dense series of
// the trailing `days` days ending today (UTC), oldest first. Days with
// no counts appear as zero so charts render contiguous axes.
func FillDaily(counts map[string]int64, days int, now time.Time) []DailyCount {
	if days <= 0 {
		return nil
	}

	start := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, -(days - 1))
	out := make([]DailyCount, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		key := day.Format("2006-01-02")
		out = append(out, DailyCount{Date: key, Count: counts[key]})
	}
	return out
}
