package analytics

import (
	"time"

	"github.com/tbourn/go-crm-backend/internal/domain"
)

// DayLabelLayout is the short label used for chart buckets (day/month).
const DayLabelLayout = "02/01"

// DayPoint is one bucket of the daily sales series.
type DayPoint struct {
	Date    time.Time `json:"date"`
	Label   string    `json:"label"`
	Orders  int       `json:"orders"`
	Revenue float64   `json:"revenue"`
}

// DailySeries buckets purchases into days consecutive calendar days ending at
// end (inclusive), oldest first. Days are cut in loc; a nil loc means UTC.
// Days without purchases are present with zero values, and purchases outside
// the window are ignored. days <= 0 defaults to 7.
func DailySeries(purchases []domain.Purchase, end time.Time, days int, loc *time.Location) []DayPoint {
	if days <= 0 {
		days = 7
	}
	if loc == nil {
		loc = time.UTC
	}
	last := startOfDay(end, loc)
	first := last.AddDate(0, 0, -(days - 1))

	points := make([]DayPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		d := first.AddDate(0, 0, i)
		points[i] = DayPoint{Date: d, Label: d.Format(DayLabelLayout)}
		index[d.Format(time.DateOnly)] = i
	}

	for _, p := range purchases {
		key := p.PurchasedAt.In(loc).Format(time.DateOnly)
		i, ok := index[key]
		if !ok {
			continue
		}
		points[i].Orders++
		points[i].Revenue += p.Total
	}
	return points
}

// SeriesWindow returns the [from, to) instant range covered by a series of
// days ending at end in loc, for callers that pre-filter in the database.
func SeriesWindow(end time.Time, days int, loc *time.Location) (from, to time.Time) {
	if days <= 0 {
		days = 7
	}
	if loc == nil {
		loc = time.UTC
	}
	last := startOfDay(end, loc)
	return last.AddDate(0, 0, -(days - 1)), last.AddDate(0, 0, 1)
}

// StartOfMonth returns midnight of the first day of t's month in loc.
func StartOfMonth(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
