package domain

import "time"

// VisitorCounts maps a project identifier to its user count. The key "count"
// holds the property-wide total.
type VisitorCounts map[string]int64

// DateRange is an inclusive reporting range in YYYY-MM-DD form.
type DateRange struct {
	StartDate string
	EndDate   string
}

// RollingMonth returns the range from one calendar month before now up to now.
func RollingMonth(now time.Time) DateRange {
	now = now.UTC()
	return DateRange{
		StartDate: now.AddDate(0, -1, 0).Format(time.DateOnly),
		EndDate:   now.Format(time.DateOnly),
	}
}
