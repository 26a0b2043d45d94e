package domain

import "time"

// SessionQuota is the per-session message counter for a fixed window.
type SessionQuota struct {
	SessionID string
	Count     int
	StartTime time.Time
}

// Expired reports whether the window that started at StartTime has elapsed.
func (q SessionQuota) Expired(now time.Time, window time.Duration) bool {
	return now.Sub(q.StartTime) > window
}
