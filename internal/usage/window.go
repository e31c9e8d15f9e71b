package usage

import "time"

// DayOf truncates a timestamp to its UTC calendar day. Counters are keyed by
// this value so a key's usage rolls over at midnight UTC regardless of the
// caller's timezone.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStartOf returns the first day of the UTC month containing t. Monthly
// quotas reset at this boundary.
func MonthStartOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
