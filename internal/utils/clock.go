package utils

import "time"

// Clock is the time source for every expiry comparison
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

// Now returns the current UTC time
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant. Used by tests and replays.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed instant in UTC
func (c FixedClock) Now() time.Time {
	return c.T.UTC()
}

// DateOnly truncates t to midnight UTC of its calendar day
func DateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string as a UTC date
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

// TimeOfDay formats the clock part of t as HH:MM:SS for TIME comparisons
func TimeOfDay(t time.Time) string {
	return t.UTC().Format("15:04:05")
}
