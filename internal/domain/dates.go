package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

// Today returns the current date in UTC.
func Today() civil.Date {
	return civil.DateOf(time.Now().UTC())
}

// AddMonths steps a date by whole calendar months. Day-of-month is preserved
// unless it overflows the target month, in which case the date rolls over
// (Jan 31 + 1 month -> Mar 2 or Mar 3). The rollover is accepted, not
// special-cased.
func AddMonths(d civil.Date, months int) civil.Date {
	return civil.DateOf(d.In(time.UTC).AddDate(0, months, 0))
}

// EpochMillis returns the date's UTC-midnight timestamp in milliseconds.
func EpochMillis(d civil.Date) int64 {
	return d.In(time.UTC).UnixMilli()
}

// MustDate parses an ISO YYYY-MM-DD date and panics on malformed input.
// Intended for constants and tests.
func MustDate(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
