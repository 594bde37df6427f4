package util

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// compactWindowDays is how far back AlphaVantage's compact output reaches
const compactWindowDays = 100

// NextMarketDate predicts the time of the next stock market close update.
// It handles timezone conversion, business day logic.
// It returns the next valid market date (a weekday) at 4:30 PM New York time, in UTC.
func NextMarketDate(input time.Time) time.Time {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		log.Errorf("Failed to load location 'America/New_York': %v. Falling back to UTC.", err)
		loc = time.UTC
	}
	nowET := input.In(loc)

	// Start with today at 4:30 PM ET
	next := time.Date(nowET.Year(), nowET.Month(), nowET.Day(), 16, 30, 0, 0, loc)

	// If it's already past 4:30 PM, move to the next day
	if nowET.After(next) {
		next = next.AddDate(0, 0, 1)
	}

	for !IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}

	return next.UTC()
}

// IsTradingDay reports whether the calendar date of t is a weekday.
// Exchange holidays are not modelled.
func IsTradingDay(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// NextTradingDays returns the n trading dates strictly after the calendar date of after,
// as midnight UTC dates.
func NextTradingDays(after time.Time, n int) []time.Time {
	d := time.Date(after.Year(), after.Month(), after.Day(), 0, 0, 0, 0, time.UTC)
	days := make([]time.Time, 0, n)
	for len(days) < n {
		d = d.AddDate(0, 0, 1)
		if IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// DetermineOutputSize picks AlphaVantage's outputsize for a window starting at start.
// Windows starting within the last 100 days fit in "compact".
func DetermineOutputSize(start, now time.Time) string {
	if now.Sub(start).Hours()/24.0 < compactWindowDays {
		return "compact"
	}
	return "full"
}

// FetchWindowStart returns where an ingestion window should begin. With no stored
// rows it reaches back historyYears; otherwise it overlaps the latest stored date
// by overlapDays so provider revisions are picked up.
func FetchWindowStart(latest *time.Time, now time.Time, historyYears, overlapDays int) time.Time {
	if latest == nil {
		return time.Date(now.Year()-historyYears, now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return latest.AddDate(0, 0, -overlapDays)
}
