package models

import (
	"encoding/json"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// FlexibleDate is a custom time type that can unmarshal both RFC3339 and "YYYY-MM-DD" formats
type FlexibleDate struct {
	time.Time
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (f *FlexibleDate) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)

	// Try parsing as RFC3339 full timestamp first
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		f.Time = DateOnly(t)
		return nil
	}

	// If that fails, try parsing as a date-only string
	t, err = time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	f.Time = t
	return nil
}

// MarshalJSON writes the date-only form.
func (f FlexibleDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Time.Format(dateLayout))
}

// ParseDate parses a "YYYY-MM-DD" string into midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(dateLayout, s)
}

// FormatDate renders t as "YYYY-MM-DD".
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
