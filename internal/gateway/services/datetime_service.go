package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/bcampbell/fuzzytime"
	"github.com/itlightning/dateparse"
)

// ParseEventDate parses an event's date attribute. RFC3339 is the
// authoritative stored format; dateparse and fuzzytime are fallbacks
// for dates arriving via CSV import from other tools.
func ParseEventDate(input string) (time.Time, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t, nil
	}

	layouts := []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t, nil
		}
	}

	if t, err := dateparse.ParseAny(trimmed); err == nil && t.Year() != 0 {
		return t, nil
	}

	// fuzzytime handles human-written dates dateparse chokes on
	dt, _, err := fuzzytime.Extract(trimmed)
	if err != nil || dt.Empty() {
		return time.Time{}, fmt.Errorf("unparseable date: %q", input)
	}
	isoFormat := dt.ISOFormat()
	fuzzyLayouts := []string{
		time.RFC3339,
		"2006-01-02T15:04Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
	}
	for _, layout := range fuzzyLayouts {
		if t, err := time.Parse(layout, isoFormat); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %q", input)
}

func PrettifyDate(d string) string {
	parsed, err := ParseEventDate(d)
	if err != nil {
		return d
	}
	return parsed.Format("Jan 2, 2006 3:04 PM")
}
