package expiry

import (
	"strings"
	"time"
)

// DateLayout is the persisted form of a cutoff date.
const DateLayout = "2006-01-02"

// DisplayLayout is the day-first layout used in reports and reminders.
const DisplayLayout = "02/01/2006"

// ParseCutoff parses an ISO cutoff date. Timestamps carrying a time part
// are accepted and truncated to their calendar date.
func ParseCutoff(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if len(value) < len(DateLayout) {
		return time.Time{}, ErrInvalidCutoff
	}
	parsed, err := time.Parse(DateLayout, value[:len(DateLayout)])
	if err != nil {
		return time.Time{}, ErrInvalidCutoff
	}
	if len(value) > len(DateLayout) {
		sep := value[len(DateLayout)]
		if sep != 'T' && sep != ' ' {
			return time.Time{}, ErrInvalidCutoff
		}
	}
	return parsed, nil
}

// NormalizeCutoff returns the canonical YYYY-MM-DD form of value.
func NormalizeCutoff(value string) (string, error) {
	parsed, err := ParseCutoff(value)
	if err != nil {
		return "", err
	}
	return parsed.Format(DateLayout), nil
}

// FormatDisplay renders a cutoff as DD/MM/YYYY, or the raw value when unparsable.
func FormatDisplay(value string) string {
	parsed, err := ParseCutoff(value)
	if err != nil {
		return value
	}
	return parsed.Format(DisplayLayout)
}

// StartOfDay strips the time of day, keeping the calendar date of t in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// civilDay maps the calendar date of t onto a UTC midnight so that
// differences are whole days regardless of DST or zone offsets.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
