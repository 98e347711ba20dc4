package slug

import (
	"fmt"
	"strings"
	"time"
)

const (
	DisplayDate     = "02/01/2006"
	DisplayDateTime = "02/01/2006 15:04"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339, DisplayDate}

var dateTimeLayouts = []string{"2006-01-02T15:04", "2006-01-02T15:04:05", time.RFC3339, DisplayDateTime}

// FormatDate renders a date the way the site's data files store it.
func FormatDate(t time.Time) string {
	return t.Format(DisplayDate)
}

// FormatDateTime renders a date and time the way trainings store it.
func FormatDateTime(t time.Time) string {
	return t.Format(DisplayDateTime)
}

// ParseDate accepts ISO dates (as sent by HTML date inputs), RFC3339 and
// the stored DD/MM/YYYY form.
func ParseDate(s string) (time.Time, error) {
	return parseFirst(strings.TrimSpace(s), dateLayouts)
}

// ParseDateTime accepts datetime-local values, RFC3339 and DD/MM/YYYY HH:MM.
func ParseDateTime(s string) (time.Time, error) {
	return parseFirst(strings.TrimSpace(s), dateTimeLayouts)
}

func parseFirst(s string, layouts []string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
