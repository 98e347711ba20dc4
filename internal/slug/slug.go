// Package slug builds the stable identifiers used for events and trainings.
package slug

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MaxTitleRunes is how much of a title takes part in an identifier.
const MaxTitleRunes = 40

var polish = map[rune]rune{
	'ą': 'a', 'ć': 'c', 'ę': 'e', 'ł': 'l', 'ń': 'n', 'ó': 'o', 'ś': 's', 'ż': 'z', 'ź': 'z',
	'Ą': 'a', 'Ć': 'c', 'Ę': 'e', 'Ł': 'l', 'Ń': 'n', 'Ó': 'o', 'Ś': 's', 'Ż': 'z', 'Ź': 'z',
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify transliterates Polish letters, lowercases and joins alphanumeric
// runs with single hyphens. The result never starts or ends with a hyphen.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := polish[r]; ok {
			r = repl
		}
		b.WriteRune(r)
	}
	out := nonAlnum.ReplaceAllString(strings.ToLower(b.String()), "-")
	return strings.Trim(out, "-")
}

// Generate returns "<slug>-DD-MM-YYYY" for an event. Only the first
// MaxTitleRunes characters of the title are used. A title with nothing
// slug-worthy in it yields just the date part.
func Generate(title string, date time.Time) string {
	runes := []rune(title)
	if len(runes) > MaxTitleRunes {
		runes = runes[:MaxTitleRunes]
	}
	s := Slugify(string(runes))
	suffix := fmt.Sprintf("%02d-%02d-%04d", date.Day(), int(date.Month()), date.Year())
	if s == "" {
		return suffix
	}
	return s + "-" + suffix
}

// Training returns the identifier of a training session, built from every
// field that distinguishes two sessions on the same day.
func Training(kind string, at time.Time, location string, distance, pace float64) string {
	parts := []string{
		Slugify(kind),
		fmt.Sprintf("%02d", at.Day()),
		fmt.Sprintf("%02d", int(at.Month())),
		fmt.Sprintf("%04d", at.Year()),
		fmt.Sprintf("%02d", at.Hour()),
		fmt.Sprintf("%02d", at.Minute()),
		Slugify(location),
		Slugify(strconv.FormatFloat(distance, 'f', -1, 64)),
		Slugify(strconv.FormatFloat(pace, 'f', -1, 64)),
	}
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "-")
}
