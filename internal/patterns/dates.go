// Package patterns recognises dates and currency amounts in page text.
package patterns

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const month = `(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`),
	regexp.MustCompile(`\b(\d{4}-\d{1,2}-\d{1,2})\b`),
	regexp.MustCompile(`\b(\d{1,2}-\d{1,2}-\d{4})\b`),
	regexp.MustCompile(`(?i)\b(` + month + `\.? \d{1,2},? \d{4})\b`),
	regexp.MustCompile(`(?i)\b(\d{1,2} ` + month + `\.? \d{4})\b`),
	regexp.MustCompile(`(?i)\b(` + month + `-\d{1,2}-\d{4})\b`),
	regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{2})\b`),
}

var monthYearPattern = regexp.MustCompile(`(?i)\b(` + month + `\.? \d{4})\b`)

var dateLayouts = []string{
	"1/2/2006",
	"2006-1-2",
	"1-2-2006",
	"Jan 2 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan-2-2006",
	"January-2-2006",
}

var monthYearLayouts = []string{"Jan 2006", "January 2006"}

// DateMatch is a date found in text. Start and End index the matched text.
type DateMatch struct {
	Text  string
	Date  time.Time
	Start int
	End   int
}

// ParseDate parses s against the accepted calendar formats. Two-digit
// years are placed in the 2000s.
func ParseDate(s string) (time.Time, bool) {
	norm := normalizeDate(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, norm); err == nil {
			return t, true
		}
	}
	if strings.Count(norm, "/") == 2 {
		if t, err := time.Parse("1/2/06", norm); err == nil {
			if t.Year() < 2000 {
				t = t.AddDate(100, 0, 0)
			}
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseMonthYear parses "July 2025" style text as the first of the month.
func ParseMonthYear(s string) (time.Time, bool) {
	norm := normalizeDate(s)
	for _, layout := range monthYearLayouts {
		if t, err := time.Parse(layout, norm); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseLenient tries ParseDate first and then a permissive parser that
// accepts timestamps such as "2024-07-01T00:00:00Z". The result is a date
// without time component.
func ParseLenient(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := ParseDate(s); ok {
		return t, true
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
}

func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", " ")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Join(strings.Fields(s), " ")
	lower := strings.ToLower(s)
	if i := strings.Index(lower, "sept"); i >= 0 && !strings.HasPrefix(lower[i:], "september") {
		s = s[:i+3] + s[i+4:]
	}
	return s
}

// FindDates returns every recognised date in text, in order of appearance,
// without overlapping matches. Unparseable candidates are skipped.
func FindDates(text string) []DateMatch {
	var out []DateMatch
	for _, p := range datePatterns {
		for _, loc := range p.FindAllStringSubmatchIndex(text, -1) {
			raw := text[loc[2]:loc[3]]
			t, ok := ParseDate(raw)
			if !ok {
				continue
			}
			out = appendNonOverlapping(out, DateMatch{Text: raw, Date: t, Start: loc[2], End: loc[3]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// FindDatesWithMonthYear is FindDates plus "Month YYYY" matches that do not
// overlap a full date.
func FindDatesWithMonthYear(text string) []DateMatch {
	out := FindDates(text)
	for _, loc := range monthYearPattern.FindAllStringSubmatchIndex(text, -1) {
		raw := text[loc[2]:loc[3]]
		t, ok := ParseMonthYear(raw)
		if !ok {
			continue
		}
		out = appendNonOverlapping(out, DateMatch{Text: raw, Date: t, Start: loc[2], End: loc[3]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func appendNonOverlapping(matches []DateMatch, m DateMatch) []DateMatch {
	for _, existing := range matches {
		if m.Start < existing.End && existing.Start < m.End {
			return matches
		}
	}
	return append(matches, m)
}
