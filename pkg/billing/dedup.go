package billing

import (
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

type dedupKey struct {
	monthDay string
	amount   string
	kind     Kind
}

// Dedup collapses records that share month-day, amount and kind regardless
// of year. The record whose year is closer to now's year is kept; ties go to
// the longer description. Output order follows first appearance.
func Dedup(records []Record, now time.Time) []Record {
	index := make(map[dedupKey]int, len(records))
	out := make([]Record, 0, len(records))
	year := now.Year()

	for _, r := range records {
		key := dedupKey{
			monthDay: r.Date.Format("01-02"),
			amount:   r.Amount.StringFixed(2),
			kind:     r.Kind,
		}
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, r)
			continue
		}

		existing := out[i]
		newDist, oldDist := yearDistance(r.Date.Year(), year), yearDistance(existing.Date.Year(), year)
		if newDist < oldDist || (newDist == oldDist && len(r.Description) > len(existing.Description)) {
			out[i] = r
		}
	}
	return out
}

func yearDistance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

// CollapseMonthly keeps one record per (year, month): the one with the
// latest date. Records on the same date are ranked bill before payment,
// then by longer description, then by larger amount, so the result does not
// depend on input order. The result is sorted newest first.
func CollapseMonthly(records []Record) []Record {
	index := make(map[string]int, len(records))
	out := make([]Record, 0, len(records))

	for _, r := range records {
		key := r.MonthKey()
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, r)
			continue
		}
		if replacesInMonth(r, out[i]) {
			out[i] = r
		}
	}

	SortNewestFirst(out)
	return out
}

func replacesInMonth(r, existing Record) bool {
	if !r.Date.Equal(existing.Date) {
		return r.Date.After(existing.Date)
	}
	if kr, ke := kindRank(r.Kind), kindRank(existing.Kind); kr != ke {
		return kr < ke
	}
	if len(r.Description) != len(existing.Description) {
		return len(r.Description) > len(existing.Description)
	}
	return r.Amount.GreaterThan(existing.Amount)
}

func kindRank(k Kind) int {
	switch k {
	case KindBill:
		return 0
	case KindPayment:
		return 1
	default:
		return 2
	}
}

func headlineAmount(h History) decimal.Decimal {
	if h.Current == nil {
		return decimal.Zero
	}
	return h.Current.Amount
}

func headlineDate(h History) time.Time {
	if h.Current == nil {
		return time.Time{}
	}
	return h.Current.Date
}

var accountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/(\d{2,}-\d{4,}-\d{2,})`),
	regexp.MustCompile(`/(\d{8,})`),
}

// AccountFromURL pulls an account number out of a portal URL path, or
// returns "" when none is present.
func AccountFromURL(rawURL string) string {
	for _, p := range accountPatterns {
		if m := p.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}
