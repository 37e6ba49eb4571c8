package patterns

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/pkg/billing"
)

// Matcher applies the configured amount band and year window to raw
// pattern matches.
type Matcher struct {
	band      billing.Band
	yearsBack int
	yearsFwd  int
	now       func() time.Time
}

// NewMatcher creates a Matcher from cfg. A nil now uses time.Now.
func NewMatcher(cfg config.Config, now func() time.Time) *Matcher {
	if now == nil {
		now = time.Now
	}
	return &Matcher{
		band:      cfg.Band(),
		yearsBack: cfg.MaxYearsBack,
		yearsFwd:  cfg.MaxYearsForward,
		now:       now,
	}
}

// Now returns the matcher's current time.
func (m *Matcher) Now() time.Time {
	return m.now()
}

// Band returns the accepted amount range.
func (m *Matcher) Band() billing.Band {
	return m.band
}

// PlausibleDate reports whether t falls inside the accepted year window.
func (m *Matcher) PlausibleDate(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	year := m.now().Year()
	return t.Year() >= year-m.yearsBack && t.Year() <= year+m.yearsFwd
}

// PlausibleAmount reports whether d lies inside the amount band.
func (m *Matcher) PlausibleAmount(d decimal.Decimal) bool {
	return m.band.Contains(d)
}

// Dates returns the plausible dates in text.
func (m *Matcher) Dates(text string) []DateMatch {
	return m.filterDates(FindDates(text))
}

// DatesWithMonthYear returns the plausible dates in text including
// "Month YYYY" forms.
func (m *Matcher) DatesWithMonthYear(text string) []DateMatch {
	return m.filterDates(FindDatesWithMonthYear(text))
}

func (m *Matcher) filterDates(all []DateMatch) []DateMatch {
	out := all[:0]
	for _, d := range all {
		if m.PlausibleDate(d.Date) {
			out = append(out, d)
		}
	}
	return out
}

// Amounts returns the in-band amounts in text.
func (m *Matcher) Amounts(text string) []AmountMatch {
	all := FindAmounts(text)
	out := all[:0]
	for _, a := range all {
		if m.PlausibleAmount(a.Amount) {
			out = append(out, a)
		}
	}
	return out
}

// Record builds a validated record, returning false when the date or
// amount is implausible.
func (m *Matcher) Record(date time.Time, amount decimal.Decimal, kind billing.Kind, desc string, src billing.Source) (billing.Record, bool) {
	r := billing.Record{
		Date:        billing.Day(date),
		Amount:      amount.Round(2),
		Kind:        kind,
		Description: truncate(desc, 500),
		Source:      src,
	}
	if !m.PlausibleDate(r.Date) {
		return billing.Record{}, false
	}
	if err := r.Validate(m.band); err != nil {
		return billing.Record{}, false
	}
	return r, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
