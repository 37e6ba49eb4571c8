package patterns

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	number = `(\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:\.\d{2})?)`
	cents  = `(\d{1,3}(?:,\d{3})+\.\d{2}|\d+\.\d{2})`
)

// Labelled amounts without a currency sign need cents so that a date or
// count after "Total" is not read as money.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\s?` + number),
	regexp.MustCompile(`(?i)\b` + number + `\s*USD\b`),
	regexp.MustCompile(`(?i)\b(?:amount|total):?\s*` + cents),
}

// AmountMatch is a currency amount found in text. Start and End index the
// numeric part.
type AmountMatch struct {
	Text   string
	Amount decimal.Decimal
	Start  int
	End    int
}

// ParseAmount parses a currency string such as "$1,234.56" or "88.50 USD".
func ParseAmount(s string) (decimal.Decimal, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimSuffix(strings.TrimSuffix(clean, "USD"), "usd")
	clean = strings.NewReplacer("$", "", ",", "", " ", "").Replace(clean)
	if clean == "" {
		return decimal.Zero, fmt.Errorf("empty amount %q", s)
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

// FindAmounts returns every currency amount in text in order of appearance.
// A number that runs on into a digit, '/' or '-', or that lies inside a
// recognised date, is not an amount.
func FindAmounts(text string) []AmountMatch {
	var out []AmountMatch
	dates := FindDates(text)
	for _, p := range amountPatterns {
		for _, loc := range p.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2], loc[3]
			if end < len(text) && continuesNumber(text[end]) {
				continue
			}
			if insideDate(dates, start, end) {
				continue
			}
			raw := text[start:end]
			d, err := ParseAmount(raw)
			if err != nil {
				continue
			}
			if overlapsAmount(out, start, end) {
				continue
			}
			out = append(out, AmountMatch{Text: raw, Amount: d, Start: start, End: end})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func overlapsAmount(matches []AmountMatch, start, end int) bool {
	for _, m := range matches {
		if start < m.End && m.Start < end {
			return true
		}
	}
	return false
}

func continuesNumber(c byte) bool {
	return (c >= '0' && c <= '9') || c == '/' || c == '-'
}

func insideDate(dates []DateMatch, start, end int) bool {
	for _, d := range dates {
		if start < d.End && d.Start < end {
			return true
		}
	}
	return false
}
