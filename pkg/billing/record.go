// Package billing defines the billing history model produced by an exploration run.
package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Kind distinguishes charges from credits.
type Kind string

const (
	KindBill    Kind = "bill"
	KindPayment Kind = "payment"
	KindUnknown Kind = "unknown"
)

// ParseKind maps a free-form type label to a Kind.
func ParseKind(s string) Kind {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "":
		return KindBill
	case strings.Contains(s, "payment"), strings.Contains(s, "paid"), strings.Contains(s, "credit"):
		return KindPayment
	case strings.Contains(s, "bill"), strings.Contains(s, "charge"),
		strings.Contains(s, "invoice"), strings.Contains(s, "usage"), strings.Contains(s, "statement"):
		return KindBill
	default:
		return KindUnknown
	}
}

// Source records which extraction path produced a record.
type Source string

const (
	SourceAPI          Source = "api"
	SourceTable        Source = "table"
	SourceOracleText   Source = "oracle_text"
	SourceOracleVision Source = "oracle_vision"
	SourceDashboard    Source = "dashboard_pattern"
)

// Record is one billing event.
type Record struct {
	Date        time.Time       `json:"date" yaml:"date" validate:"required"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Kind        Kind            `json:"kind" yaml:"kind" validate:"oneof=bill payment unknown"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty" validate:"max=500"`
	Source      Source          `json:"source" yaml:"source" validate:"oneof=api table oracle_text oracle_vision dashboard_pattern"`
}

// Day truncates t to a calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthKey returns the (year, month) bucket of the record.
func (r Record) MonthKey() string {
	return r.Date.Format("2006-01")
}

func (r Record) String() string {
	return fmt.Sprintf("%s %s %s (%s)", r.Date.Format("2006-01-02"), r.Amount.StringFixed(2), r.Kind, r.Source)
}

// Band is the inclusive sanity range for amounts.
type Band struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// DefaultBand is the 1.00 to 5000.00 utility bill range.
func DefaultBand() Band {
	return Band{Min: decimal.NewFromInt(1), Max: decimal.NewFromInt(5000)}
}

// Contains reports whether amount lies inside the band.
func (b Band) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(b.Min) && amount.LessThanOrEqual(b.Max)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the record's fields and that its amount lies inside band.
func (r Record) Validate(band Band) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	if !band.Contains(r.Amount) {
		return fmt.Errorf("amount %s outside band [%s, %s]", r.Amount.StringFixed(2), band.Min.StringFixed(2), band.Max.StringFixed(2))
	}
	return nil
}
