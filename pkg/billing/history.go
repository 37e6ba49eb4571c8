package billing

import (
	"sort"
)

// Reasons attached to a History that carries no billing data.
const (
	ReasonLoginRequired  = "login required/account setup"
	ReasonNoLinks        = "no navigable links"
	ReasonBudgetExceeded = "time budget exceeded"
	ReasonAllEmpty       = "all strategies returned empty"
	ReasonBlocked        = "blocked by anti-bot challenge"
	ReasonEntryFailed    = "entry page failed to load"
	ReasonCancelled      = "run cancelled"
)

// History is the aggregate result of one exploration run. Records are
// newest first. A History is never mutated once returned.
type History struct {
	Records       []Record `json:"records" yaml:"records"`
	Current       *Record  `json:"current,omitempty" yaml:"current,omitempty"`
	Previous      *Record  `json:"previous,omitempty" yaml:"previous,omitempty"`
	AccountNumber string   `json:"account_number,omitempty" yaml:"account_number,omitempty"`

	// Strategy names the extraction strategy that produced the records.
	Strategy string `json:"strategy,omitempty" yaml:"strategy,omitempty"`

	// Reason explains why no data was found. Empty on success.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// NewHistory builds a History from records, sorting them newest first and
// deriving the headline figures from bill-kind records only.
func NewHistory(records []Record, accountNumber string) History {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	SortNewestFirst(sorted)

	h := History{Records: sorted, AccountNumber: accountNumber}
	var bills []Record
	for _, r := range sorted {
		if r.Kind == KindBill {
			bills = append(bills, r)
		}
	}
	if len(bills) > 0 {
		cur := bills[0]
		h.Current = &cur
	}
	if len(bills) > 1 {
		prev := bills[1]
		h.Previous = &prev
	}
	return h
}

// Sentinel returns an empty History carrying a diagnostic reason.
func Sentinel(reason string) History {
	return History{Records: []Record{}, Reason: reason}
}

// WithStrategy returns a copy of h labelled with the producing strategy.
func (h History) WithStrategy(name string) History {
	h.Strategy = name
	return h
}

// WithReason returns a copy of h carrying reason.
func (h History) WithReason(reason string) History {
	h.Reason = reason
	return h
}

// Empty reports whether h has no records.
func (h History) Empty() bool {
	return len(h.Records) == 0
}

// Meaningful reports whether h has at least one record or two positive
// headline amounts.
func (h History) Meaningful() bool {
	if len(h.Records) > 0 {
		return true
	}
	if h.Current == nil || h.Previous == nil {
		return false
	}
	return h.Current.Amount.IsPositive() && h.Previous.Amount.IsPositive()
}

// Better reports whether candidate should replace best. More records wins,
// then the higher current amount, then the more recent current date. A
// candidate without records never replaces a non-empty best.
func Better(candidate, best History) bool {
	if candidate.Empty() {
		return best.Empty() && candidate.Meaningful() && !best.Meaningful()
	}
	if best.Empty() {
		return true
	}
	if len(candidate.Records) != len(best.Records) {
		return len(candidate.Records) > len(best.Records)
	}

	ca, ba := headlineAmount(candidate), headlineAmount(best)
	if !ca.Equal(ba) {
		return ca.GreaterThan(ba)
	}

	cd, bd := headlineDate(candidate), headlineDate(best)
	return cd.After(bd)
}

// Fold returns whichever of best and candidate ranks higher.
func Fold(best, candidate History) History {
	if Better(candidate, best) {
		return candidate
	}
	return best
}

// SortNewestFirst orders records by date descending. Equal dates keep
// their relative order.
func SortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})
}
