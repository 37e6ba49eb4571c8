package output

import (
	"time"

	"github.com/jmylchreest/billscout/internal/explorer"
	"github.com/jmylchreest/billscout/pkg/billing"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
	StatusError  = "error"
)

// Entry is the serialised form of a billing record. Amounts keep two
// decimal places and dates are calendar days.
type Entry struct {
	Date        string `json:"date" yaml:"date"`
	Amount      string `json:"amount" yaml:"amount"`
	Kind        string `json:"kind" yaml:"kind"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Source      string `json:"source" yaml:"source"`
}

// Report is the outcome of one run as handed to downstream consumers.
type Report struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	Label     string    `json:"label,omitempty" yaml:"label,omitempty"`
	URL       string    `json:"url" yaml:"url"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	Duration  string    `json:"duration" yaml:"duration"`
	Visited   int       `json:"pages_visited" yaml:"pages_visited"`
	Stop      string    `json:"stop,omitempty" yaml:"stop,omitempty"`
	Status    string    `json:"status" yaml:"status"`
	Reason    string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`

	AccountNumber string  `json:"account_number,omitempty" yaml:"account_number,omitempty"`
	Strategy      string  `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Current       *Entry  `json:"current,omitempty" yaml:"current,omitempty"`
	Previous      *Entry  `json:"previous,omitempty" yaml:"previous,omitempty"`
	Records       []Entry `json:"records" yaml:"records"`
}

// NewReport builds a Report from an exploration result. A non-nil err
// marks a run that failed before exploration could start.
func NewReport(runID, label, url string, started time.Time, res explorer.Result, err error) Report {
	h := res.History
	r := Report{
		RunID:         runID,
		Label:         label,
		URL:           url,
		StartedAt:     started.UTC(),
		Duration:      res.Duration.Round(time.Millisecond).String(),
		Visited:       res.Visited,
		Stop:          res.Stop,
		Reason:        h.Reason,
		AccountNumber: h.AccountNumber,
		Strategy:      h.Strategy,
		Records:       make([]Entry, 0, len(h.Records)),
	}
	for _, rec := range h.Records {
		r.Records = append(r.Records, entry(rec))
	}
	if h.Current != nil {
		e := entry(*h.Current)
		r.Current = &e
	}
	if h.Previous != nil {
		e := entry(*h.Previous)
		r.Previous = &e
	}

	switch {
	case err != nil:
		r.Status = StatusError
		r.Error = err.Error()
	case h.Meaningful():
		r.Status = StatusOK
	default:
		r.Status = StatusNoData
	}
	return r
}

func entry(r billing.Record) Entry {
	return Entry{
		Date:        r.Date.Format("2006-01-02"),
		Amount:      r.Amount.StringFixed(2),
		Kind:        string(r.Kind),
		Description: r.Description,
		Source:      string(r.Source),
	}
}
