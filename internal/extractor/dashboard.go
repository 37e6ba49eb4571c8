package extractor

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/billscout/internal/patterns"
	"github.com/jmylchreest/billscout/pkg/billing"
)

const dashNumber = `\$\s?(\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:\.\d{2})?)`

// dashboardLabel is a labelled amount template. Lower priority values win
// when several labels land in the same month.
type dashboardLabel struct {
	name        string
	priority    int
	pattern     *regexp.Regexp
	kind        billing.Kind
	placeholder bool
}

var dashboardLabels = []dashboardLabel{
	{"current_bill", 1, regexp.MustCompile(`(?i)current\s+(?:bill|charges?|amount)[^$]{0,40}?` + dashNumber), billing.KindBill, true},
	{"amount_due", 2, regexp.MustCompile(`(?i)(?:amount|total|balance)\s+due[^$]{0,40}?` + dashNumber), billing.KindBill, true},
	{"balance", 3, regexp.MustCompile(`(?i)(?:account\s+|current\s+)?balance[^$]{0,40}?` + dashNumber), billing.KindBill, true},
	{"bill_amount", 4, regexp.MustCompile(`(?i)bill\s+amount[^$]{0,40}?` + dashNumber), billing.KindBill, false},
	{"last_payment", 5, regexp.MustCompile(`(?i)last\s+payment[^$]{0,40}?` + dashNumber), billing.KindPayment, false},
	{"payment_amount", 6, regexp.MustCompile(`(?i)payment\s+amount[^$]{0,40}?` + dashNumber), billing.KindPayment, false},
	{"paid_amount", 7, regexp.MustCompile(`(?i)(?:amount\s+)?paid[^$]{0,40}?` + dashNumber), billing.KindPayment, false},
	{"dollar_amount", 8, regexp.MustCompile(dashNumber), billing.KindBill, false},
}

// dateContext is how far around a labelled amount a date is searched for.
const dateContext = 100

type dashboardHit struct {
	record   billing.Record
	priority int
}

// Dashboard parses content and runs DashboardDocument.
func (e *Extractor) Dashboard(content string) []billing.Record {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}
	return e.DashboardDocument(doc)
}

// DashboardDocument pairs labelled amounts ("current bill", "amount due",
// "last payment", ...) with the nearest date within the surrounding text.
// Current-bill style labels without a nearby date are anchored to today;
// historical labels without a date are dropped. At most one record is kept
// per month, chosen by label priority and then by amount.
func (e *Extractor) DashboardDocument(doc *goquery.Document) []billing.Record {
	text := Text(doc.Find("body"))
	if text == "" {
		text = Text(doc.Selection)
	}
	return e.DashboardText(text)
}

// DashboardText runs the labelled amount templates over plain text.
func (e *Extractor) DashboardText(text string) []billing.Record {
	best := make(map[string]dashboardHit)
	var order []string

	for _, label := range dashboardLabels {
		for _, loc := range label.pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[2], loc[3]
			if end < len(text) && text[end] >= '0' && text[end] <= '9' {
				continue
			}
			amount, err := patterns.ParseAmount(text[start:end])
			if err != nil || !e.matcher.PlausibleAmount(amount) {
				continue
			}

			date, ok := e.nearestDate(text, loc[0], end)
			if !ok {
				if !label.placeholder {
					continue
				}
				date = e.matcher.Now()
			}

			desc := strings.ReplaceAll(label.name, "_", " ")
			r, ok := e.matcher.Record(date, amount, label.kind, desc, billing.SourceDashboard)
			if !ok {
				continue
			}

			key := r.MonthKey()
			cur, seen := best[key]
			if !seen {
				order = append(order, key)
				best[key] = dashboardHit{record: r, priority: label.priority}
				continue
			}
			if label.priority < cur.priority ||
				(label.priority == cur.priority && r.Amount.GreaterThan(cur.record.Amount)) {
				best[key] = dashboardHit{record: r, priority: label.priority}
			}
		}
	}

	records := make([]billing.Record, 0, len(order))
	for _, key := range order {
		records = append(records, best[key].record)
	}
	billing.SortNewestFirst(records)
	if len(records) > e.cfg.MaxRecordsPerPass {
		records = records[:e.cfg.MaxRecordsPerPass]
	}
	return records
}

// nearestDate finds the plausible date for a labelled amount spanning
// [start, end). Dates following the amount within dateContext characters
// win; otherwise the closest date before the label is used.
func (e *Extractor) nearestDate(text string, start, end int) (time.Time, bool) {
	lo := max(0, start-dateContext)
	hi := min(len(text), end+dateContext)

	var before time.Time
	haveBefore := false
	for _, d := range e.matcher.DatesWithMonthYear(text[lo:hi]) {
		ds, de := lo+d.Start, lo+d.End
		if ds >= end {
			return d.Date, true
		}
		if de <= start {
			before, haveBefore = d.Date, true
		}
	}
	return before, haveBefore
}
