package extractor

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jmylchreest/billscout/internal/logger"
	"github.com/jmylchreest/billscout/internal/patterns"
	"github.com/jmylchreest/billscout/pkg/billing"
)

// Keys are matched case-insensitively, in priority order.
var (
	dateKeys = []string{
		"date", "billdate", "bill_date", "transactiondate", "transaction_date",
		"statementdate", "statement_date", "posteddate", "posted_date", "duedate", "due_date",
	}
	amountKeys = []string{
		"amount", "billamount", "bill_amount", "totalamount", "total_amount",
		"totaldue", "total_due", "amountdue", "amount_due", "balance", "total",
	}
	descriptionKeys = []string{"description", "desc", "memo", "details", "name"}
	typeKeys        = []string{"type", "transactiontype", "transaction_type", "kind", "category"}
)

// maxJSONDepth bounds the payload walk.
const maxJSONDepth = 8

// JSON walks an arbitrary JSON payload and converts every array of objects
// carrying a date-like and an amount-like key into records. Invalid JSON
// yields no records.
func (e *Extractor) JSON(payload []byte) []billing.Record {
	if !gjson.ValidBytes(payload) {
		logger.Debug("extractor received invalid JSON", "bytes", len(payload))
		return nil
	}
	var records []billing.Record
	e.walkJSON(gjson.ParseBytes(payload), 0, &records)
	return records
}

func (e *Extractor) walkJSON(v gjson.Result, depth int, records *[]billing.Record) {
	if depth > maxJSONDepth || len(*records) >= e.cfg.MaxRecordsPerPass {
		return
	}
	switch {
	case v.IsArray():
		v.ForEach(func(_, item gjson.Result) bool {
			if item.IsObject() {
				if r, ok := e.jsonRecord(item); ok {
					*records = append(*records, r)
					return len(*records) < e.cfg.MaxRecordsPerPass
				}
			}
			e.walkJSON(item, depth+1, records)
			return len(*records) < e.cfg.MaxRecordsPerPass
		})
	case v.IsObject():
		v.ForEach(func(_, child gjson.Result) bool {
			if child.IsArray() || child.IsObject() {
				e.walkJSON(child, depth+1, records)
			}
			return len(*records) < e.cfg.MaxRecordsPerPass
		})
	}
}

func (e *Extractor) jsonRecord(obj gjson.Result) (billing.Record, bool) {
	fields := make(map[string]gjson.Result)
	obj.ForEach(func(k, v gjson.Result) bool {
		fields[strings.ToLower(k.String())] = v
		return true
	})

	dateVal, ok := firstField(fields, dateKeys)
	if !ok {
		return billing.Record{}, false
	}
	amountVal, ok := firstField(fields, amountKeys)
	if !ok {
		return billing.Record{}, false
	}

	date, ok := patterns.ParseLenient(dateVal.String())
	if !ok {
		return billing.Record{}, false
	}
	amount, err := patterns.ParseAmount(amountVal.String())
	if err != nil {
		return billing.Record{}, false
	}
	// Negative amounts are credits.
	kind := billing.KindBill
	if amount.IsNegative() {
		amount = amount.Neg()
		kind = billing.KindPayment
	}

	desc := ""
	if d, ok := firstField(fields, descriptionKeys); ok {
		desc = d.String()
	}
	if t, ok := firstField(fields, typeKeys); ok {
		kind = billing.ParseKind(t.String())
		if kind == billing.KindUnknown {
			kind = e.Kind(t.String() + " " + desc)
		}
	} else if desc != "" && kind == billing.KindBill {
		kind = e.Kind(desc)
	}

	return e.matcher.Record(date, amount, kind, desc, billing.SourceAPI)
}

func firstField(fields map[string]gjson.Result, keys []string) (gjson.Result, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v.Exists() && v.Type != gjson.Null && v.String() != "" {
			return v, true
		}
	}
	return gjson.Result{}, false
}
