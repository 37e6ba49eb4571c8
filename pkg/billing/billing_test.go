package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func rec(date time.Time, amount string, kind Kind) Record {
	return Record{Date: date, Amount: decimal.RequireFromString(amount), Kind: kind, Source: SourceTable}
}

// --- Dedup Tests ---

func TestDedup_PrefersYearCloserToNow(t *testing.T) {
	now := day(2024, time.September, 1)
	records := []Record{
		rec(day(2099, time.July, 15), "88.50", KindBill),
		rec(day(2023, time.July, 15), "88.50", KindBill),
	}

	got := Dedup(records, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Date.Year() != 2023 {
		t.Errorf("expected 2023 record to win, got %d", got[0].Date.Year())
	}
}

func TestDedup_AcrossYearsKeepsCurrentYear(t *testing.T) {
	now := day(2024, time.May, 20)
	records := []Record{
		rec(day(2022, time.March, 10), "88.50", KindBill),
		rec(day(2024, time.March, 10), "88.50", KindBill),
	}

	got := CollapseMonthly(Dedup(records, now))
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if !got[0].Date.Equal(day(2024, time.March, 10)) {
		t.Errorf("expected 2024-03-10, got %s", got[0].Date.Format("2006-01-02"))
	}
}

func TestDedup_TieBreaksOnDescription(t *testing.T) {
	now := day(2024, time.January, 1)
	short := rec(day(2023, time.June, 1), "40.00", KindBill)
	short.Description = "Bill"
	long := rec(day(2025, time.June, 1), "40.00", KindBill)
	long.Description = "Water service bill June"

	got := Dedup([]Record{short, long}, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].Description != long.Description {
		t.Errorf("expected longer description to win, got %q", got[0].Description)
	}
}

func TestDedup_KindIsPartOfKey(t *testing.T) {
	now := day(2024, time.January, 1)
	records := []Record{
		rec(day(2023, time.June, 1), "40.00", KindBill),
		rec(day(2023, time.June, 1), "40.00", KindPayment),
	}
	if got := Dedup(records, now); len(got) != 2 {
		t.Errorf("expected bill and payment to survive, got %d records", len(got))
	}
}

// --- CollapseMonthly Tests ---

func TestCollapseMonthly_LatestDateWins(t *testing.T) {
	records := []Record{
		rec(day(2024, time.July, 1), "120.00", KindBill),
		rec(day(2024, time.June, 1), "110.00", KindBill),
		rec(day(2024, time.June, 15), "115.00", KindBill),
	}

	got := CollapseMonthly(records)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if !got[0].Date.Equal(day(2024, time.July, 1)) || got[0].Amount.StringFixed(2) != "120.00" {
		t.Errorf("unexpected first record: %s", got[0])
	}
	if !got[1].Date.Equal(day(2024, time.June, 15)) || got[1].Amount.StringFixed(2) != "115.00" {
		t.Errorf("unexpected second record: %s", got[1])
	}
}

func TestCollapseMonthly_OnePerMonth(t *testing.T) {
	var records []Record
	for i := 0; i < 40; i++ {
		records = append(records, rec(day(2023, time.Month(i%12+1), i%27+1), "10.00", KindBill))
	}

	got := CollapseMonthly(records)
	seen := map[string]bool{}
	for _, r := range got {
		if seen[r.MonthKey()] {
			t.Errorf("duplicate month %s", r.MonthKey())
		}
		seen[r.MonthKey()] = true
	}
	for i := 1; i < len(got); i++ {
		if got[i].Date.After(got[i-1].Date) {
			t.Errorf("records not sorted newest first at %d", i)
		}
	}
}

func TestCollapseMonthly_SameDateIsOrderIndependent(t *testing.T) {
	payment := rec(day(2024, time.July, 1), "95.00", KindPayment)
	short := rec(day(2024, time.July, 1), "7.00", KindBill)
	long := rec(day(2024, time.July, 1), "120.00", KindBill)
	long.Description = "Monthly water bill"

	orders := [][]Record{
		{payment, short, long},
		{long, short, payment},
		{short, payment, long},
	}
	for _, records := range orders {
		got := CollapseMonthly(records)
		if len(got) != 1 {
			t.Fatalf("expected 1 record, got %d", len(got))
		}
		if got[0].Amount.StringFixed(2) != "120.00" || got[0].Kind != KindBill {
			t.Errorf("expected the described 120.00 bill, got %s", got[0])
		}
	}

	a := rec(day(2024, time.June, 1), "110.00", KindBill)
	b := rec(day(2024, time.June, 1), "90.00", KindBill)
	for _, records := range [][]Record{{a, b}, {b, a}} {
		if got := CollapseMonthly(records); got[0].Amount.StringFixed(2) != "110.00" {
			t.Errorf("expected larger amount on a full tie, got %s", got[0])
		}
	}
}

// --- History Tests ---

func TestNewHistory_HeadlinesUseBillsOnly(t *testing.T) {
	h := NewHistory([]Record{
		rec(day(2024, time.May, 1), "90.00", KindBill),
		rec(day(2024, time.July, 3), "95.00", KindPayment),
		rec(day(2024, time.June, 1), "100.00", KindBill),
	}, "12345678")

	if h.Current == nil || h.Previous == nil {
		t.Fatal("expected both headlines")
	}
	if h.Current.Amount.StringFixed(2) != "100.00" {
		t.Errorf("expected current 100.00, got %s", h.Current.Amount.StringFixed(2))
	}
	if h.Previous.Amount.StringFixed(2) != "90.00" {
		t.Errorf("expected previous 90.00, got %s", h.Previous.Amount.StringFixed(2))
	}
	if h.Records[0].Kind != KindPayment {
		t.Errorf("expected payment first in newest-first order, got %s", h.Records[0].Kind)
	}
}

func TestSentinel_NotMeaningful(t *testing.T) {
	h := Sentinel(ReasonNoLinks)
	if h.Meaningful() {
		t.Error("sentinel should not be meaningful")
	}
	if h.Records == nil {
		t.Error("sentinel records should be an empty slice, not nil")
	}
	if h.Reason != ReasonNoLinks {
		t.Errorf("expected reason %q, got %q", ReasonNoLinks, h.Reason)
	}
}

func TestFold_Monotonic(t *testing.T) {
	best := NewHistory([]Record{
		rec(day(2024, time.May, 1), "90.00", KindBill),
		rec(day(2024, time.June, 1), "100.00", KindBill),
	}, "")

	if got := Fold(best, Sentinel(ReasonAllEmpty)); len(got.Records) != 2 {
		t.Errorf("folding empty result changed best: %d records", len(got.Records))
	}

	fewer := NewHistory([]Record{rec(day(2024, time.August, 1), "500.00", KindBill)}, "")
	if got := Fold(best, fewer); len(got.Records) != 2 {
		t.Errorf("fewer records replaced best: %d records", len(got.Records))
	}

	more := NewHistory([]Record{
		rec(day(2024, time.May, 1), "90.00", KindBill),
		rec(day(2024, time.June, 1), "100.00", KindBill),
		rec(day(2024, time.July, 1), "110.00", KindBill),
	}, "")
	if got := Fold(best, more); len(got.Records) != 3 {
		t.Errorf("expected larger history to win, got %d records", len(got.Records))
	}
}

func TestBetter_TieBreaks(t *testing.T) {
	a := NewHistory([]Record{rec(day(2024, time.May, 1), "90.00", KindBill)}, "")
	b := NewHistory([]Record{rec(day(2024, time.May, 1), "95.00", KindBill)}, "")
	if !Better(b, a) {
		t.Error("expected higher current amount to win")
	}

	c := NewHistory([]Record{rec(day(2024, time.June, 1), "90.00", KindBill)}, "")
	if !Better(c, a) {
		t.Error("expected more recent headline date to win")
	}
	if Better(a, a) {
		t.Error("identical histories should not replace each other")
	}
}

// --- Record Tests ---

func TestRecord_Validate(t *testing.T) {
	band := DefaultBand()
	tests := []struct {
		name    string
		record  Record
		wantErr bool
	}{
		{"valid", rec(day(2024, time.May, 1), "45.10", KindBill), false},
		{"below band", rec(day(2024, time.May, 1), "0.50", KindBill), true},
		{"above band", rec(day(2024, time.May, 1), "9999.00", KindBill), true},
		{"zero date", rec(time.Time{}, "45.10", KindBill), true},
		{"bad kind", rec(day(2024, time.May, 1), "45.10", Kind("refund")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate(band)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := map[string]Kind{
		"":                 KindBill,
		"Payment Received": KindPayment,
		"Credit":           KindPayment,
		"Monthly Bill":     KindBill,
		"usage charge":     KindBill,
		"adjustment":       KindUnknown,
	}
	for in, want := range tests {
		if got := ParseKind(in); got != want {
			t.Errorf("ParseKind(%q) = %s, expected %s", in, got, want)
		}
	}
}

func TestAccountFromURL(t *testing.T) {
	tests := map[string]string{
		"https://portal.example.com/accounts/12-34567-89/billing": "12-34567-89",
		"https://portal.example.com/acct/1234567890":              "1234567890",
		"https://portal.example.com/dashboard":                    "",
	}
	for in, want := range tests {
		if got := AccountFromURL(in); got != want {
			t.Errorf("AccountFromURL(%q) = %q, expected %q", in, got, want)
		}
	}
}
