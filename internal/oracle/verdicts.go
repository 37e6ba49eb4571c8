package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jmylchreest/billscout/internal/patterns"
	"github.com/jmylchreest/billscout/pkg/billing"
	"github.com/jmylchreest/billscout/pkg/llm"
)

// Quality is the oracle's rating of the billing data on a page.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
	QualityNone      Quality = "none"
)

func parseQuality(s string) Quality {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case QualityExcellent, QualityGood, QualityFair, QualityPoor:
		return q
	default:
		return QualityNone
	}
}

// Bill is one billing entry as reported by the oracle. Fields are kept as
// text until validated by ToRecords.
type Bill struct {
	Date        string
	Amount      string
	Description string
	Type        string
}

// SufficiencyVerdict answers whether a page holds enough billing history.
type SufficiencyVerdict struct {
	HasSufficientData bool
	MonthsFound       int
	Quality           Quality
	Entries           []Bill
	Reason            string
}

// Sufficient reports whether the verdict is strong enough to stop
// exploring: the oracle must say yes, count at least one month and rate
// the data above poor.
func (v SufficiencyVerdict) Sufficient() bool {
	return v.HasSufficientData && v.MonthsFound > 0 && v.Quality != QualityPoor && v.Quality != QualityNone
}

// RankedLink is one entry of a link ranking.
type RankedLink struct {
	URL       string
	Score     int
	Reasoning string
}

// NextLink is a sub-link recommended by the exploration strategy task.
type NextLink struct {
	URL      string
	Text     string
	Reason   string
	Priority int
}

// StrategyVerdict is the oracle's plan for the current page.
type StrategyVerdict struct {
	CurrentPageHasBilling bool
	ExplorationNeeded     bool
	NextLinks             []NextLink
	Strategy              string
}

// Extraction is the result of an HTML or vision extraction task.
type Extraction struct {
	Bills         []Bill
	AccountNumber string
}

// LoginForm is the oracle's guess at a login form's selectors.
type LoginForm struct {
	Found         bool
	UsernameField string
	PasswordField string
	SubmitButton  string
	Confidence    float64
}

// LinkContext describes a candidate link sent for ranking.
type LinkContext struct {
	URL      string `json:"url"`
	Text     string `json:"text"`
	Location string `json:"location"`
	Score    int    `json:"heuristic_score"`
}

// Sufficiency asks whether pageText holds enough billing history. On any
// error the zero verdict is returned.
func Sufficiency(ctx context.Context, a Asker, pageURL, pageText string) (SufficiencyVerdict, error) {
	raw, err := ask(ctx, a, TaskSufficiency, Input{URL: pageURL, Content: pageText})
	if err != nil {
		return SufficiencyVerdict{Quality: QualityNone}, err
	}
	r := gjson.ParseBytes(raw)
	return SufficiencyVerdict{
		HasSufficientData: r.Get("has_sufficient_billing_data").Bool(),
		MonthsFound:       int(r.Get("months_of_data_found").Int()),
		Quality:           parseQuality(r.Get("data_quality").String()),
		Entries:           parseBills(r.Get("billing_entries_found")),
		Reason:            r.Get("evaluation_reason").String(),
	}, nil
}

// RankLinks asks the oracle to score links. The result is sorted by score,
// highest first; entries without a URL are dropped. On error the result is
// empty.
func RankLinks(ctx context.Context, a Asker, pageURL string, links []LinkContext) ([]RankedLink, error) {
	if len(links) == 0 {
		return nil, nil
	}
	raw, err := ask(ctx, a, TaskLinkRanking, Input{URL: pageURL, Context: mustJSON(links)})
	if err != nil {
		return nil, err
	}

	var ranked []RankedLink
	gjson.GetBytes(raw, "ranked_links").ForEach(func(_, v gjson.Result) bool {
		u := strings.TrimSpace(v.Get("url").String())
		if u == "" {
			return true
		}
		ranked = append(ranked, RankedLink{
			URL:       u,
			Score:     clampScore(int(v.Get("score").Int())),
			Reasoning: v.Get("reasoning").String(),
		})
		return true
	})
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked, nil
}

// Strategy asks which sub-links to follow from the current page. Next links
// are sorted by priority, 1 being the highest.
func Strategy(ctx context.Context, a Asker, pageURL, pageText string, links []LinkContext) (StrategyVerdict, error) {
	raw, err := ask(ctx, a, TaskExplorationStrategy, Input{URL: pageURL, Content: pageText, Context: mustJSON(links)})
	if err != nil {
		return StrategyVerdict{}, err
	}
	r := gjson.ParseBytes(raw)
	v := StrategyVerdict{
		CurrentPageHasBilling: r.Get("current_page_has_billing").Bool(),
		ExplorationNeeded:     r.Get("exploration_needed").Bool(),
		Strategy:              r.Get("strategy").String(),
	}
	r.Get("next_links").ForEach(func(_, l gjson.Result) bool {
		u := strings.TrimSpace(l.Get("url").String())
		if u == "" {
			return true
		}
		p := int(l.Get("priority").Int())
		if p <= 0 {
			p = 99
		}
		v.NextLinks = append(v.NextLinks, NextLink{
			URL:      u,
			Text:     l.Get("text").String(),
			Reason:   l.Get("reason").String(),
			Priority: p,
		})
		return true
	})
	sort.SliceStable(v.NextLinks, func(i, j int) bool { return v.NextLinks[i].Priority < v.NextLinks[j].Priority })
	return v, nil
}

// ExtractFromHTML asks the oracle to read bills out of cleaned markup.
func ExtractFromHTML(ctx context.Context, a Asker, pageURL, cleaned string, maxTokens int) (Extraction, error) {
	raw, err := ask(ctx, a, TaskHTMLExtraction, Input{URL: pageURL, Content: cleaned, MaxTokens: maxTokens})
	if err != nil {
		return Extraction{}, err
	}
	return parseExtraction(raw), nil
}

// ExtractFromScreenshot asks a vision model to transcribe visible bills.
func ExtractFromScreenshot(ctx context.Context, a Asker, pageURL string, png []byte, maxTokens int) (Extraction, error) {
	if len(png) == 0 {
		return Extraction{}, fmt.Errorf("vision extraction: %w", ErrEmptyResponse)
	}
	raw, err := ask(ctx, a, TaskVisionExtraction, Input{
		URL:       pageURL,
		Images:    []llm.Image{{MediaType: "image/png", Data: png}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return Extraction{}, err
	}
	return parseExtraction(raw), nil
}

// DetectLoginForm asks for CSS selectors of the login form in markup.
func DetectLoginForm(ctx context.Context, a Asker, pageURL, markup string) (LoginForm, error) {
	raw, err := ask(ctx, a, TaskLoginForm, Input{URL: pageURL, Content: markup})
	if err != nil {
		return LoginForm{}, err
	}
	r := gjson.ParseBytes(raw)
	return LoginForm{
		Found:         r.Get("found").Bool(),
		UsernameField: strings.TrimSpace(r.Get("username_field").String()),
		PasswordField: strings.TrimSpace(r.Get("password_field").String()),
		SubmitButton:  strings.TrimSpace(r.Get("submit_button").String()),
		Confidence:    r.Get("confidence").Float(),
	}, nil
}

// ToRecords validates oracle bills and converts them to records. Entries
// with unparseable or implausible dates or amounts are skipped.
func ToRecords(bills []Bill, m *patterns.Matcher, src billing.Source) []billing.Record {
	var out []billing.Record
	for _, b := range bills {
		date, ok := patterns.ParseLenient(b.Date)
		if !ok {
			continue
		}
		amount, err := patterns.ParseAmount(b.Amount)
		if err != nil {
			continue
		}
		kind := billing.ParseKind(b.Type)
		if amount.IsNegative() {
			amount = amount.Neg()
			kind = billing.KindPayment
		}
		if r, ok := m.Record(date, amount, kind, b.Description, src); ok {
			out = append(out, r)
		}
	}
	return out
}

func ask(ctx context.Context, a Asker, task Task, in Input) ([]byte, error) {
	if a == nil {
		return nil, ErrDisabled
	}
	return a.Ask(ctx, task, in)
}

func parseExtraction(raw []byte) Extraction {
	r := gjson.ParseBytes(raw)
	return Extraction{
		Bills:         parseBills(r.Get("bills")),
		AccountNumber: strings.TrimSpace(r.Get("account_info.account_number").String()),
	}
}

func parseBills(v gjson.Result) []Bill {
	var bills []Bill
	v.ForEach(func(_, b gjson.Result) bool {
		if !b.IsObject() {
			return true
		}
		bills = append(bills, Bill{
			Date:        b.Get("date").String(),
			Amount:      b.Get("amount").String(),
			Description: b.Get("description").String(),
			Type:        b.Get("type").String(),
		})
		return true
	})
	return bills
}

func clampScore(s int) int {
	return max(0, min(s, 100))
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}
