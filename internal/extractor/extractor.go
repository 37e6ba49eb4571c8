// Package extractor turns page content into billing records without any
// network or oracle calls. It understands JSON API payloads, markup rows
// and labelled dashboard amounts.
package extractor

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/logger"
	"github.com/jmylchreest/billscout/internal/patterns"
	"github.com/jmylchreest/billscout/pkg/billing"
)

// Extractor is a pure, deterministic record extractor.
type Extractor struct {
	cfg     config.Config
	matcher *patterns.Matcher
}

// New creates an Extractor. A nil now uses time.Now.
func New(cfg config.Config, now func() time.Time) *Extractor {
	return &Extractor{cfg: cfg, matcher: patterns.NewMatcher(cfg, now)}
}

// Matcher returns the pattern matcher the extractor validates with.
func (e *Extractor) Matcher() *patterns.Matcher {
	return e.matcher
}

// Extract detects the shape of content and runs the matching path. JSON
// payloads go through JSON; markup goes through Markup and, when no rows
// are found, Dashboard. The result is deduplicated.
func (e *Extractor) Extract(content string) []billing.Record {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return billing.Dedup(e.JSON([]byte(trimmed)), e.matcher.Now())
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		logger.Debug("extractor failed to parse markup", "error", err)
		return nil
	}
	records := e.MarkupDocument(doc)
	if len(records) == 0 {
		records = e.DashboardDocument(doc)
	}
	return billing.Dedup(records, e.matcher.Now())
}

// Kind classifies a row of text. Payment words without bill words make a
// payment; anything else is a bill.
func (e *Extractor) Kind(text string) billing.Kind {
	lower := strings.ToLower(text)
	payment := containsAny(lower, e.cfg.Keywords.PaymentWords)
	bill := containsAny(lower, e.cfg.Keywords.BillWords)
	if payment && !bill {
		return billing.KindPayment
	}
	return billing.KindBill
}

// Text returns the visible text of sel with a space between text nodes and
// runs of whitespace collapsed. Script and style contents are skipped.
func Text(sel *goquery.Selection) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
