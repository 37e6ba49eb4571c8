// Package scorer rates how much billing history a page visibly contains.
// Scoring is pure and deterministic so it can run on every visited page.
package scorer

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/extractor"
	"github.com/jmylchreest/billscout/internal/patterns"
)

// Score components.
const (
	keywordPoints    = 30
	keywordMinHits   = 3
	structuralPoints = 10
	recencyPerPair   = 5
	recencyMax       = 15
	maxScore         = 100
)

const longDate = `((?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.? \d{1,2},? \d{4})`
const dollar = `\$\s?(\d{1,3}(?:,\d{3})+(?:\.\d{2})?|\d+(?:\.\d{2})?)`

// dashboardPairs catch labelled amounts laid out as free text rather than
// rows. Each pattern captures a date group and an amount group.
var dashboardPairs = []struct {
	re         *regexp.Regexp
	date, amnt int
}{
	{regexp.MustCompile(`(?i)(?:paid|due|bill)\s+(?:on|date)?\s*` + longDate + `.*?` + dollar), 1, 2},
	{regexp.MustCompile(`(?i)` + dollar + `.*?(?:paid|due|on)\s+` + longDate), 2, 1},
	{regexp.MustCompile(`(?i)(?:amount|bill|payment).*?` + dollar + `.*?(\d{1,2}/\d{1,2}/\d{4})`), 2, 1},
}

// Breakdown is the itemised page score.
type Breakdown struct {
	KeywordHits int
	Keywords    int
	Pairs       int
	PairPoints  int
	Structure   int
	Recency     int
	Total       int
}

// Scorer computes page quality scores.
type Scorer struct {
	cfg       config.Config
	extractor *extractor.Extractor
	matcher   *patterns.Matcher
}

// New creates a Scorer. A nil now uses time.Now.
func New(cfg config.Config, now func() time.Time) *Scorer {
	ext := extractor.New(cfg, now)
	return &Scorer{cfg: cfg, extractor: ext, matcher: ext.Matcher()}
}

// Score returns the page score in [0, 100].
func (s *Scorer) Score(content string) int {
	return s.Breakdown(content).Total
}

// Breakdown parses content and scores it.
func (s *Scorer) Breakdown(content string) Breakdown {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return Breakdown{}
	}
	return s.BreakdownDocument(doc)
}

// BreakdownDocument scores an already parsed page.
func (s *Scorer) BreakdownDocument(doc *goquery.Document) Breakdown {
	var b Breakdown
	text := extractor.Text(doc.Selection)
	lower := strings.ToLower(text)

	for _, kw := range s.cfg.Keywords.Vocabulary {
		if strings.Contains(lower, kw) {
			b.KeywordHits++
		}
	}
	if b.KeywordHits >= keywordMinHits {
		b.Keywords = keywordPoints
	}

	pairs := s.pairs(doc, text)
	b.Pairs = len(pairs)
	b.PairPoints = pairPoints(len(pairs))

	year := s.matcher.Now().Year()
	recent := 0
	for day, fromTable := range pairs {
		if fromTable {
			b.Structure = structuralPoints
		}
		if day.Year() == year || day.Year() == year-1 {
			recent++
		}
	}
	b.Recency = min(recent*recencyPerPair, recencyMax)

	b.Total = min(b.Keywords+b.PairPoints+b.Structure+b.Recency, maxScore)
	return b
}

func pairPoints(n int) int {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return 25
	case n == 2:
		return 35
	default:
		return 50 + min((n-3)*10, 20)
	}
}

// pairs returns the distinct days carrying an amount, each flagged when at
// least one pair for that day came from a table row.
func (s *Scorer) pairs(doc *goquery.Document, text string) map[time.Time]bool {
	out := make(map[time.Time]bool)
	for _, row := range s.extractor.Rows(doc) {
		for _, d := range row.Dates {
			day := truncateDay(d.Date)
			out[day] = out[day] || row.InTable
		}
	}

	for _, p := range dashboardPairs {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			date, ok := patterns.ParseDate(m[p.date])
			if !ok || !s.matcher.PlausibleDate(date) {
				continue
			}
			amount, err := patterns.ParseAmount(m[p.amnt])
			if err != nil || !s.matcher.PlausibleAmount(amount) {
				continue
			}
			day := truncateDay(date)
			if _, seen := out[day]; !seen {
				out[day] = false
			}
		}
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
