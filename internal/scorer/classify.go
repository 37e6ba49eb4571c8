package scorer

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/billscout/internal/extractor"
)

// IsBillingPage reports whether content looks like a billing page: a
// history heading on its own, or a table next to amounts or dates, or the
// word billing next to amounts.
func (s *Scorer) IsBillingPage(content string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return false
	}
	return s.IsBillingDocument(doc)
}

// IsBillingDocument is IsBillingPage for a parsed page.
func (s *Scorer) IsBillingDocument(doc *goquery.Document) bool {
	text := extractor.Text(doc.Selection)
	lower := strings.ToLower(text)

	for _, indicator := range s.cfg.Keywords.HistoryIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}

	hasTable := doc.Find("table").Length() > 0
	hasAmount := len(s.matcher.Amounts(text)) > 0
	hasDate := len(s.matcher.Dates(text)) > 0

	switch {
	case hasTable && (hasAmount || hasDate):
		return true
	case strings.Contains(lower, "billing") && hasAmount:
		return true
	}
	return false
}

// RegistrationWall reports whether the page is an account registration or
// setup step rather than a logged-in portal page.
func (s *Scorer) RegistrationWall(pageURL, content string) bool {
	u := strings.ToLower(pageURL)
	for _, term := range s.cfg.Keywords.RegistrationURL {
		if strings.Contains(u, term) {
			return true
		}
	}
	lower := strings.ToLower(content)
	for _, phrase := range s.cfg.Keywords.RegistrationText {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
