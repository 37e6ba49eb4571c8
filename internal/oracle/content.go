package oracle

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/jmylchreest/billscout/internal/extractor"
)

// noiseSelector lists page chrome removed before markup is sent to the
// oracle.
const noiseSelector = "script, style, noscript, svg, nav, header, footer, iframe, link, meta"

var sanitizer = bluemonday.UGCPolicy()

// CleanHTML strips scripts, styles and navigation chrome from page markup,
// sanitises what remains and collapses whitespace. The result keeps table
// structure so the oracle can read rows.
func CleanHTML(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}
	doc.Find(noiseSelector).Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	markup, err := body.Html()
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(sanitizer.Sanitize(markup)), " ")
}

// PageText returns the visible text of page markup.
func PageText(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}
	return extractor.Text(doc.Selection)
}
