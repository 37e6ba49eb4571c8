package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/jmylchreest/billscout/internal/patterns"
	"github.com/jmylchreest/billscout/pkg/billing"
)

// blockSelector lists the non-table elements that may hold one billing row.
const blockSelector = "li, dd, p, div, article, section, [role=row]"

// maxBlockRunes bounds the text of a non-table block treated as one row.
const maxBlockRunes = 500

// Row is one row-like element containing at least one plausible date and
// one plausible amount.
type Row struct {
	Text    string
	Dates   []patterns.DateMatch
	Amounts []patterns.AmountMatch
	InTable bool

	container *html.Node
}

// Rows returns the innermost row-like elements of doc that contain both a
// date and an amount. An element holding another such element, like the
// row of a layout table or a block wrapping a table, is skipped. Table rows
// come first, then other blocks, each in document order.
func (e *Extractor) Rows(doc *goquery.Document) []Row {
	candidates := make(map[*html.Node]Row)
	var tableRows, blocks []*html.Node

	doc.Find("tr").Each(func(_ int, s *goquery.Selection) {
		if r, ok := e.row(s); ok {
			r.InTable = true
			r.container = containerNode(s.Closest("table"))
			candidates[s.Nodes[0]] = r
			tableRows = append(tableRows, s.Nodes[0])
		}
	})

	doc.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.Closest("table").Length() > 0 {
			return
		}
		r, ok := e.row(s)
		if !ok || len([]rune(r.Text)) > maxBlockRunes {
			return
		}
		r.container = containerNode(s.Parent())
		candidates[s.Nodes[0]] = r
		blocks = append(blocks, s.Nodes[0])
	})

	var rows []Row
	for _, n := range append(tableRows, blocks...) {
		if hasCandidateDescendant(n, candidates) {
			continue
		}
		rows = append(rows, candidates[n])
	}
	return rows
}

func (e *Extractor) row(s *goquery.Selection) (Row, bool) {
	text := Text(s)
	if text == "" {
		return Row{}, false
	}
	dates := e.matcher.Dates(text)
	if len(dates) == 0 {
		return Row{}, false
	}
	amounts := e.matcher.Amounts(text)
	if len(amounts) == 0 {
		return Row{}, false
	}
	return Row{Text: text, Dates: dates, Amounts: amounts}, true
}

func hasCandidateDescendant(n *html.Node, candidates map[*html.Node]Row) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if _, ok := candidates[c]; ok {
			return true
		}
		if hasCandidateDescendant(c, candidates) {
			return true
		}
	}
	return false
}

func containerNode(s *goquery.Selection) *html.Node {
	if s.Length() == 0 {
		return nil
	}
	return s.Nodes[0]
}

// Markup parses content and runs MarkupDocument.
func (e *Extractor) Markup(content string) []billing.Record {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil
	}
	return e.MarkupDocument(doc)
}

// MarkupDocument emits one record for every co-occurring (date, amount)
// pair within each row. Containers contribute at most
// MaxRecordsPerContainer records and the pass stops at MaxRecordsPerPass.
func (e *Extractor) MarkupDocument(doc *goquery.Document) []billing.Record {
	var records []billing.Record
	perContainer := make(map[*html.Node]int)

	for _, row := range e.Rows(doc) {
		kind := e.Kind(row.Text)
		source := billing.SourceTable
		desc := truncateRunes(row.Text, 100)

		for _, d := range row.Dates {
			for _, a := range row.Amounts {
				if len(records) >= e.cfg.MaxRecordsPerPass {
					return records
				}
				if perContainer[row.container] >= e.cfg.MaxRecordsPerContainer {
					continue
				}
				r, ok := e.matcher.Record(d.Date, a.Amount, kind, desc, source)
				if !ok {
					continue
				}
				perContainer[row.container]++
				records = append(records, r)
			}
		}
	}
	return records
}
