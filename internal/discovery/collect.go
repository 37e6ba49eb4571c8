package discovery

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// clickableSelector matches elements that navigate when clicked, including
// framework router bindings that carry no href.
const clickableSelector = "a[href], [routerlink], [ng-reflect-router-link], [ng-click], [onclick], [ui-sref], [data-href], [data-url], button[formaction]"

// handlerPath pulls a quoted path or URL out of an inline click handler.
var handlerPath = regexp.MustCompile(`['"](/[^'"]*|https?://[^'"]+|#/[^'"]*)['"]`)

var logoutWords = []string{"logout", "log out", "log-out", "signout", "sign out", "sign-out"}

const (
	maxLabelRunes    = 100
	maxAncestorDepth = 5
)

// collect returns every same-origin clickable target of doc, resolved
// against currentURL, with label and origin filled in. Scores are unset.
func (d *Discoverer) collect(doc *goquery.Document, currentURL string) []CandidateLink {
	base, err := url.Parse(currentURL)
	if err != nil {
		return nil
	}

	var links []CandidateLink
	doc.Find(clickableSelector).Each(func(_ int, s *goquery.Selection) {
		raw := clickTarget(s)
		if raw == "" || skipTarget(raw) {
			return
		}

		ref, err := url.Parse(raw)
		if err != nil {
			return
		}
		if !ref.IsAbs() {
			ref = base.ResolveReference(ref)
		}
		target := ref.String()
		if !SameOrigin(target, currentURL) {
			return
		}

		label := linkLabel(s)
		lower := strings.ToLower(label + " " + target)
		for _, w := range logoutWords {
			if strings.Contains(lower, w) {
				return
			}
		}

		links = append(links, CandidateLink{
			Target:     target,
			Label:      label,
			Origin:     d.origin(s),
			RankSource: RankHeuristic,
		})
	})
	return links
}

// clickTarget returns the raw navigation target of s, or "".
func clickTarget(s *goquery.Selection) string {
	for _, attr := range []string{"href", "routerlink", "ng-reflect-router-link", "data-href", "data-url", "formaction"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	if state, ok := s.Attr("ui-sref"); ok {
		if route := stateRoute(state); route != "" {
			return route
		}
	}
	for _, attr := range []string{"ng-click", "onclick"} {
		v, ok := s.Attr(attr)
		if !ok {
			continue
		}
		if m := handlerPath.FindStringSubmatch(v); m != nil {
			return m[1]
		}
	}
	return ""
}

// stateRoute maps a UI-Router state name such as "account.billingHistory({id: 1})"
// to the hash route "#/account/billingHistory".
func stateRoute(state string) string {
	if i := strings.IndexByte(state, '('); i >= 0 {
		state = state[:i]
	}
	state = strings.Trim(strings.TrimSpace(state), ".")
	if state == "" {
		return ""
	}
	return "#/" + strings.ReplaceAll(state, ".", "/")
}

// skipTarget rejects bare anchors and non-navigational schemes. Hash
// routes ("#/billing") are kept.
func skipTarget(raw string) bool {
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "#") && !isHashRoute(lower[1:]):
		return true
	case strings.HasPrefix(lower, "javascript:"),
		strings.HasPrefix(lower, "mailto:"),
		strings.HasPrefix(lower, "tel:"):
		return true
	}
	return false
}

func linkLabel(s *goquery.Selection) string {
	label := strings.Join(strings.Fields(s.Text()), " ")
	if label == "" {
		label = strings.TrimSpace(s.AttrOr("aria-label", ""))
	}
	if label == "" {
		label = strings.TrimSpace(s.AttrOr("title", ""))
	}
	r := []rune(label)
	if len(r) > maxLabelRunes {
		label = string(r[:maxLabelRunes])
	}
	return label
}

// origin classifies the page region of s from up to five ancestors.
// Header markers are checked before footer and sidebar markers.
func (d *Discoverer) origin(s *goquery.Selection) Origin {
	kw := d.cfg.Keywords
	depth := 0
	for p := s.Parent(); p.Length() > 0 && depth < maxAncestorDepth; p = p.Parent() {
		depth++
		switch goquery.NodeName(p) {
		case "header":
			return OriginHeader
		case "footer":
			return OriginFooter
		case "nav", "aside":
			return OriginSidebar
		}

		attrs := strings.ToLower(p.AttrOr("class", "") + " " + p.AttrOr("id", "") + " " + p.AttrOr("role", ""))
		switch {
		case containsWord(attrs, kw.HeaderMarkers):
			return OriginHeader
		case containsWord(attrs, kw.FooterMarkers):
			return OriginFooter
		case containsWord(attrs, kw.SidebarMarkers):
			return OriginSidebar
		}
	}
	return OriginMain
}

// containsWord reports whether any marker appears in attrs.
func containsWord(attrs string, markers []string) bool {
	if strings.TrimSpace(attrs) == "" {
		return false
	}
	for _, m := range markers {
		if strings.Contains(attrs, m) {
			return true
		}
	}
	return false
}

// score computes the heuristic relevance of l. The label tier counts
// once, highest tier first; the URL adds its own tier and a bonus for
// billing terms; sidebar links are boosted.
func (d *Discoverer) score(l CandidateLink) int {
	kw := d.cfg.Keywords
	label := strings.ToLower(l.Label)
	target := strings.ToLower(l.Target)
	urlText := strings.NewReplacer("-", " ", "_", " ", "/", " ").Replace(target)

	score := 0
	switch {
	case containsWord(label, kw.High):
		score += 50
	case containsWord(label, kw.Medium):
		score += 30
	case containsWord(label, kw.Low):
		score += 15
	}

	switch {
	case containsWord(urlText, kw.High):
		score += 30
	case containsWord(urlText, kw.Medium):
		score += 20
	}

	if containsWord(target, kw.URLBonus) {
		score += 40
	}

	if l.Origin == OriginSidebar {
		score += 20
		if containsWord(label, kw.SidebarPriority) {
			score += 15
		}
	}

	return min(score, 100)
}

// originOf returns the scheme and host of rawURL as a URL.
func originOf(rawURL string) *url.URL {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}
}
