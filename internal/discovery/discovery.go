// Package discovery finds and ranks navigation targets on a portal page.
package discovery

import (
	"context"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/logger"
	"github.com/jmylchreest/billscout/internal/oracle"
)

// Origin is the page region a link was found in.
type Origin string

const (
	OriginSidebar Origin = "sidebar"
	OriginMain    Origin = "main"
	OriginHeader  Origin = "header"
	OriginFooter  Origin = "footer"
	OriginGuess   Origin = "pattern-guess"
)

// RankSource records whether a link's score came from the oracle.
type RankSource string

const (
	RankHeuristic RankSource = "heuristic"
	RankOracle    RankSource = "oracle"
)

// CandidateLink is a scored navigation target.
type CandidateLink struct {
	Target     string
	Label      string
	Score      int
	Origin     Origin
	RankSource RankSource
}

// Discoverer finds candidate links. The oracle is optional.
type Discoverer struct {
	cfg    config.Config
	oracle oracle.Asker
}

// New creates a Discoverer. A nil asker disables oracle ranking.
func New(cfg config.Config, asker oracle.Asker) *Discoverer {
	return &Discoverer{cfg: cfg, oracle: asker}
}

// Discover returns unvisited candidate links from page, best first. Links
// are scored heuristically and, when an oracle is configured, re-ranked by
// it. If nothing clears the minimum score, common billing paths relative
// to the current origin are guessed instead.
func (d *Discoverer) Discover(ctx context.Context, page, currentURL string, visited *VisitedSet) []CandidateLink {
	candidates := d.Heuristic(page, currentURL, visited)
	if len(candidates) == 0 {
		guesses := d.Guesses(currentURL, visited)
		logger.FromContext(ctx).Debug("no relevant links found, using pattern guesses", "url", currentURL, "guesses", len(guesses))
		return guesses
	}
	if d.oracle == nil {
		return candidates
	}
	return d.rank(ctx, currentURL, candidates)
}

// Heuristic returns the keyword-scored links of page that clear the
// minimum score, excluding visited and cross-origin targets.
func (d *Discoverer) Heuristic(page, currentURL string, visited *VisitedSet) []CandidateLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil
	}

	best := make(map[string]CandidateLink)
	for _, l := range d.collect(doc, currentURL) {
		if visited.Contains(l.Target) || Canonical(l.Target) == Canonical(currentURL) {
			continue
		}
		l.Score = d.score(l)
		if l.Score < d.cfg.MinLinkScore {
			continue
		}
		key := Canonical(l.Target)
		if cur, ok := best[key]; !ok || l.Score > cur.Score {
			best[key] = l
		}
	}

	out := make([]CandidateLink, 0, len(best))
	for _, l := range best {
		out = append(out, l)
	}
	sortCandidates(out)
	return out
}

// Guesses synthesises candidates from the common billing paths relative
// to the origin of currentURL. Guesses score below any real link.
func (d *Discoverer) Guesses(currentURL string, visited *VisitedSet) []CandidateLink {
	base := originOf(currentURL)
	if base == nil {
		return nil
	}

	var out []CandidateLink
	score := max(d.cfg.MinLinkScore-1, 1)
	for _, path := range d.cfg.Keywords.CommonPaths {
		target := base.String() + path
		if visited.Contains(target) || Canonical(target) == Canonical(currentURL) {
			continue
		}
		out = append(out, CandidateLink{
			Target:     target,
			Label:      path,
			Score:      score,
			Origin:     OriginGuess,
			RankSource: RankHeuristic,
		})
		if score > 1 {
			score--
		}
	}
	return out
}

// sortCandidates orders by score descending, then by target for
// determinism.
func sortCandidates(links []CandidateLink) {
	sort.SliceStable(links, func(i, j int) bool {
		if links[i].Score != links[j].Score {
			return links[i].Score > links[j].Score
		}
		return links[i].Target < links[j].Target
	})
}
