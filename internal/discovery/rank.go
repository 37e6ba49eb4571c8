package discovery

import (
	"context"
	"strings"

	"github.com/jmylchreest/billscout/internal/logger"
	"github.com/jmylchreest/billscout/internal/oracle"
)

// fallbackBoosts re-score heuristic links by label when the oracle gives
// no usable ranking. The first matching phrase wins.
var fallbackBoosts = []struct {
	phrases []string
	score   int
}{
	{[]string{"billing history", "transaction history"}, 95},
	{[]string{"payment history", "account history"}, 90},
	{[]string{"bills", "statements"}, 85},
	{[]string{"billing", "transactions"}, 80},
	{[]string{"account", "usage"}, 70},
}

// rank combines the oracle's ranking with the heuristic candidates. Only
// URLs that match a known candidate are accepted from the oracle.
func (d *Discoverer) rank(ctx context.Context, currentURL string, candidates []CandidateLink) []CandidateLink {
	top := candidates
	if len(top) > d.cfg.OracleRankCandidates {
		top = top[:d.cfg.OracleRankCandidates]
	}

	contexts := make([]oracle.LinkContext, len(top))
	for i, c := range top {
		contexts[i] = oracle.LinkContext{URL: c.Target, Text: c.Label, Location: string(c.Origin), Score: c.Score}
	}

	ranked, err := oracle.RankLinks(ctx, d.oracle, currentURL, contexts)
	if err != nil {
		logger.FromContext(ctx).Warn("oracle link ranking failed, using heuristic fallback", "url", currentURL, "error", err)
		return d.fallback(candidates)
	}

	selected := d.selectRanked(ranked, candidates)
	if len(selected) == 0 {
		logger.FromContext(ctx).Debug("oracle ranking selected no links, using heuristic fallback", "url", currentURL, "ranked", len(ranked))
		return d.fallback(candidates)
	}
	return merge(selected, candidates)
}

// rankedCandidate pairs an oracle score with the candidate it refers to.
type rankedCandidate struct {
	link   CandidateLink
	oracle int
}

// selectRanked keeps oracle entries at or above the primary threshold, or
// the fallback threshold when none reach it.
func (d *Discoverer) selectRanked(ranked []oracle.RankedLink, candidates []CandidateLink) []rankedCandidate {
	byURL := make(map[string]CandidateLink, len(candidates))
	for _, c := range candidates {
		byURL[Canonical(c.Target)] = c
	}

	var matched []rankedCandidate
	seen := make(map[string]bool)
	for _, r := range ranked {
		key := Canonical(resolveAgainst(r.URL, candidates))
		c, ok := byURL[key]
		if !ok || seen[key] {
			continue
		}
		seen[key] = true
		matched = append(matched, rankedCandidate{link: c, oracle: r.Score})
	}

	for _, threshold := range []int{d.cfg.OracleRankThreshold, d.cfg.OracleRankFallback} {
		var out []rankedCandidate
		for _, m := range matched {
			if m.oracle >= threshold {
				out = append(out, m)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// merge places oracle-selected links first, ordered by their blended
// oracle and heuristic score, then the remaining heuristic links with
// scores capped below the lowest selected score.
func merge(selected []rankedCandidate, candidates []CandidateLink) []CandidateLink {
	out := make([]CandidateLink, 0, len(candidates))
	chosen := make(map[string]bool, len(selected))
	floor := 100
	for _, s := range selected {
		l := s.link
		l.Score = (2*s.oracle + l.Score) / 3
		l.RankSource = RankOracle
		chosen[Canonical(l.Target)] = true
		floor = min(floor, l.Score)
		out = append(out, l)
	}
	sortCandidates(out)

	var rest []CandidateLink
	for _, c := range candidates {
		if chosen[Canonical(c.Target)] {
			continue
		}
		c.Score = max(0, min(c.Score, floor-1))
		rest = append(rest, c)
	}
	sortCandidates(rest)
	return append(out, rest...)
}

// fallback keeps the heuristic top links, boosted by the label table.
func (d *Discoverer) fallback(candidates []CandidateLink) []CandidateLink {
	top := make([]CandidateLink, 0, d.cfg.HeuristicFallbackTop)
	for i, c := range candidates {
		if i >= d.cfg.HeuristicFallbackTop {
			break
		}
		label := strings.ToLower(c.Label)
		for _, b := range fallbackBoosts {
			if containsWord(label, b.phrases) {
				c.Score = max(c.Score, b.score)
				break
			}
		}
		top = append(top, c)
	}
	sortCandidates(top)
	return top
}

// resolveAgainst resolves a relative oracle URL against the origin of the
// first candidate.
func resolveAgainst(rawURL string, candidates []CandidateLink) string {
	if Canonical(rawURL) != "" || len(candidates) == 0 {
		return rawURL
	}
	base := originOf(candidates[0].Target)
	if base == nil {
		return rawURL
	}
	if !strings.HasPrefix(rawURL, "/") && !strings.HasPrefix(rawURL, "#") {
		rawURL = "/" + rawURL
	}
	if strings.HasPrefix(rawURL, "#") {
		rawURL = "/" + rawURL
	}
	return base.String() + rawURL
}
