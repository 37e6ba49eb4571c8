package explorer

import (
	"net/url"

	"github.com/jmylchreest/billscout/internal/discovery"
	"github.com/jmylchreest/billscout/internal/oracle"
)

// followSubLinks asks the oracle which links to try from the current page
// and visits up to MaxSubLinks of them, by priority. Consecutive
// navigation failures abandon the page. It returns true when the run
// should stop.
func (e *Engine) followSubLinks(r *run, b Browser, links []discovery.CandidateLink) bool {
	origin := r.url
	contexts := make([]oracle.LinkContext, 0, min(len(links), e.cfg.OracleRankCandidates))
	for _, l := range links {
		if len(contexts) >= e.cfg.OracleRankCandidates {
			break
		}
		contexts = append(contexts, oracle.LinkContext{URL: l.Target, Text: l.Label, Location: string(l.Origin), Score: l.Score})
	}

	plan, err := oracle.Strategy(r.ctx, e.oracle, origin, oracle.PageText(r.content), contexts)
	if err != nil {
		r.log.Warn("exploration strategy failed, using ranked candidates", "url", origin, "error", err)
		return false
	}
	if !plan.ExplorationNeeded || len(plan.NextLinks) == 0 {
		return false
	}

	followed, failures := 0, 0
	for _, next := range plan.NextLinks {
		if followed >= e.cfg.MaxSubLinks {
			break
		}
		if failures >= e.cfg.MaxSubLinkFailures {
			r.log.Warn("abandoning sub-links after repeated failures", "url", origin, "failures", failures)
			break
		}
		if stop := r.interrupted(); stop != "" {
			r.halt(stop)
			return true
		}
		if r.pages >= e.cfg.MaxVisits {
			r.halt(StopVisitCap)
			return true
		}

		target := resolve(origin, next.URL)
		if target == "" || !discovery.SameOrigin(target, origin) || r.visited.Contains(target) {
			r.log.Debug("skipping sub-link", "url", next.URL, "resolved", target)
			continue
		}

		followed++
		r.log.Debug("following sub-link", "url", target, "priority", next.Priority, "reason", next.Reason)
		if err := e.navigate(r, b, target); err != nil {
			if r.stop != "" {
				return true
			}
			failures++
			continue
		}
		stop, err := e.inspect(r, b)
		if stop {
			return true
		}
		if err != nil {
			failures++
			continue
		}
		failures = 0
	}
	return false
}

// resolve makes ref absolute against base. It returns "" when either is
// unusable.
func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return b.ResolveReference(u).String()
}
