package explorer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/discovery"
	"github.com/jmylchreest/billscout/internal/logger"
	"github.com/jmylchreest/billscout/internal/oracle"
	"github.com/jmylchreest/billscout/internal/orchestrator"
	"github.com/jmylchreest/billscout/pkg/billing"
)

type state int

const (
	stateCheckCurrent state = iota
	stateDiscover
	stateVisitNext
	stateStop
)

func (s state) String() string {
	switch s {
	case stateCheckCurrent:
		return "CHECK_CURRENT"
	case stateDiscover:
		return "DISCOVER"
	case stateVisitNext:
		return "VISIT_NEXT"
	default:
		return "STOP"
	}
}

// run is the state of one exploration. It is owned by a single Explore
// call and never shared.
type run struct {
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger

	now      func() time.Time
	start    time.Time
	deadline time.Time

	visited  *discovery.VisitedSet
	frontier *discovery.Frontier
	best     billing.History

	url     string
	content string
	pages   int
	queued  int

	stop   string
	reason string
}

// start initialises the run. The budget is checked before the browser is
// touched.
func (e *Engine) start(ctx context.Context, b Browser) *run {
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.TimeBudget)
	now := e.now()
	visited := discovery.NewVisitedSet()
	r := &run{
		parent:   ctx,
		ctx:      runCtx,
		cancel:   cancel,
		log:      logger.FromContext(ctx),
		now:      e.now,
		start:    now,
		deadline: now.Add(e.cfg.TimeBudget),
		visited:  visited,
		frontier: discovery.NewFrontier(visited),
		best:     billing.Sentinel(billing.ReasonAllEmpty),
	}

	if stop := r.interrupted(); stop != "" {
		r.halt(stop)
		return r
	}

	entry, err := b.CurrentURL(r.ctx)
	if err != nil || entry == "" {
		r.log.Warn("cannot read entry page URL", "error", err)
		r.halt(StopEntryFailed)
		return r
	}
	r.url = entry
	r.visited.Add(entry)
	r.log.Info("exploration started", "url", entry, "budget", e.cfg.TimeBudget, "max_visits", e.cfg.MaxVisits)
	return r
}

// interrupted reports a stop reason when the caller cancelled or the
// budget is spent.
func (r *run) interrupted() string {
	switch {
	case r.parent.Err() != nil:
		return StopCancelled
	case !r.now().Before(r.deadline), r.ctx.Err() != nil:
		return StopBudget
	}
	return ""
}

// halt records why the run stopped and the sentinel reason used when no
// data was found.
func (r *run) halt(stop string) {
	if r.stop != "" {
		return
	}
	r.stop = stop
	switch stop {
	case StopBudget:
		r.reason = billing.ReasonBudgetExceeded
	case StopCancelled:
		r.reason = billing.ReasonCancelled
	case StopBlocked:
		r.reason = billing.ReasonBlocked
	case StopLoginRequired:
		r.reason = billing.ReasonLoginRequired
	case StopEntryFailed:
		r.reason = billing.ReasonEntryFailed
	case StopNoCandidates:
		if r.queued == 0 {
			r.reason = billing.ReasonNoLinks
		} else {
			r.reason = billing.ReasonAllEmpty
		}
	default:
		r.reason = billing.ReasonAllEmpty
	}
}

// fold merges a page result into the running best. The best never gets
// worse.
func (r *run) fold(h billing.History) {
	r.best = billing.Fold(r.best, h)
}

// checkCurrent inspects the current page and decides whether to stop.
func (e *Engine) checkCurrent(r *run, b Browser) state {
	stop, err := e.inspect(r, b)
	switch {
	case stop:
		return stateStop
	case err != nil && r.pages == 0:
		r.halt(StopEntryFailed)
		return stateStop
	case err != nil:
		return stateVisitNext
	}
	return stateDiscover
}

// inspect reads the current page, harvests it and applies the stop rules.
// It returns true when the run should stop.
func (e *Engine) inspect(r *run, b Browser) (bool, error) {
	content, err := b.PageContent(r.ctx)
	if err != nil {
		r.log.Warn("failed to read page content", "url", r.url, "error", err)
		r.visited.MarkFailed(r.url)
		return false, err
	}
	if cur, err := b.CurrentURL(r.ctx); err == nil && cur != "" {
		r.visited.Add(cur)
		r.url = cur
	}
	r.content = content
	r.pages++

	if kind := DetectChallenge(content); kind != "" {
		r.log.Warn("challenge page detected", "url", r.url, "type", kind)
		r.halt(StopBlocked)
		return true, nil
	}
	if e.scorer.RegistrationWall(r.url, content) {
		r.log.Warn("registration or account setup required", "url", r.url)
		r.halt(StopLoginRequired)
		return true, nil
	}

	score := e.scorer.Score(content)
	known := e.scorer.IsBillingPage(content)
	h, err := e.harvester.ExtractBest(r.ctx, orchestrator.Page{
		URL:          r.url,
		Content:      content,
		Session:      b,
		KnownBilling: known,
	})
	if err != nil && !errors.Is(err, orchestrator.ErrNoStrategyAvailable) {
		r.log.Debug("extraction interrupted", "url", r.url, "error", err)
	}
	r.fold(h)
	r.log.Info("page checked",
		"url", r.url,
		"score", score,
		"billing_page", known,
		"records", len(h.Records),
		"strategy", h.Strategy,
		"best", len(r.best.Records),
	)

	if score >= e.cfg.EarlyStopScore && h.Meaningful() {
		r.halt(StopEarly)
		return true, nil
	}
	if score < e.cfg.EarlyStopScore && e.oracle != nil && e.sufficient(r) {
		r.halt(StopSufficient)
		return true, nil
	}
	return false, nil
}

// sufficient consults the oracle when the deterministic score is low. Any
// listed entries are validated and folded in; the run only stops when
// the best history then holds data.
func (e *Engine) sufficient(r *run) bool {
	verdict, err := oracle.Sufficiency(r.ctx, e.oracle, r.url, oracle.PageText(r.content))
	if err != nil {
		r.log.Warn("sufficiency evaluation failed, continuing with heuristics", "url", r.url, "error", err)
		return false
	}
	r.log.Debug("sufficiency verdict",
		"url", r.url,
		"sufficient", verdict.HasSufficientData,
		"months", verdict.MonthsFound,
		"quality", verdict.Quality,
	)
	if !verdict.Sufficient() {
		return false
	}

	records := oracle.ToRecords(verdict.Entries, e.extractor.Matcher(), billing.SourceOracleText)
	if len(records) > 0 {
		records = billing.Dedup(records, e.extractor.Matcher().Now())
		if e.cfg.MonthlyCollapse == config.CollapseLatest {
			records = billing.CollapseMonthly(records)
		}
		r.fold(billing.NewHistory(records, billing.AccountFromURL(r.url)).WithStrategy("oracle_sufficiency"))
	}
	return r.best.Meaningful()
}

// discoverLinks queues candidates from the current page and follows any
// oracle-recommended sub-links.
func (e *Engine) discoverLinks(r *run, b Browser) state {
	links := e.discover.Discover(r.ctx, r.content, r.url, r.visited)
	r.queued += r.frontier.Add(links...)
	r.log.Debug("candidates discovered", "url", r.url, "found", len(links), "queued", r.frontier.Len())

	if e.oracle != nil && e.cfg.MaxSubLinks > 0 {
		if e.followSubLinks(r, b, links) {
			return stateStop
		}
	}

	if r.frontier.Len() == 0 {
		r.halt(StopNoCandidates)
		return stateStop
	}
	return stateVisitNext
}

// visitNext navigates to the best queued candidate.
func (e *Engine) visitNext(r *run, b Browser) state {
	for {
		if r.pages >= e.cfg.MaxVisits {
			r.halt(StopVisitCap)
			return stateStop
		}
		if stop := r.interrupted(); stop != "" {
			r.halt(stop)
			return stateStop
		}

		link, ok := r.frontier.Pop()
		if !ok {
			r.halt(StopNoCandidates)
			return stateStop
		}
		r.log.Debug("visiting candidate",
			"url", link.Target,
			"score", link.Score,
			"origin", link.Origin,
			"rank", link.RankSource,
		)
		if err := e.navigate(r, b, link.Target); err != nil {
			if r.stop != "" {
				return stateStop
			}
			continue
		}
		return stateCheckCurrent
	}
}

// navigate moves the browser to target and records the visit. Failed
// targets are marked so they are never retried.
func (e *Engine) navigate(r *run, b Browser, target string) error {
	if err := b.Navigate(r.ctx, target); err != nil {
		r.visited.MarkFailed(target)
		if errors.Is(err, ErrAntiBot) {
			r.log.Warn("navigation blocked by challenge", "url", target, "error", err)
			r.halt(StopBlocked)
			return err
		}
		r.log.Warn("navigation failed", "url", target, "error", err)
		return err
	}
	r.visited.Add(target)
	r.url = target
	return nil
}

// finish builds the Result. Without data the history is a sentinel
// carrying the stop reason.
func (e *Engine) finish(r *run) Result {
	h := r.best
	if h.Meaningful() {
		h.Reason = ""
	} else {
		reason := r.reason
		if reason == "" {
			reason = billing.ReasonAllEmpty
		}
		h = billing.Sentinel(reason)
	}

	res := Result{
		History:  h,
		Stop:     r.stop,
		Visited:  r.pages,
		Duration: r.now().Sub(r.start),
	}
	r.log.Info("exploration finished",
		"stop", res.Stop,
		"records", len(h.Records),
		"strategy", h.Strategy,
		"reason", h.Reason,
		"pages", res.Visited,
		"duration", res.Duration,
	)
	return res
}
