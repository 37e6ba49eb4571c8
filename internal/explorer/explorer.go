// Package explorer walks a logged-in utility portal under a time budget,
// looking for the page that holds the billing history.
package explorer

import (
	"context"
	"net/http"
	"time"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/discovery"
	"github.com/jmylchreest/billscout/internal/extractor"
	"github.com/jmylchreest/billscout/internal/oracle"
	"github.com/jmylchreest/billscout/internal/orchestrator"
	"github.com/jmylchreest/billscout/internal/scorer"
	"github.com/jmylchreest/billscout/pkg/billing"
)

// Browser is the live browser session the engine drives. Only the engine
// navigates; everything else reads snapshots.
type Browser interface {
	CurrentURL(ctx context.Context) (string, error)
	PageContent(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context) ([]byte, error)
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

// PageScorer rates page content.
type PageScorer interface {
	Score(content string) int
	IsBillingPage(content string) bool
	RegistrationWall(pageURL, content string) bool
}

// LinkDiscoverer finds candidate links on a page.
type LinkDiscoverer interface {
	Discover(ctx context.Context, page, currentURL string, visited *discovery.VisitedSet) []discovery.CandidateLink
}

// Harvester extracts the best billing history from a page.
type Harvester interface {
	ExtractBest(ctx context.Context, page orchestrator.Page) (billing.History, error)
}

// Stop reasons reported in Result.
const (
	StopEarly         = "early_stop"
	StopSufficient    = "oracle_sufficient"
	StopBudget        = "budget_exceeded"
	StopVisitCap      = "visit_cap"
	StopNoCandidates  = "no_candidates"
	StopBlocked       = "blocked"
	StopLoginRequired = "login_required"
	StopCancelled     = "cancelled"
	StopEntryFailed   = "entry_failed"
)

// Result is the outcome of one exploration run.
type Result struct {
	History  billing.History
	Stop     string
	Visited  int
	Duration time.Duration
}

// Engine runs exploration state machines. An Engine holds no per-run
// state and may serve concurrent runs with separate browsers.
type Engine struct {
	cfg       config.Config
	now       func() time.Time
	oracle    oracle.Asker
	extractor *extractor.Extractor
	scorer    PageScorer
	discover  LinkDiscoverer
	harvester Harvester
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for the deadline and record plausibility.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithOracle enables oracle-assisted sufficiency checks, link ranking,
// sub-link strategy and oracle extraction.
func WithOracle(a oracle.Asker) Option {
	return func(e *Engine) { e.oracle = a }
}

// WithScorer replaces the page scorer.
func WithScorer(s PageScorer) Option {
	return func(e *Engine) { e.scorer = s }
}

// WithDiscoverer replaces navigation discovery.
func WithDiscoverer(d LinkDiscoverer) Option {
	return func(e *Engine) { e.discover = d }
}

// WithHarvester replaces the extraction orchestrator.
func WithHarvester(h Harvester) Option {
	return func(e *Engine) { e.harvester = h }
}

// New creates an Engine. Components not supplied through options are
// built from cfg.
func New(cfg config.Config, opts ...Option) *Engine {
	e := &Engine{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}

	e.extractor = extractor.New(cfg, e.now)
	if e.scorer == nil {
		e.scorer = scorer.New(cfg, e.now)
	}
	if e.discover == nil {
		e.discover = discovery.New(cfg, e.oracle)
	}
	if e.harvester == nil {
		e.harvester = orchestrator.New(cfg, e.extractor, e.oracle)
	}
	return e
}

// Explore runs one exploration from the browser's current page. It never
// fails: when no billing data is found the returned history is a sentinel
// carrying the reason.
func (e *Engine) Explore(ctx context.Context, b Browser) Result {
	r := e.start(ctx, b)
	defer r.cancel()

	next := stateCheckCurrent
	if r.stop != "" {
		next = stateStop
	}
	for next != stateStop {
		if stop := r.interrupted(); stop != "" {
			r.halt(stop)
			break
		}
		r.log.Debug("exploration state", "state", next.String(), "url", r.url, "visited", r.visited.Len())

		switch next {
		case stateCheckCurrent:
			next = e.checkCurrent(r, b)
		case stateDiscover:
			next = e.discoverLinks(r, b)
		case stateVisitNext:
			next = e.visitNext(r, b)
		}
	}
	return e.finish(r)
}
