// Package orchestrator runs the extraction strategies over a page in
// priority order and returns the first meaningful billing history.
package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/extractor"
	"github.com/jmylchreest/billscout/internal/logger"
	"github.com/jmylchreest/billscout/internal/oracle"
	"github.com/jmylchreest/billscout/pkg/billing"
)

// ErrNoStrategyAvailable is returned when no strategy in the chain can run
// for the given page.
var ErrNoStrategyAvailable = errors.New("no extraction strategy available")

// Session is the part of the live browser session strategies may read.
// Strategies never navigate.
type Session interface {
	Cookies(ctx context.Context) ([]*http.Cookie, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Page is a snapshot of the current browser page.
type Page struct {
	URL     string
	Content string

	// Session is optional. Without it the API and vision strategies are
	// skipped.
	Session Session

	// KnownBilling enables the vision strategy.
	KnownBilling bool
}

// Strategy is one way of turning a page into billing records.
type Strategy interface {
	// Name returns the strategy identifier.
	Name() string

	// Available reports whether the strategy can run for page.
	Available(page Page) bool

	// Extract returns the strategy's records and, when known, the
	// account number.
	Extract(ctx context.Context, page Page) ([]billing.Record, string, error)
}

// Orchestrator tries each strategy in order until one yields a meaningful
// history. It never mixes records from different strategies.
type Orchestrator struct {
	cfg        config.Config
	strategies []Strategy
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStrategies replaces the default strategy chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(o *Orchestrator) { o.strategies = strategies }
}

// New creates an Orchestrator with the default chain:
// api, markup, oracle_html, dashboard, vision. A nil asker disables the
// oracle strategies.
func New(cfg config.Config, ext *extractor.Extractor, asker oracle.Asker, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg: cfg,
		strategies: []Strategy{
			NewAPIStrategy(cfg, ext),
			NewMarkupStrategy(ext),
			NewOracleHTMLStrategy(cfg, ext, asker),
			NewDashboardStrategy(ext),
			NewVisionStrategy(cfg, ext, asker),
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ExtractBest runs the chain over page. The first strategy whose collapsed
// output is meaningful wins. When strategies ran but none produced data a
// sentinel history is returned with a nil error.
func (o *Orchestrator) ExtractBest(ctx context.Context, page Page) (billing.History, error) {
	log := logger.FromContext(ctx)
	var tried []string
	for _, s := range o.strategies {
		if err := ctx.Err(); err != nil {
			return billing.Sentinel(billing.ReasonCancelled), err
		}
		if !s.Available(page) {
			continue
		}

		tried = append(tried, s.Name())
		start := time.Now()
		records, account, err := s.Extract(ctx, page)
		if err != nil {
			log.Warn("extraction strategy failed", "strategy", s.Name(), "url", page.URL, "error", err)
			continue
		}

		if o.cfg.MonthlyCollapse == config.CollapseLatest {
			records = billing.CollapseMonthly(records)
		}
		if account == "" {
			account = billing.AccountFromURL(page.URL)
		}
		h := billing.NewHistory(records, account).WithStrategy(s.Name())
		log.Debug("extraction strategy finished",
			"strategy", s.Name(),
			"url", page.URL,
			"records", len(h.Records),
			"duration", time.Since(start),
		)
		if h.Meaningful() {
			log.Info("extraction succeeded", "strategy", s.Name(), "url", page.URL, "records", len(h.Records))
			return h, nil
		}
	}

	if len(tried) == 0 {
		return billing.Sentinel(billing.ReasonAllEmpty), ErrNoStrategyAvailable
	}
	log.Debug("all extraction strategies returned empty", "url", page.URL, "tried", strings.Join(tried, ","))
	return billing.Sentinel(billing.ReasonAllEmpty), nil
}

// Name returns the chain name.
func (o *Orchestrator) Name() string {
	names := make([]string, len(o.strategies))
	for i, s := range o.strategies {
		names[i] = s.Name()
	}
	return "chain(" + strings.Join(names, "->") + ")"
}
