// Package runner executes exploration runs, one browser session per run,
// either singly or as a bounded concurrent batch.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/explorer"
	"github.com/jmylchreest/billscout/internal/logger"
	"github.com/jmylchreest/billscout/internal/login"
	"github.com/jmylchreest/billscout/internal/oracle"
	"github.com/jmylchreest/billscout/internal/output"
	"github.com/jmylchreest/billscout/pkg/billing"
)

// DefaultConcurrency is the number of batch runs in flight at once.
const DefaultConcurrency = 2

// Session is one live browser session. It is owned by a single run.
type Session interface {
	explorer.Browser
	login.Page
	Close() error
}

// SessionFactory opens a fresh browser session.
type SessionFactory func(ctx context.Context) (Session, error)

// Explorer runs one exploration against a browser.
type Explorer interface {
	Explore(ctx context.Context, b explorer.Browser) explorer.Result
}

// Loginer logs in on the current page.
type Loginer interface {
	Login(ctx context.Context, p login.Page, creds login.Credentials) (login.Result, error)
}

// Runner executes runs. All runs share the engine and oracle; each gets its
// own session.
type Runner struct {
	open        SessionFactory
	explorer    Explorer
	loginer     Loginer
	concurrency int
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithExplorer replaces the exploration engine.
func WithExplorer(e Explorer) Option {
	return func(r *Runner) { r.explorer = e }
}

// WithLoginer replaces the login routine.
func WithLoginer(l Loginer) Option {
	return func(r *Runner) { r.loginer = l }
}

// WithConcurrency sets how many batch runs may be in flight.
func WithConcurrency(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithClock sets the clock used for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a Runner. A nil asker runs without the oracle.
func New(cfg config.Config, asker oracle.Asker, open SessionFactory, opts ...Option) *Runner {
	r := &Runner{
		open:        open,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.explorer == nil {
		var eopts []explorer.Option
		if asker != nil {
			eopts = append(eopts, explorer.WithOracle(asker))
		}
		r.explorer = explorer.New(cfg, eopts...)
	}
	if r.loginer == nil {
		r.loginer = login.New(cfg, asker)
	}
	return r
}

// Run performs one complete run for acct: open a session, load the portal,
// log in when credentials are set, then explore. Failures are reported in
// the returned Report rather than as an error.
func (r *Runner) Run(ctx context.Context, acct Account) output.Report {
	id := ulid.Make().String()
	log := logger.With("run_id", id, "account", acct.Label)
	ctx = logger.NewContext(ctx, log)
	started := r.now()

	res, err := r.run(ctx, acct)
	if res.Duration == 0 {
		res.Duration = r.now().Sub(started)
	}
	if err != nil {
		log.Error("run failed", "url", acct.URL, "error", err)
	}
	return output.NewReport(id, acct.Label, acct.URL, started, res, err)
}

func (r *Runner) run(ctx context.Context, acct Account) (explorer.Result, error) {
	log := logger.FromContext(ctx)

	session, err := r.open(ctx)
	if err != nil {
		return stopped(explorer.StopEntryFailed, billing.ReasonEntryFailed), fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("failed to close browser session", "error", err)
		}
	}()

	if err := session.Navigate(ctx, acct.URL); err != nil {
		if errors.Is(err, explorer.ErrAntiBot) {
			return stopped(explorer.StopBlocked, billing.ReasonBlocked), nil
		}
		if ctx.Err() != nil {
			return stopped(explorer.StopCancelled, billing.ReasonCancelled), nil
		}
		return stopped(explorer.StopEntryFailed, billing.ReasonEntryFailed), fmt.Errorf("failed to load %s: %w", acct.URL, err)
	}

	if acct.HasCredentials() {
		_, err := r.loginer.Login(ctx, session, login.Credentials{Username: acct.Username, Password: acct.Password})
		switch {
		case errors.Is(err, login.ErrRegistrationRequired):
			return stopped(explorer.StopLoginRequired, billing.ReasonLoginRequired), nil
		case ctx.Err() != nil:
			return stopped(explorer.StopCancelled, billing.ReasonCancelled), nil
		case err != nil:
			return stopped(explorer.StopLoginRequired, billing.ReasonLoginRequired), err
		}
	}

	return r.explorer.Explore(ctx, session), nil
}

// stopped is the result of a run that ended before exploration began.
func stopped(stop, reason string) explorer.Result {
	return explorer.Result{History: billing.Sentinel(reason), Stop: stop}
}

// RunAll runs every account with bounded concurrency and hands each report
// to sink as its run finishes. Calls to sink are serialised. An error from
// sink cancels the remaining runs and is returned.
func (r *Runner) RunAll(ctx context.Context, accounts []Account, sink func(output.Report) error) error {
	if len(accounts) == 0 {
		logger.Info("no accounts to run")
		return nil
	}
	logger.Info("starting batch", "accounts", len(accounts), "concurrency", r.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	var mu sync.Mutex
	var succeeded, empty, failed atomic.Int64

	for _, acct := range accounts {
		g.Go(func() error {
			rep := r.Run(gctx, acct)
			switch rep.Status {
			case output.StatusOK:
				succeeded.Add(1)
			case output.StatusNoData:
				empty.Add(1)
			default:
				failed.Add(1)
			}

			mu.Lock()
			defer mu.Unlock()
			if err := sink(rep); err != nil {
				return fmt.Errorf("failed to write report for %s: %w", acct.Label, err)
			}
			return nil
		})
	}

	err := g.Wait()
	logger.Info("batch complete",
		"succeeded", succeeded.Load(),
		"no_data", empty.Load(),
		"failed", failed.Load(),
	)
	if err != nil {
		return fmt.Errorf("batch processing: %w", err)
	}
	return nil
}
