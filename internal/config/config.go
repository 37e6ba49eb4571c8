// Package config holds the tuning parameters shared by the exploration engine
// and its components. A Config is built once and passed by value.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jmylchreest/billscout/pkg/billing"
)

// CollapseMode selects how records are reduced to one per month.
type CollapseMode string

const (
	// CollapseLatest keeps the record with the latest date in each month.
	CollapseLatest CollapseMode = "latest"
	// CollapseOff keeps every deduplicated record.
	CollapseOff CollapseMode = "off"
)

// Config holds every threshold, limit and keyword list used during a run.
type Config struct {
	// MinAmount and MaxAmount bound plausible bill amounts.
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal

	// EarlyStopScore is the page score at which exploration stops when the
	// page also yields data.
	EarlyStopScore int `validate:"min=1,max=100"`

	// MinLinkScore is the minimum heuristic score for a discovered link.
	MinLinkScore int `validate:"min=0,max=100"`

	// OracleRankThreshold and OracleRankFallback are the score cuts applied
	// to oracle link rankings, tried in order.
	OracleRankThreshold int `validate:"min=0,max=100"`
	OracleRankFallback  int `validate:"min=0,max=100,ltefield=OracleRankThreshold"`

	// OracleRankCandidates is how many heuristic candidates the oracle ranks.
	OracleRankCandidates int `validate:"min=1"`

	// HeuristicFallbackTop is how many heuristic links survive when the
	// oracle ranking is unusable.
	HeuristicFallbackTop int `validate:"min=1"`

	// MaxContentChars bounds page content sent to the oracle.
	MaxContentChars int `validate:"min=1000"`

	MaxRecordsPerPass      int `validate:"min=1"`
	MaxRecordsPerContainer int `validate:"min=1"`

	// MaxYearsBack and MaxYearsForward bound plausible record years.
	MaxYearsBack    int `validate:"min=0"`
	MaxYearsForward int `validate:"min=0"`

	TimeBudget time.Duration `validate:"min=1s"`
	MaxVisits  int           `validate:"min=1"`

	// MaxSubLinks bounds oracle-recommended sub-links followed per page.
	MaxSubLinks        int `validate:"min=0"`
	MaxSubLinkFailures int `validate:"min=1"`

	SPAWaitAttempts int           `validate:"min=1"`
	SPAWaitInterval time.Duration `validate:"min=0"`

	MonthlyCollapse CollapseMode `validate:"oneof=latest off"`

	OracleTemperature      float64       `validate:"min=0,max=2"`
	OracleMaxTokens        int           `validate:"min=64"`
	OracleExtractMaxTokens int           `validate:"min=64"`
	OracleTimeout          time.Duration `validate:"min=1s"`
	OracleCacheTTL         time.Duration `validate:"min=0"`
	OracleRatePerMinute    int           `validate:"min=0"`

	APIRequestTimeout time.Duration `validate:"min=1s"`
	MaxAPIEndpoints   int           `validate:"min=0"`

	Keywords Keywords
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		MinAmount:              decimal.NewFromInt(1),
		MaxAmount:              decimal.NewFromInt(5000),
		EarlyStopScore:         85,
		MinLinkScore:           30,
		OracleRankThreshold:    70,
		OracleRankFallback:     50,
		OracleRankCandidates:   15,
		HeuristicFallbackTop:   5,
		MaxContentChars:        15000,
		MaxRecordsPerPass:      50,
		MaxRecordsPerContainer: 20,
		MaxYearsBack:           15,
		MaxYearsForward:        2,
		TimeBudget:             180 * time.Second,
		MaxVisits:              15,
		MaxSubLinks:            3,
		MaxSubLinkFailures:     3,
		SPAWaitAttempts:        3,
		SPAWaitInterval:        1500 * time.Millisecond,
		MonthlyCollapse:        CollapseLatest,
		OracleTemperature:      0.1,
		OracleMaxTokens:        800,
		OracleExtractMaxTokens: 1000,
		OracleTimeout:          60 * time.Second,
		OracleCacheTTL:         10 * time.Minute,
		OracleRatePerMinute:    30,
		APIRequestTimeout:      10 * time.Second,
		MaxAPIEndpoints:        10,
		Keywords:               DefaultKeywords(),
	}
}

// Option configures a Config.
type Option func(*Config)

// New returns DefaultConfig with opts applied.
func New(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithAmountBand sets the plausible amount range.
func WithAmountBand(min, max decimal.Decimal) Option {
	return func(c *Config) {
		c.MinAmount = min
		c.MaxAmount = max
	}
}

// WithEarlyStopScore sets the page score that ends exploration.
func WithEarlyStopScore(score int) Option {
	return func(c *Config) { c.EarlyStopScore = score }
}

// WithTimeBudget sets the wall-clock budget of a run.
func WithTimeBudget(d time.Duration) Option {
	return func(c *Config) { c.TimeBudget = d }
}

// WithMaxVisits caps the number of pages visited per run.
func WithMaxVisits(n int) Option {
	return func(c *Config) { c.MaxVisits = n }
}

// WithMaxContentChars bounds oracle input size.
func WithMaxContentChars(n int) Option {
	return func(c *Config) { c.MaxContentChars = n }
}

// WithMonthlyCollapse selects the per-month reduction.
func WithMonthlyCollapse(mode CollapseMode) Option {
	return func(c *Config) { c.MonthlyCollapse = mode }
}

// WithOracleTimeout bounds each oracle call.
func WithOracleTimeout(d time.Duration) Option {
	return func(c *Config) { c.OracleTimeout = d }
}

// WithOracleRate limits oracle calls per minute across all runs. Zero disables the limit.
func WithOracleRate(perMinute int) Option {
	return func(c *Config) { c.OracleRatePerMinute = perMinute }
}

// WithKeywords replaces the keyword lists.
func WithKeywords(k Keywords) Option {
	return func(c *Config) { c.Keywords = k }
}

// Band returns the amount band as a billing.Band.
func (c Config) Band() billing.Band {
	return billing.Band{Min: c.MinAmount, Max: c.MaxAmount}
}

// YearWindow returns the plausible year range relative to now.
func (c Config) YearWindow(now time.Time) (int, int) {
	return now.Year() - c.MaxYearsBack, now.Year() + c.MaxYearsForward
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the config for out-of-range values.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !c.MinAmount.IsPositive() {
		return fmt.Errorf("invalid config: min amount must be positive, got %s", c.MinAmount)
	}
	if c.MaxAmount.LessThanOrEqual(c.MinAmount) {
		return fmt.Errorf("invalid config: max amount %s must exceed min amount %s", c.MaxAmount, c.MinAmount)
	}
	if len(c.Keywords.High) == 0 {
		return fmt.Errorf("invalid config: high-priority navigation keywords are empty")
	}
	return nil
}
