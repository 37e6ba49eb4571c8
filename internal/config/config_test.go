package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.EarlyStopScore != 85 {
		t.Errorf("expected early stop 85, got %d", cfg.EarlyStopScore)
	}
	if cfg.TimeBudget != 180*time.Second {
		t.Errorf("expected 180s budget, got %s", cfg.TimeBudget)
	}
}

func TestNew_AppliesOptions(t *testing.T) {
	cfg := New(
		WithEarlyStopScore(90),
		WithTimeBudget(time.Minute),
		WithMaxVisits(4),
		WithMonthlyCollapse(CollapseOff),
		WithAmountBand(decimal.NewFromInt(5), decimal.NewFromInt(1000)),
	)

	if cfg.EarlyStopScore != 90 {
		t.Errorf("expected 90, got %d", cfg.EarlyStopScore)
	}
	if cfg.TimeBudget != time.Minute {
		t.Errorf("expected 1m, got %s", cfg.TimeBudget)
	}
	if cfg.MaxVisits != 4 {
		t.Errorf("expected 4, got %d", cfg.MaxVisits)
	}
	if cfg.MonthlyCollapse != CollapseOff {
		t.Errorf("expected off, got %s", cfg.MonthlyCollapse)
	}
	if !cfg.Band().Contains(decimal.NewFromInt(5)) || cfg.Band().Contains(decimal.NewFromInt(4)) {
		t.Error("band not applied")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"score above 100", WithEarlyStopScore(150)},
		{"zero budget", WithTimeBudget(0)},
		{"inverted band", WithAmountBand(decimal.NewFromInt(100), decimal.NewFromInt(10))},
		{"unknown collapse", WithMonthlyCollapse(CollapseMode("earliest"))},
		{"empty keywords", WithKeywords(Keywords{})},
		{"fallback above threshold", func(c *Config) { c.OracleRankFallback = 90 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := New(tt.opt).Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestYearWindow(t *testing.T) {
	cfg := DefaultConfig()
	lo, hi := cfg.YearWindow(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if lo != 2009 || hi != 2026 {
		t.Errorf("expected 2009..2026, got %d..%d", lo, hi)
	}
}
