package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/viper"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/output"
	"github.com/jmylchreest/billscout/pkg/llm"
)

func setViper(t *testing.T, key string, value any) {
	t.Helper()
	old := viper.Get(key)
	viper.Set(key, value)
	t.Cleanup(func() { viper.Set(key, old) })
}

// --- Browser Config Tests ---

func TestBrowserConfig_Flags(t *testing.T) {
	setViper(t, "chrome", "/opt/chromium/chrome")
	setViper(t, "headful", true)
	setViper(t, "stealth", true)

	bcfg := browserConfig(config.DefaultConfig())
	if bcfg.ChromePath != "/opt/chromium/chrome" {
		t.Errorf("expected chrome path /opt/chromium/chrome, got %q", bcfg.ChromePath)
	}
	if bcfg.Headless {
		t.Error("expected headful browser")
	}
	if !bcfg.Stealth {
		t.Error("expected stealth enabled")
	}
}

// --- Config Tests ---

func TestBuildConfig_Defaults(t *testing.T) {
	cfg, err := buildConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxContentChars != 15000 {
		t.Errorf("expected 15000 content chars, got %d", cfg.MaxContentChars)
	}
	if cfg.MaxVisits != 15 {
		t.Errorf("expected 15 visits, got %d", cfg.MaxVisits)
	}
}

func TestBuildConfig_Flags(t *testing.T) {
	setViper(t, "max_html", "64KiB")
	setViper(t, "early_stop", 90)
	setViper(t, "collapse", "off")

	cfg, err := buildConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxContentChars != 65536 {
		t.Errorf("expected 65536 content chars, got %d", cfg.MaxContentChars)
	}
	if cfg.EarlyStopScore != 90 {
		t.Errorf("expected early stop 90, got %d", cfg.EarlyStopScore)
	}
	if cfg.MonthlyCollapse != "off" {
		t.Errorf("expected collapse off, got %s", cfg.MonthlyCollapse)
	}
}

func TestBuildConfig_Rejects(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"max_html", "lots"},
		{"min_amount", "one dollar"},
		{"max_amount", "0.50"},
		{"collapse", "earliest"},
		{"early_stop", 150},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setViper(t, tt.key, tt.value)
			if _, err := buildConfig(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuildOracle_Disabled(t *testing.T) {
	setViper(t, "no_oracle", true)
	asker, err := buildOracle(defaultsForTest(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asker != nil {
		t.Error("expected nil oracle")
	}
}

func TestBuildOracle_UnknownProvider(t *testing.T) {
	setViper(t, "provider", "carrier-pigeon")
	if _, err := buildOracle(defaultsForTest(t)); err == nil {
		t.Error("expected error for unknown provider")
	}
}

// --- Summary Tests ---

func TestSummary(t *testing.T) {
	tests := []struct {
		name   string
		report output.Report
		want   string
	}{
		{
			"ok",
			output.Report{Status: output.StatusOK, Strategy: "markup", Visited: 1,
				Records: make([]output.Entry, 6),
				Current: &output.Entry{Date: "2024-08-01", Amount: "131.20"}},
			"6 records via markup, 1 page visited, current bill 131.20 on 2024-08-01",
		},
		{"no data", output.Report{Status: output.StatusNoData, Reason: "no navigation links found"}, "no data: no navigation links found"},
		{"error", output.Report{Status: output.StatusError, Error: "boom"}, "failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := summary(tt.report); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestViperKey(t *testing.T) {
	if got := viperKey("max-html"); got != "max_html" {
		t.Errorf("expected max_html, got %s", got)
	}
	if got := viperKey("debug"); got != "debug" {
		t.Errorf("expected debug, got %s", got)
	}
}

func defaultsForTest(t *testing.T) config.Config {
	t.Helper()
	cfg, err := buildConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return cfg
}

func TestUsageTally(t *testing.T) {
	u := &usageTally{}
	u.OnCall(context.Background(), llm.CallEvent{Task: "link_ranking", Response: &llm.Response{Usage: llm.Usage{InputTokens: 1200, OutputTokens: 80}}})
	u.OnCall(context.Background(), llm.CallEvent{Task: "sufficiency_evaluation", Error: errors.New("timeout")})

	if u.calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", u.calls.Load())
	}
	if u.failures.Load() != 1 {
		t.Errorf("expected 1 failure, got %d", u.failures.Load())
	}
	if u.inputTokens.Load() != 1200 || u.outputTokens.Load() != 80 {
		t.Errorf("expected 1200/80 tokens, got %d/%d", u.inputTokens.Load(), u.outputTokens.Load())
	}
}
