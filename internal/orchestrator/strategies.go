package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/extractor"
	"github.com/jmylchreest/billscout/internal/logger"
	"github.com/jmylchreest/billscout/internal/oracle"
	"github.com/jmylchreest/billscout/pkg/billing"
)

// MarkupStrategy reads date and amount pairs from table rows and row-like
// containers.
type MarkupStrategy struct {
	extractor *extractor.Extractor
}

// NewMarkupStrategy creates a MarkupStrategy.
func NewMarkupStrategy(ext *extractor.Extractor) *MarkupStrategy {
	return &MarkupStrategy{extractor: ext}
}

func (s *MarkupStrategy) Name() string { return "markup" }

func (s *MarkupStrategy) Available(page Page) bool {
	return strings.TrimSpace(page.Content) != ""
}

func (s *MarkupStrategy) Extract(_ context.Context, page Page) ([]billing.Record, string, error) {
	records := s.extractor.Markup(page.Content)
	return billing.Dedup(records, s.extractor.Matcher().Now()), "", nil
}

// OracleHTMLStrategy asks the oracle to read bills from cleaned markup.
type OracleHTMLStrategy struct {
	cfg       config.Config
	extractor *extractor.Extractor
	oracle    oracle.Asker
}

// NewOracleHTMLStrategy creates an OracleHTMLStrategy. A nil asker makes
// it unavailable.
func NewOracleHTMLStrategy(cfg config.Config, ext *extractor.Extractor, asker oracle.Asker) *OracleHTMLStrategy {
	return &OracleHTMLStrategy{cfg: cfg, extractor: ext, oracle: asker}
}

func (s *OracleHTMLStrategy) Name() string { return "oracle_html" }

func (s *OracleHTMLStrategy) Available(page Page) bool {
	return s.oracle != nil && strings.TrimSpace(page.Content) != ""
}

func (s *OracleHTMLStrategy) Extract(ctx context.Context, page Page) ([]billing.Record, string, error) {
	cleaned := oracle.CleanHTML(page.Content)
	if cleaned == "" {
		return nil, "", nil
	}
	logger.FromContext(ctx).Debug("sending cleaned page to oracle",
		"url", page.URL,
		"raw", humanize.Bytes(uint64(len(page.Content))),
		"cleaned", humanize.Bytes(uint64(len(cleaned))),
	)

	ex, err := oracle.ExtractFromHTML(ctx, s.oracle, page.URL, cleaned, s.cfg.OracleExtractMaxTokens)
	if err != nil {
		return nil, "", fmt.Errorf("oracle html extraction: %w", err)
	}
	records := oracle.ToRecords(ex.Bills, s.extractor.Matcher(), billing.SourceOracleText)
	return billing.Dedup(records, s.extractor.Matcher().Now()), ex.AccountNumber, nil
}

// DashboardStrategy pairs labelled summary amounts with nearby dates.
type DashboardStrategy struct {
	extractor *extractor.Extractor
}

// NewDashboardStrategy creates a DashboardStrategy.
func NewDashboardStrategy(ext *extractor.Extractor) *DashboardStrategy {
	return &DashboardStrategy{extractor: ext}
}

func (s *DashboardStrategy) Name() string { return "dashboard" }

func (s *DashboardStrategy) Available(page Page) bool {
	return strings.TrimSpace(page.Content) != ""
}

func (s *DashboardStrategy) Extract(_ context.Context, page Page) ([]billing.Record, string, error) {
	records := s.extractor.Dashboard(page.Content)
	return billing.Dedup(records, s.extractor.Matcher().Now()), "", nil
}

// VisionStrategy screenshots a known billing page and asks a vision model
// to transcribe the visible bills. It only runs on pages already
// recognised as billing pages.
type VisionStrategy struct {
	cfg       config.Config
	extractor *extractor.Extractor
	oracle    oracle.Asker
}

// NewVisionStrategy creates a VisionStrategy. A nil asker makes it
// unavailable.
func NewVisionStrategy(cfg config.Config, ext *extractor.Extractor, asker oracle.Asker) *VisionStrategy {
	return &VisionStrategy{cfg: cfg, extractor: ext, oracle: asker}
}

func (s *VisionStrategy) Name() string { return "vision" }

func (s *VisionStrategy) Available(page Page) bool {
	return s.oracle != nil && page.Session != nil && page.KnownBilling
}

func (s *VisionStrategy) Extract(ctx context.Context, page Page) ([]billing.Record, string, error) {
	png, err := page.Session.Screenshot(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("capturing screenshot: %w", err)
	}
	ex, err := oracle.ExtractFromScreenshot(ctx, s.oracle, page.URL, png, s.cfg.OracleExtractMaxTokens)
	if err != nil {
		return nil, "", fmt.Errorf("vision extraction: %w", err)
	}
	records := oracle.ToRecords(ex.Bills, s.extractor.Matcher(), billing.SourceOracleVision)
	return billing.Dedup(records, s.extractor.Matcher().Now()), ex.AccountNumber, nil
}
