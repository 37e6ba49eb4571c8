package orchestrator

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/gocolly/colly/v2"
	"github.com/tidwall/gjson"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/discovery"
	"github.com/jmylchreest/billscout/internal/extractor"
	"github.com/jmylchreest/billscout/internal/logger"
	"github.com/jmylchreest/billscout/pkg/billing"
)

// DefaultUserAgent is sent with API re-requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// endpointPatterns find REST and AJAX endpoints referenced in markup and
// inline scripts.
var endpointPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)["']([^"'\s]*/api/[^"'\s]*billing[^"'\s]*)["']`),
	regexp.MustCompile(`(?i)["']([^"'\s]*/api/[^"'\s]*transaction[^"'\s]*)["']`),
	regexp.MustCompile(`(?i)["']([^"'\s]*/api/[^"'\s]*history[^"'\s]*)["']`),
	regexp.MustCompile(`(?i)fetch\s*\(\s*["']([^"']+)["']`),
	regexp.MustCompile(`(?i)axios\.get\s*\(\s*["']([^"']+)["']`),
}

// APIStrategy re-requests billing endpoints found in the page with the
// browser's cookies and parses JSON responses.
type APIStrategy struct {
	cfg       config.Config
	extractor *extractor.Extractor
	userAgent string
}

// NewAPIStrategy creates an APIStrategy.
func NewAPIStrategy(cfg config.Config, ext *extractor.Extractor) *APIStrategy {
	return &APIStrategy{cfg: cfg, extractor: ext, userAgent: DefaultUserAgent}
}

func (s *APIStrategy) Name() string { return "api" }

func (s *APIStrategy) Available(page Page) bool {
	return page.Session != nil && s.cfg.MaxAPIEndpoints > 0 && len(s.Endpoints(page.Content, page.URL)) > 0
}

// Extract calls each endpoint in turn and returns the records of the first
// JSON response that yields any.
func (s *APIStrategy) Extract(ctx context.Context, page Page) ([]billing.Record, string, error) {
	cookies, err := page.Session.Cookies(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("reading session cookies: %w", err)
	}

	log := logger.FromContext(ctx)
	for _, endpoint := range s.Endpoints(page.Content, page.URL) {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		body, err := s.fetch(ctx, endpoint, page.URL, cookies)
		if err != nil {
			log.Debug("api endpoint failed", "endpoint", endpoint, "error", err)
			continue
		}
		if !gjson.ValidBytes(body) {
			log.Debug("api endpoint returned non-JSON body", "endpoint", endpoint, "bytes", len(body))
			continue
		}
		records := billing.Dedup(s.extractor.JSON(body), s.extractor.Matcher().Now())
		if len(records) > 0 {
			log.Debug("api endpoint yielded records", "endpoint", endpoint, "records", len(records))
			return records, "", nil
		}
	}
	return nil, "", nil
}

// Endpoints returns the same-origin billing endpoints referenced by
// content, resolved against pageURL, in order of first appearance.
func (s *APIStrategy) Endpoints(content, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	for _, p := range endpointPatterns {
		for _, m := range p.FindAllStringSubmatch(content, -1) {
			raw := strings.TrimSpace(m[1])
			if !containsAny(strings.ToLower(raw), s.cfg.Keywords.URLBonus) {
				continue
			}
			ref, err := url.Parse(raw)
			if err != nil {
				continue
			}
			endpoint := base.ResolveReference(ref).String()
			if !discovery.SameOrigin(endpoint, pageURL) {
				continue
			}
			key := discovery.Canonical(endpoint)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, endpoint)
			if len(out) >= s.cfg.MaxAPIEndpoints {
				return out
			}
		}
	}
	return out
}

// fetch performs one authenticated GET with a JSON accept header.
func (s *APIStrategy) fetch(ctx context.Context, endpoint, referer string, cookies []*http.Cookie) ([]byte, error) {
	c := colly.NewCollector(
		colly.UserAgent(s.userAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.cfg.APIRequestTimeout)

	if len(cookies) > 0 {
		if err := c.SetCookies(endpoint, cookies); err != nil {
			logger.FromContext(ctx).Warn("failed to set cookies", "endpoint", endpoint, "error", err)
		}
	}

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
		r.Headers.Set("Referer", referer)
	})

	var body []byte
	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	if err := c.Visit(endpoint); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	return body, nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
