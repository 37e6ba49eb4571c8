// Package oracle asks an external text or vision model for best-effort
// judgements about a page. Every answer is parsed permissively and decoded
// into a typed verdict with a defined default, so callers always have a
// value to fall back on.
package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/logger"
	"github.com/jmylchreest/billscout/pkg/llm"
)

// Task names one oracle question.
type Task string

const (
	TaskSufficiency         Task = "sufficiency_evaluation"
	TaskLinkRanking         Task = "link_ranking"
	TaskExplorationStrategy Task = "exploration_strategy"
	TaskHTMLExtraction      Task = "html_extraction"
	TaskVisionExtraction    Task = "vision_extraction"
	TaskLoginForm           Task = "login_form_detection"
)

var (
	// ErrDisabled is returned when no oracle is configured.
	ErrDisabled = errors.New("oracle not configured")
	// ErrEmptyResponse is returned when the model answers with nothing.
	ErrEmptyResponse = errors.New("oracle returned an empty response")
	// ErrUnparseable is returned when no JSON object can be recovered.
	ErrUnparseable = errors.New("oracle response is not valid JSON")
)

// Input is the task-specific payload of one question.
type Input struct {
	URL string
	// Content is page text or cleaned markup; it is truncated to the
	// configured character budget.
	Content string
	// Context is task-specific structured context, already serialised.
	Context string
	Images  []llm.Image
	// MaxTokens overrides the configured output budget when non-zero.
	MaxTokens int
}

// Asker is the capability every oracle consumer depends on. Ask returns
// the raw JSON object of the answer.
type Asker interface {
	Ask(ctx context.Context, task Task, in Input) ([]byte, error)
}

// Client implements Asker on top of an llm.Provider. A Client is safe for
// concurrent use; its cache and limiter may be shared by concurrent runs.
type Client struct {
	provider   llm.Provider
	cfg        config.Config
	cache      *cache.Cache
	limiter    *rate.Limiter
	observer   llm.Observer
	maxRetries int
	backoff    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithObserver registers an observer notified after every model call.
func WithObserver(o llm.Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithCache shares a response cache between clients.
func WithCache(ch *cache.Cache) Option {
	return func(c *Client) { c.cache = ch }
}

// WithLimiter shares a call limiter between clients.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithMaxRetries sets how often a rate-limited call is retried.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBackoff sets the base delay between rate-limited retries.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// NewLimiter returns a limiter allowing perMinute calls, or nil for no limit.
func NewLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// NewCache returns a response cache with the given TTL, or nil when ttl is zero.
func NewCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		return nil
	}
	return cache.New(ttl, 2*ttl)
}

// New creates a Client. Cache and limiter default to the config's TTL and
// rate.
func New(provider llm.Provider, cfg config.Config, opts ...Option) *Client {
	c := &Client{
		provider:   provider,
		cfg:        cfg,
		cache:      NewCache(cfg.OracleCacheTTL),
		limiter:    NewLimiter(cfg.OracleRatePerMinute),
		maxRetries: 2,
		backoff:    2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask sends one task to the model and returns the recovered JSON object.
func (c *Client) Ask(ctx context.Context, task Task, in Input) ([]byte, error) {
	if c == nil || c.provider == nil {
		return nil, ErrDisabled
	}

	log := logger.FromContext(ctx)
	in.Content = Truncate(in.Content, c.cfg.MaxContentChars)
	system, user := buildPrompt(task, in)
	key := cacheKey(task, system, user, in.Images)

	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			log.Debug("oracle cache hit", "task", task)
			return v.([]byte), nil
		}
	}

	maxTokens := in.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.OracleMaxTokens
	}
	req := llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user, Images: in.Images},
		},
		MaxTokens:   maxTokens,
		Temperature: c.cfg.OracleTemperature,
		JSON:        true,
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}

		resp, err := c.execute(ctx, task, req, attempt)
		if err != nil {
			lastErr = err
			if llm.IsRateLimited(err) && attempt < c.maxRetries {
				log.Debug("oracle rate limited, retrying", "task", task, "attempt", attempt+1)
				continue
			}
			return nil, fmt.Errorf("oracle %s: %w", task, err)
		}

		raw, err := ExtractJSON(resp.Content)
		if err != nil {
			log.Debug("oracle response unparseable", "task", task, "response", truncateForLog(resp.Content))
			return nil, fmt.Errorf("oracle %s: %w", task, err)
		}
		if c.cache != nil {
			c.cache.SetDefault(key, raw)
		}
		return raw, nil
	}
	return nil, fmt.Errorf("oracle %s failed after %d attempts: %w", task, c.maxRetries+1, lastErr)
}

func (c *Client) execute(ctx context.Context, task Task, req llm.Request, attempt int) (*llm.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.OracleTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.provider.Execute(callCtx, req)
	if err == nil && resp != nil && resp.Content == "" {
		err = ErrEmptyResponse
	}
	duration := time.Since(start)

	logger.FromContext(ctx).Debug("oracle call complete",
		"task", task,
		"provider", c.provider.Name(),
		"model", c.provider.Model(),
		"duration", duration,
		"error", err)

	if c.observer != nil {
		images := 0
		inputChars := 0
		for _, m := range req.Messages {
			images += len(m.Images)
			inputChars += len(m.Content)
		}
		c.observer.OnCall(ctx, llm.CallEvent{
			Provider:    c.provider.Name(),
			Model:       c.provider.Model(),
			Task:        string(task),
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
			InputChars:  inputChars,
			Images:      images,
			Response:    resp,
			Error:       err,
			Duration:    duration,
			Attempt:     attempt,
			StartedAt:   start,
		})
	}

	if err != nil {
		return nil, err
	}
	return resp, nil
}

func cacheKey(task Task, system, user string, images []llm.Image) string {
	h := sha256.New()
	h.Write([]byte(task))
	h.Write([]byte{0})
	h.Write([]byte(system))
	h.Write([]byte{0})
	h.Write([]byte(user))
	for _, img := range images {
		h.Write([]byte{0})
		h.Write(img.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncateForLog(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200] + "..."
}
