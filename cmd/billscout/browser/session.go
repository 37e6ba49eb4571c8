package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/jmylchreest/billscout/internal/explorer"
	"github.com/jmylchreest/billscout/internal/logger"
)

// ErrNavigationTimeout is returned when a page does not become ready in
// time.
var ErrNavigationTimeout = errors.New("navigation timed out")

// Session is one Chrome tab. It implements the engine's browser and the
// login page interfaces.
type Session struct {
	cfg         Config
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// Open starts a browser and returns a session on a blank tab.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	opts, err := allocatorOptions(cfg)
	if err != nil {
		return nil, err
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	tab, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	var startup []chromedp.Action
	if cfg.Stealth {
		startup = append(startup, injectStealthScript())
	}
	if err := chromedp.Run(tab, startup...); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Debug("browser session opened", "headless", cfg.Headless, "stealth", cfg.Stealth)
	return &Session{cfg: cfg, tab: tab, cancelTab: cancelTab, cancelAlloc: cancelAlloc}, nil
}

// run executes actions on the tab, bounded by both the caller's context
// and timeout.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// CurrentURL returns the tab's location.
func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.Location(&loc)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return loc, nil
}

// PageContent returns the rendered document markup.
func (s *Session) PageContent(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page content: %w", err)
	}
	return html, nil
}

// Navigate loads target and waits for client-side rendering to settle.
// Challenge pages are reported as explorer.ErrAntiBot.
func (s *Session) Navigate(ctx context.Context, target string) error {
	logger.FromContext(ctx).Debug("navigating", "url", target)

	err := s.run(ctx, s.cfg.NavTimeout,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrNavigationTimeout, target)
		}
		return fmt.Errorf("failed to load %s: %w", target, err)
	}

	s.waitForRender(ctx)

	html, err := s.PageContent(ctx)
	if err != nil {
		return err
	}
	if kind := explorer.DetectChallenge(html); kind != "" {
		return fmt.Errorf("%w: %s at %s", explorer.ErrAntiBot, kind, target)
	}
	return nil
}

// waitForRender polls the visible body text until it reaches MinBodyText
// or the attempts run out. Single-page portals render after load.
func (s *Session) waitForRender(ctx context.Context) {
	log := logger.FromContext(ctx)
	for attempt := 1; attempt <= s.cfg.SPAWaitAttempts; attempt++ {
		var n int
		err := s.run(ctx, s.cfg.NavTimeout,
			chromedp.Evaluate(`document.body ? document.body.innerText.trim().length : 0`, &n),
		)
		if err == nil && n >= s.cfg.MinBodyText {
			return
		}
		log.Debug("waiting for page render", "attempt", attempt, "text_length", n)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.SPAWaitInterval):
		}
	}
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, s.cfg.NavTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// Cookies returns the cookies visible to the current page.
func (s *Session) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, s.cfg.NavTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	return toHTTPCookies(cookies), nil
}

// Type replaces the value of the field matched by selector.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	return s.run(ctx, s.cfg.NavTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
}

// Click clicks the element matched by selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, s.cfg.NavTimeout, chromedp.Click(selector, chromedp.ByQuery))
}

// Submit presses Enter in the field matched by selector.
func (s *Session) Submit(ctx context.Context, selector string) error {
	return s.run(ctx, s.cfg.NavTimeout, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery))
}

// Close shuts the tab and the browser.
func (s *Session) Close() error {
	s.cancelTab()
	s.cancelAlloc()
	return nil
}

func toHTTPCookies(in []*network.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		if c == nil || c.Name == "" {
			continue
		}
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   strings.TrimPrefix(c.Domain, "."),
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if !c.Session && c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0).UTC()
		}
		out = append(out, hc)
	}
	return out
}
