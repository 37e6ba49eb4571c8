// Package login fills and submits utility portal login forms.
package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/logger"
	"github.com/jmylchreest/billscout/internal/oracle"
	"github.com/jmylchreest/billscout/internal/scorer"
)

var (
	// ErrFormNotFound is returned when no login form can be located.
	ErrFormNotFound = errors.New("login form not found")
	// ErrLoginFailed is returned when the portal rejects the credentials.
	ErrLoginFailed = errors.New("login failed")
	// ErrRegistrationRequired is returned when login lands on an account
	// setup or registration step.
	ErrRegistrationRequired = errors.New("account registration required")
)

// Page is the browser surface the login routine drives.
type Page interface {
	CurrentURL(ctx context.Context) (string, error)
	PageContent(ctx context.Context) (string, error)
	Type(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	Submit(ctx context.Context, selector string) error
}

// Credentials are the portal username and password.
type Credentials struct {
	Username string
	Password string
}

// Result describes a successful login.
type Result struct {
	Form Form
	URL  string
}

var errorPhrases = []string{
	"invalid password", "invalid username", "incorrect password", "incorrect username",
	"login failed", "sign in failed", "unable to sign in", "not recognized",
	"invalid credentials", "please try again", "account is locked",
}

var successPhrases = []string{
	"sign out", "log out", "logout", "my account", "welcome", "dashboard", "account summary",
}

// Filler logs in to portals.
type Filler struct {
	oracle oracle.Asker
	walls  *scorer.Scorer
	settle time.Duration
}

// Option configures a Filler.
type Option func(*Filler)

// WithSettle sets how long to wait after submitting before checking the
// outcome.
func WithSettle(d time.Duration) Option {
	return func(f *Filler) { f.settle = d }
}

// New creates a Filler. A nil asker uses heuristic form detection only.
func New(cfg config.Config, asker oracle.Asker, opts ...Option) *Filler {
	f := &Filler{
		oracle: asker,
		walls:  scorer.New(cfg, nil),
		settle: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Login fills the form on the current page and submits it.
func (f *Filler) Login(ctx context.Context, p Page, creds Credentials) (Result, error) {
	log := logFrom(ctx)

	before, err := p.CurrentURL(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read login URL: %w", err)
	}
	markup, err := p.PageContent(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read login page: %w", err)
	}

	form, err := DetectForm(ctx, f.oracle, before, markup)
	if err != nil {
		return Result{}, err
	}
	log.Debug("login form detected",
		"url", before,
		"source", form.Source,
		"username", form.Username,
		"password", form.Password,
		"submit", form.Submit,
	)

	if err := p.Type(ctx, form.Username, creds.Username); err != nil {
		return Result{}, fmt.Errorf("failed to enter username: %w", err)
	}
	if err := p.Type(ctx, form.Password, creds.Password); err != nil {
		return Result{}, fmt.Errorf("failed to enter password: %w", err)
	}
	if form.Submit != "" {
		err = p.Click(ctx, form.Submit)
	} else {
		err = p.Submit(ctx, form.Password)
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to submit login form: %w", err)
	}

	if err := sleep(ctx, f.settle); err != nil {
		return Result{}, err
	}

	after, err := p.CurrentURL(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read post-login URL: %w", err)
	}
	content, err := p.PageContent(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read post-login page: %w", err)
	}

	if err := f.check(before, after, content, form); err != nil {
		log.Warn("login not confirmed", "url", after, "error", err)
		return Result{Form: form, URL: after}, err
	}
	log.Info("logged in", "url", after, "form_source", form.Source)
	return Result{Form: form, URL: after}, nil
}

// check decides the outcome of a submitted login from the resulting page.
func (f *Filler) check(before, after, content string, form Form) error {
	lower := strings.ToLower(content)
	for _, phrase := range errorPhrases {
		if strings.Contains(lower, phrase) {
			return fmt.Errorf("%w: page reports %q", ErrLoginFailed, phrase)
		}
	}
	if f.walls.RegistrationWall(after, content) {
		return ErrRegistrationRequired
	}

	if !hasPasswordField(content) {
		return nil
	}
	if after != before {
		for _, phrase := range successPhrases {
			if strings.Contains(lower, phrase) {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: login form still present", ErrLoginFailed)
}

func hasPasswordField(content string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return false
	}
	return doc.Find(`input[type="password"]`).Length() > 0
}

func logFrom(ctx context.Context) *slog.Logger {
	return logger.FromContext(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
