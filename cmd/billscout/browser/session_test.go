package browser

import (
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/jmylchreest/billscout/internal/config"
)

func TestToHTTPCookies(t *testing.T) {
	in := []*network.Cookie{
		{Name: "session", Value: "abc123", Domain: ".portal.example.com", Path: "/", Secure: true, HTTPOnly: true, Session: true},
		{Name: "pref", Value: "dark", Domain: "portal.example.com", Path: "/account", Expires: 1735689600},
		{Name: "", Value: "ignored"},
		nil,
	}

	got := toHTTPCookies(in)
	if len(got) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(got))
	}
	if got[0].Domain != "portal.example.com" || !got[0].Secure || !got[0].HttpOnly {
		t.Errorf("unexpected session cookie: %+v", got[0])
	}
	if !got[0].Expires.IsZero() {
		t.Errorf("expected session cookie without expiry, got %s", got[0].Expires)
	}
	want := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !got[1].Expires.Equal(want) {
		t.Errorf("expected expiry %s, got %s", want, got[1].Expires)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig(config.DefaultConfig())
	if cfg.SPAWaitAttempts != 3 {
		t.Errorf("expected 3 render attempts, got %d", cfg.SPAWaitAttempts)
	}
	if cfg.SPAWaitInterval != 1500*time.Millisecond {
		t.Errorf("expected 1.5s render interval, got %s", cfg.SPAWaitInterval)
	}
	if !cfg.Headless {
		t.Error("expected headless by default")
	}
}

func stubLookPath(t *testing.T, found map[string]string) {
	t.Helper()
	orig := lookPath
	lookPath = func(name string) (string, error) {
		if path, ok := found[name]; ok {
			return path, nil
		}
		return "", exec.ErrNotFound
	}
	t.Cleanup(func() { lookPath = orig })
}

func TestResolveChrome(t *testing.T) {
	tests := []struct {
		name       string
		found      map[string]string
		configured string
		want       string
		wantErr    error
	}{
		{"configured path", map[string]string{"/opt/chrome/chrome": "/opt/chrome/chrome", "chromium": "/usr/bin/chromium"}, "/opt/chrome/chrome", "/opt/chrome/chrome", nil},
		{"configured path missing", map[string]string{"chromium": "/usr/bin/chromium"}, "/opt/chrome/chrome", "", ErrChromeNotFound},
		{"first install name wins", map[string]string{"chromium": "/usr/bin/chromium", "chrome": "/usr/local/bin/chrome"}, "", "/usr/bin/chromium", nil},
		{"nothing installed", map[string]string{}, "", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubLookPath(t, tt.found)

			got, err := ResolveChrome(tt.configured)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
