package discovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/billscout/internal/config"
	"github.com/jmylchreest/billscout/internal/oracle"
)

const portalURL = "https://portal.example.com/#/dashboard"

func readTestdata(t *testing.T, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", filename))
	if err != nil {
		t.Fatalf("failed to read testdata %s: %v", filename, err)
	}
	return string(data)
}

// stubAsker answers every oracle task with the same raw reply.
type stubAsker struct {
	reply string
	err   error
	calls int
}

func (s *stubAsker) Ask(_ context.Context, _ oracle.Task, _ oracle.Input) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.reply), nil
}

type expectedLink struct {
	target string
	score  int
	source RankSource
}

func checkLinks(t *testing.T, got []CandidateLink, want []expectedLink) {
	t.Helper()
	if len(got) != len(want) {
		for _, l := range got {
			t.Logf("  %s score=%d origin=%s source=%s", l.Target, l.Score, l.Origin, l.RankSource)
		}
		t.Fatalf("expected %d links, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Target != w.target {
			t.Errorf("link %d: expected target %s, got %s", i, w.target, got[i].Target)
		}
		if got[i].Score != w.score {
			t.Errorf("link %d (%s): expected score %d, got %d", i, w.target, w.score, got[i].Score)
		}
		if got[i].RankSource != w.source {
			t.Errorf("link %d (%s): expected source %s, got %s", i, w.target, w.source, got[i].RankSource)
		}
	}
}

// --- Heuristic Tests ---

func TestHeuristic_PortalPage(t *testing.T) {
	d := New(config.DefaultConfig(), nil)
	got := d.Heuristic(readTestdata(t, "portal.html"), portalURL, NewVisitedSet())

	checkLinks(t, got, []expectedLink{
		{"https://portal.example.com/#/billing-history", 100, RankHeuristic},
		{"https://portal.example.com/#/transactions", 100, RankHeuristic},
		{"https://portal.example.com/#/usage", 70, RankHeuristic},
		{"https://portal.example.com/#/account", 50, RankHeuristic},
		{"https://portal.example.com/ui/#/statements", 50, RankHeuristic},
	})
}

func TestHeuristic_Origins(t *testing.T) {
	d := New(config.DefaultConfig(), nil)
	got := d.Heuristic(readTestdata(t, "portal.html"), portalURL, NewVisitedSet())

	origins := make(map[string]Origin)
	for _, l := range got {
		origins[l.Target] = l.Origin
	}
	tests := map[string]Origin{
		"https://portal.example.com/#/transactions":   OriginSidebar,
		"https://portal.example.com/#/billing-history": OriginMain,
	}
	for target, want := range tests {
		if origins[target] != want {
			t.Errorf("%s: expected origin %s, got %s", target, want, origins[target])
		}
	}
}

func TestHeuristic_SkipsVisitedAndUnsafeTargets(t *testing.T) {
	d := New(config.DefaultConfig(), nil)
	visited := NewVisitedSet("https://portal.example.com/#/transactions/")
	got := d.Heuristic(readTestdata(t, "portal.html"), portalURL, visited)

	for _, l := range got {
		switch l.Target {
		case "https://portal.example.com/#/transactions":
			t.Error("visited hash route should be skipped")
		case "https://portal.example.com/logout":
			t.Error("logout link should be skipped")
		case "https://other.example.net/billing":
			t.Error("cross-origin link should be skipped")
		case "https://portal.example.com/#/dashboard":
			t.Error("current page should be skipped")
		}
		if l.Score < 30 {
			t.Errorf("%s scored %d, below the minimum", l.Target, l.Score)
		}
	}
}

func TestHeuristic_DuplicateTargetsKeepBestScore(t *testing.T) {
	page := `<html><body>
		<div><a href="/billing">Overview</a></div>
		<nav><a href="/billing/">Billing History</a></nav>
	</body></html>`

	d := New(config.DefaultConfig(), nil)
	got := d.Heuristic(page, "https://portal.example.com/home", NewVisitedSet())
	if len(got) != 1 {
		t.Fatalf("expected 1 link, got %d", len(got))
	}
	if got[0].Label != "Billing History" {
		t.Errorf("expected sidebar label to win, got %q", got[0].Label)
	}
	if got[0].Score != 100 {
		t.Errorf("expected score 100, got %d", got[0].Score)
	}
}

func TestScore(t *testing.T) {
	d := New(config.DefaultConfig(), nil)
	tests := []struct {
		name string
		link CandidateLink
		want int
	}{
		{"no keywords", CandidateLink{Target: "https://p.example.com/privacy", Label: "Privacy", Origin: OriginMain}, 0},
		{"low label", CandidateLink{Target: "https://p.example.com/start", Label: "Overview", Origin: OriginMain}, 15},
		{"medium label and url", CandidateLink{Target: "https://p.example.com/usage", Label: "Usage", Origin: OriginMain}, 50},
		{"sidebar boost", CandidateLink{Target: "https://p.example.com/usage", Label: "Usage", Origin: OriginSidebar}, 70},
		{"url bonus only", CandidateLink{Target: "https://p.example.com/history", Label: "More", Origin: OriginFooter}, 40},
		{"capped", CandidateLink{Target: "https://p.example.com/billing-history", Label: "Billing History", Origin: OriginSidebar}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.score(tt.link); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

// --- Oracle Ranking Tests ---

func TestDiscover_OracleSelection(t *testing.T) {
	asker := &stubAsker{reply: `{"ranked_links": [
		{"url": "https://portal.example.com/#/usage", "score": 90},
		{"url": "/#/account", "score": 75},
		{"url": "https://unknown.example.com/x", "score": 99},
		{"url": "https://portal.example.com/#/transactions", "score": 40}
	]}`}
	d := New(config.DefaultConfig(), asker)
	got := d.Discover(context.Background(), readTestdata(t, "portal.html"), portalURL, NewVisitedSet())

	checkLinks(t, got, []expectedLink{
		{"https://portal.example.com/#/usage", 83, RankOracle},
		{"https://portal.example.com/#/account", 66, RankOracle},
		{"https://portal.example.com/#/billing-history", 65, RankHeuristic},
		{"https://portal.example.com/#/transactions", 65, RankHeuristic},
		{"https://portal.example.com/ui/#/statements", 50, RankHeuristic},
	})
	if asker.calls != 1 {
		t.Errorf("expected 1 oracle call, got %d", asker.calls)
	}
}

func TestDiscover_OracleOrderYieldsToHeuristicTier(t *testing.T) {
	asker := &stubAsker{reply: `{"ranked_links": [
		{"url": "https://portal.example.com/#/usage", "score": 90},
		{"url": "https://portal.example.com/#/transactions", "score": 80}
	]}`}
	d := New(config.DefaultConfig(), asker)
	got := d.Discover(context.Background(), readTestdata(t, "portal.html"), portalURL, NewVisitedSet())

	if len(got) < 3 {
		t.Fatalf("expected at least 3 links, got %d", len(got))
	}
	if got[0].Target != "https://portal.example.com/#/transactions" || got[0].Score != 86 {
		t.Errorf("expected transactions first at 86, got %s at %d", got[0].Target, got[0].Score)
	}
	if got[1].Target != "https://portal.example.com/#/usage" || got[1].Score != 83 {
		t.Errorf("expected usage second at 83, got %s at %d", got[1].Target, got[1].Score)
	}
	for _, l := range got[2:] {
		if l.RankSource != RankHeuristic || l.Score >= 83 {
			t.Errorf("%s ranked %d (%s), expected a heuristic link below 83", l.Target, l.Score, l.RankSource)
		}
	}
}

func TestDiscover_OracleFallbackThreshold(t *testing.T) {
	asker := &stubAsker{reply: `{"ranked_links": [
		{"url": "https://portal.example.com/#/transactions", "score": 60},
		{"url": "https://portal.example.com/#/usage", "score": 20}
	]}`}
	d := New(config.DefaultConfig(), asker)
	got := d.Discover(context.Background(), readTestdata(t, "portal.html"), portalURL, NewVisitedSet())

	if len(got) == 0 {
		t.Fatal("expected links")
	}
	if got[0].Target != "https://portal.example.com/#/transactions" || got[0].Score != 73 || got[0].RankSource != RankOracle {
		t.Errorf("expected transactions at 73 from oracle, got %s at %d (%s)", got[0].Target, got[0].Score, got[0].RankSource)
	}
	for _, l := range got[1:] {
		if l.Score >= 73 {
			t.Errorf("%s scored %d, not below the selected link", l.Target, l.Score)
		}
	}
}

func TestDiscover_OracleFailureUsesHeuristicFallback(t *testing.T) {
	tests := []struct {
		name  string
		asker *stubAsker
	}{
		{"error", &stubAsker{err: errors.New("connection refused")}},
		{"nothing above threshold", &stubAsker{reply: `{"ranked_links": [{"url": "https://portal.example.com/#/usage", "score": 10}]}`}},
		{"empty ranking", &stubAsker{reply: `{"ranked_links": []}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New(config.DefaultConfig(), tt.asker)
			got := d.Discover(context.Background(), readTestdata(t, "portal.html"), portalURL, NewVisitedSet())

			checkLinks(t, got, []expectedLink{
				{"https://portal.example.com/#/billing-history", 100, RankHeuristic},
				{"https://portal.example.com/#/transactions", 100, RankHeuristic},
				{"https://portal.example.com/ui/#/statements", 85, RankHeuristic},
				{"https://portal.example.com/#/account", 70, RankHeuristic},
				{"https://portal.example.com/#/usage", 70, RankHeuristic},
			})
		})
	}
}

func TestDiscover_FallbackKeepsTopN(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.HeuristicFallbackTop = 2
	d := New(cfg, &stubAsker{err: errors.New("timeout")})
	got := d.Discover(context.Background(), readTestdata(t, "portal.html"), portalURL, NewVisitedSet())
	if len(got) != 2 {
		t.Errorf("expected 2 links, got %d", len(got))
	}
}

// --- Guess Tests ---

func TestDiscover_GuessesWhenNoRelevantLinks(t *testing.T) {
	asker := &stubAsker{reply: `{"ranked_links": []}`}
	d := New(config.DefaultConfig(), asker)
	visited := NewVisitedSet("https://portal.example.com/#/billing-history")
	got := d.Discover(context.Background(), readTestdata(t, "no_links.html"), "https://portal.example.com/home", visited)

	want := len(config.DefaultKeywords().CommonPaths) - 1
	if len(got) != want {
		t.Fatalf("expected %d guesses, got %d", want, len(got))
	}
	if got[0].Target != "https://portal.example.com/#/transaction-history" {
		t.Errorf("unexpected first guess %s", got[0].Target)
	}
	if got[0].Score != 29 || got[1].Score != 28 {
		t.Errorf("expected descending scores below the minimum, got %d, %d", got[0].Score, got[1].Score)
	}
	for _, l := range got {
		if l.Origin != OriginGuess {
			t.Errorf("expected pattern-guess origin, got %s", l.Origin)
		}
	}
	if asker.calls != 0 {
		t.Errorf("guesses should not consult the oracle, got %d calls", asker.calls)
	}
}

func TestGuesses_InvalidURL(t *testing.T) {
	d := New(config.DefaultConfig(), nil)
	if got := d.Guesses("not a url", NewVisitedSet()); len(got) != 0 {
		t.Errorf("expected no guesses, got %d", len(got))
	}
}

func TestClickTarget(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{"href", `<a href="/billing">x</a>`, "/billing"},
		{"router link", `<a routerlink="/transactions">x</a>`, "/transactions"},
		{"click handler", `<div onclick="location.href='/ui/#/bills'">x</div>`, "/ui/#/bills"},
		{"click handler without path", `<div onclick="toggleMenu()">x</div>`, ""},
		{"ui-router state", `<li ui-sref="account.billingHistory({id: 4})">x</li>`, "#/account/billingHistory"},
		{"data url", `<tr data-url="/statements/2024">x</tr>`, "/statements/2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body><table>" + tt.markup + "</table></body></html>"))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			sel := doc.Find(clickableSelector).First()
			if got := clickTarget(sel); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
