package discovery

import (
	"fmt"
	"sync"
	"testing"
)

// --- Canonical Tests ---

func TestCanonical(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"https://example.com/page#section", "https://example.com/page"},
		{"https://example.com/page#", "https://example.com/page"},
		{"https://example.com/page/", "https://example.com/page"},
		{"https://example.com", "https://example.com/"},
		{"HTTPS://Example.COM:443/Billing", "https://example.com/Billing"},
		{"http://example.com:80/a", "http://example.com/a"},
		{"http://example.com:8080/a", "http://example.com:8080/a"},
		{"https://example.com/list?b=2&a=1", "https://example.com/list?a=1&b=2"},
		{"https://example.com/#/billing-history/", "https://example.com/#/billing-history"},
		{"https://example.com/ui/#!/transactions", "https://example.com/ui/#!/transactions"},
		{"/relative/path", ""},
		{"://invalid", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Canonical(tt.input); got != tt.expected {
				t.Errorf("Canonical(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		url1     string
		url2     string
		expected bool
	}{
		{"https://example.com/page1", "https://example.com/page2", true},
		{"http://example.com/", "https://example.com/", true},
		{"https://www.example.com/", "https://example.com/#/billing", true},
		{"https://example.com/", "https://other.com/", false},
		{"https://example.com/", "https://sub.example.com/", false},
		{"://invalid", "https://example.com/", false},
		{"/relative", "/relative", false},
	}

	for _, tt := range tests {
		t.Run(tt.url1+" vs "+tt.url2, func(t *testing.T) {
			if got := SameOrigin(tt.url1, tt.url2); got != tt.expected {
				t.Errorf("SameOrigin(%q, %q) = %v, want %v", tt.url1, tt.url2, got, tt.expected)
			}
		})
	}
}

// --- VisitedSet Tests ---

func TestVisitedSet_AddAndContains(t *testing.T) {
	v := NewVisitedSet("https://example.com/start")

	if !v.Contains("https://example.com/start/") {
		t.Error("seeded URL should be visited")
	}
	if !v.Add("https://example.com/#/billing") {
		t.Error("Add() should return true for a new URL")
	}
	if v.Add("https://example.com/#/billing/") {
		t.Error("Add() should return false for a visited hash route")
	}
	if v.Add("not a url") {
		t.Error("Add() should return false for a relative URL")
	}
	if v.Len() != 2 {
		t.Errorf("expected 2 visited URLs, got %d", v.Len())
	}
}

func TestVisitedSet_HashRoutesAreDistinct(t *testing.T) {
	v := NewVisitedSet("https://example.com/#/dashboard")
	if v.Contains("https://example.com/#/billing") {
		t.Error("different hash routes should not collide")
	}
	if !v.Contains("https://example.com/#/dashboard") {
		t.Error("expected dashboard route visited")
	}
}

func TestVisitedSet_MarkFailed(t *testing.T) {
	v := NewVisitedSet()
	v.MarkFailed("https://example.com/broken")

	if !v.Contains("https://example.com/broken") {
		t.Error("failed URL should count as visited")
	}
	if !v.Failed("https://example.com/broken/") {
		t.Error("expected URL marked failed")
	}
	if v.Failed("https://example.com/other") {
		t.Error("unvisited URL should not be failed")
	}
}

func TestVisitedSet_Nil(t *testing.T) {
	var v *VisitedSet
	if v.Contains("https://example.com/") {
		t.Error("nil set should contain nothing")
	}
}

// --- Frontier Tests ---

func TestFrontier_PopsBestFirst(t *testing.T) {
	f := NewFrontier(NewVisitedSet())
	f.Add(
		CandidateLink{Target: "https://example.com/a", Score: 40},
		CandidateLink{Target: "https://example.com/b", Score: 90},
		CandidateLink{Target: "https://example.com/c", Score: 60},
	)

	for _, want := range []string{"https://example.com/b", "https://example.com/c", "https://example.com/a"} {
		got, ok := f.Pop()
		if !ok {
			t.Fatal("Pop() should return true")
		}
		if got.Target != want {
			t.Errorf("expected %s, got %s", want, got.Target)
		}
	}
	if _, ok := f.Pop(); ok {
		t.Error("Pop() should return false for empty frontier")
	}
}

func TestFrontier_RaisesExistingScore(t *testing.T) {
	f := NewFrontier(NewVisitedSet())
	f.Add(CandidateLink{Target: "https://example.com/a", Score: 40})
	f.Add(CandidateLink{Target: "https://example.com/b", Score: 50})

	if n := f.Add(CandidateLink{Target: "https://example.com/a/", Score: 30}); n != 0 {
		t.Errorf("lower score should not change the frontier, got %d", n)
	}
	if n := f.Add(CandidateLink{Target: "https://example.com/a", Score: 80}); n != 1 {
		t.Errorf("higher score should raise the link, got %d", n)
	}
	if f.Len() != 2 {
		t.Errorf("expected 2 queued links, got %d", f.Len())
	}
	if got, _ := f.Pop(); got.Score != 80 {
		t.Errorf("expected raised link first, got %s at %d", got.Target, got.Score)
	}
}

func TestFrontier_SkipsVisited(t *testing.T) {
	visited := NewVisitedSet("https://example.com/done")
	f := NewFrontier(visited)
	f.Add(
		CandidateLink{Target: "https://example.com/done", Score: 99},
		CandidateLink{Target: "https://example.com/later", Score: 10},
		CandidateLink{Target: "https://example.com/next", Score: 50},
	)
	if f.Len() != 2 {
		t.Fatalf("expected visited link rejected, got %d queued", f.Len())
	}

	visited.Add("https://example.com/next")
	got, ok := f.Pop()
	if !ok || got.Target != "https://example.com/later" {
		t.Errorf("expected links visited after queueing to be skipped, got %s", got.Target)
	}
}

func TestFrontier_ConcurrentAccess(t *testing.T) {
	visited := NewVisitedSet()
	f := NewFrontier(visited)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			f.Add(CandidateLink{Target: fmt.Sprintf("https://example.com/page%d", n%10), Score: n})
		}(i)
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if l, ok := f.Pop(); ok {
				visited.Add(l.Target)
			}
			visited.Contains(fmt.Sprintf("https://example.com/check%d", n))
		}(i)
	}

	wg.Wait()
}
