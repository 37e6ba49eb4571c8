package discovery

import (
	"net/url"
	"strings"
	"sync"
)

// Canonical normalises a URL for visited-set comparison: scheme and host
// are lower-cased, default ports and trailing slashes dropped, query
// parameters sorted and plain fragments removed. Hash routes such as
// "#/billing" are kept since single-page portals route on them. It
// returns "" for unparseable or relative URLs.
func Canonical(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return ""
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	port := parsed.Port()
	if (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host += ":" + port
	}
	parsed.Host = host

	if !isHashRoute(parsed.Fragment) {
		parsed.Fragment = ""
		parsed.RawFragment = ""
	} else {
		parsed.Fragment = strings.TrimSuffix(parsed.Fragment, "/")
		parsed.RawFragment = ""
	}

	if parsed.RawQuery != "" {
		parsed.RawQuery = parsed.Query().Encode()
	}

	// Remove trailing slash from path (unless it's just "/")
	if len(parsed.Path) > 1 && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
		parsed.RawPath = ""
	}
	if parsed.Path == "" {
		parsed.Path = "/"
	}

	return parsed.String()
}

func isHashRoute(fragment string) bool {
	return strings.HasPrefix(fragment, "/") || strings.HasPrefix(fragment, "!/")
}

// SameOrigin reports whether two URLs share a host, ignoring a leading
// "www." on either side.
func SameOrigin(url1, url2 string) bool {
	parsed1, err := url.Parse(url1)
	if err != nil {
		return false
	}
	parsed2, err := url.Parse(url2)
	if err != nil {
		return false
	}
	h1 := strings.TrimPrefix(strings.ToLower(parsed1.Hostname()), "www.")
	h2 := strings.TrimPrefix(strings.ToLower(parsed2.Hostname()), "www.")
	return h1 != "" && h1 == h2
}

// VisitedSet records canonical URLs that have been visited. It grows
// monotonically and is owned by a single exploration run.
type VisitedSet struct {
	mu      sync.Mutex
	visited map[string]bool
	failed  map[string]bool
}

// NewVisitedSet creates a VisitedSet seeded with urls.
func NewVisitedSet(urls ...string) *VisitedSet {
	v := &VisitedSet{
		visited: make(map[string]bool),
		failed:  make(map[string]bool),
	}
	for _, u := range urls {
		v.Add(u)
	}
	return v
}

// Add marks rawURL visited and reports whether it was new.
func (v *VisitedSet) Add(rawURL string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.add(rawURL)
}

func (v *VisitedSet) add(rawURL string) bool {
	c := Canonical(rawURL)
	if c == "" || v.visited[c] {
		return false
	}
	v.visited[c] = true
	return true
}

// Contains reports whether rawURL has been visited. A nil set contains
// nothing.
func (v *VisitedSet) Contains(rawURL string) bool {
	if v == nil {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.visited[Canonical(rawURL)]
}

// MarkFailed marks rawURL visited with a navigation failure.
func (v *VisitedSet) MarkFailed(rawURL string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.add(rawURL)
	v.failed[Canonical(rawURL)] = true
}

// Failed reports whether navigating to rawURL failed.
func (v *VisitedSet) Failed(rawURL string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.failed[Canonical(rawURL)]
}

// Len returns the number of visited URLs.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.visited)
}
