package discovery

import (
	"sort"
	"sync"
)

// Frontier holds candidate links waiting to be visited, best score first.
// A target is queued at most once; re-adding it with a higher score
// raises its priority.
type Frontier struct {
	mu      sync.Mutex
	queue   []CandidateLink
	queued  map[string]int
	visited *VisitedSet
}

// NewFrontier creates a Frontier that skips targets already in visited.
func NewFrontier(visited *VisitedSet) *Frontier {
	return &Frontier{
		queued:  make(map[string]int),
		visited: visited,
	}
}

// Add queues links and returns how many were new or raised.
func (f *Frontier) Add(links ...CandidateLink) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	changed := 0
	for _, l := range links {
		key := Canonical(l.Target)
		if key == "" || f.visited.Contains(l.Target) {
			continue
		}
		if i, ok := f.queued[key]; ok {
			if l.Score <= f.queue[i].Score {
				continue
			}
			f.queue[i] = l
		} else {
			f.queue = append(f.queue, l)
		}
		changed++
		f.reorder()
	}
	return changed
}

// Pop removes and returns the highest-scoring unvisited link.
func (f *Frontier) Pop() (CandidateLink, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.queue) > 0 {
		l := f.queue[0]
		f.queue = f.queue[1:]
		f.reorder()
		if !f.visited.Contains(l.Target) {
			return l, true
		}
	}
	return CandidateLink{}, false
}

// Len returns the number of queued links.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// reorder sorts the queue and rebuilds the index. Callers hold mu.
func (f *Frontier) reorder() {
	sort.SliceStable(f.queue, func(i, j int) bool {
		if f.queue[i].Score != f.queue[j].Score {
			return f.queue[i].Score > f.queue[j].Score
		}
		return f.queue[i].Target < f.queue[j].Target
	})
	clear(f.queued)
	for i, l := range f.queue {
		f.queued[Canonical(l.Target)] = i
	}
}
