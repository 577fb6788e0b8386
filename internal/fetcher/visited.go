package fetcher

import "sync"

// VisitedSet tracks absolute URLs fetched during one orchestrator run.
// It is scoped to a single run and never persisted.
type VisitedSet struct {
	urls map[string]bool
	mu   sync.RWMutex
}

func NewVisitedSet() *VisitedSet {
	return &VisitedSet{
		urls: make(map[string]bool),
	}
}

func (s *VisitedSet) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.urls[url]
}

func (s *VisitedSet) Add(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.urls[url] = true
}

func (s *VisitedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.urls)
}
