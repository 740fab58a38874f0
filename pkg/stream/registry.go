package stream

import (
	"fmt"
	"sort"
	"sync"
)

// Sources maps provider names to reply sources.
type Sources struct {
	mu      sync.RWMutex
	sources map[string]Source
}

func NewSources() *Sources {
	return &Sources{sources: make(map[string]Source)}
}

func (s *Sources) Register(name string, src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[name] = src
}

func (s *Sources) Get(name string) (Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown provider %q (available: %v)", name, s.namesLocked())
	}
	return src, nil
}

func (s *Sources) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.namesLocked()
}

func (s *Sources) namesLocked() []string {
	names := make([]string, 0, len(s.sources))
	for n := range s.sources {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
