package internal

import "sync"

// SafeSet is a mutex guarded set of strings.
type SafeSet struct {
	mu sync.Mutex
	v  map[string]struct{}
}

func NewSafeSet() *SafeSet {
	return &SafeSet{v: make(map[string]struct{})}
}

// Contains reports whether key was already present and marks it present.
func (s *SafeSet) Contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.v[key]; ok {
		return true
	}
	s.v[key] = struct{}{}
	return false
}

func (s *SafeSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.v)
}
