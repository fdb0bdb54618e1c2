// Package cookies persists browser cookies per site between runs.
package cookies

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Cookie is the storage form of a browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"` // unix seconds, 0 for session cookies
	Secure   bool    `json:"secure"`
	HTTPOnly bool    `json:"httpOnly"`
	SameSite string  `json:"sameSite,omitempty"` // Lax, Strict or None
}

var unsafeChars = regexp.MustCompile(`[^a-z0-9._-]`)

// Store keeps one JSON file per site key under Dir.
type Store struct {
	Dir string
	mu  sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Key maps a host to its storage key: lowercase, without a leading "www.".
func Key(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

func (s *Store) path(key string) string {
	name := unsafeChars.ReplaceAllString(Key(key), "_")
	return filepath.Join(s.Dir, name+"_storage.json")
}

// Load returns the saved cookies for key. A missing file is not an error.
func (s *Store) Load(key string) ([]Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state struct {
		Cookies []Cookie `json:"cookies"`
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode cookie file for %s: %w", key, err)
	}
	return state.Cookies, nil
}

// Save replaces the stored cookies for key atomically.
func (s *Store) Save(key string, cookies []Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(struct {
		Cookies []Cookie `json:"cookies"`
	}{Cookies: cookies}, "", "  ")
	if err != nil {
		return err
	}

	dest := s.path(key)
	tmp, err := os.CreateTemp(s.Dir, ".cookies-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

func (s *Store) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// ClearAll removes every stored cookie file and returns how many were
// removed.
func (s *Store) ClearAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(s.Dir, "*_storage.json"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
