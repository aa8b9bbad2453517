package credential

import (
	"context"
	"sync"
)

// MemoryStore keeps the credential in process memory. Suitable for
// tests and for sessions that should not outlive the process.
type MemoryStore struct {
	mu      sync.RWMutex
	token   string
	profile *Profile
	prefs   *Preferences
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Token(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, nil
}

func (s *MemoryStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryStore) Profile(_ context.Context) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil, nil
	}
	copied := *s.profile
	return &copied, nil
}

func (s *MemoryStore) SetProfile(_ context.Context, profile *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if profile == nil {
		s.profile = nil
		return nil
	}
	copied := *profile
	s.profile = &copied
	return nil
}

func (s *MemoryStore) Preferences(_ context.Context) (Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.prefs == nil {
		return Preferences{Enabled: true, Email: true}, nil
	}
	return *s.prefs, nil
}

func (s *MemoryStore) SetPreferences(_ context.Context, prefs Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs = &prefs
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.profile = nil
	s.prefs = nil
	return nil
}
