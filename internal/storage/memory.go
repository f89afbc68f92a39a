package storage

import (
	"context"
	"sync"
	"time"
)

// memStore keeps everything in process memory. Used by tests and by the
// "memory" driver for ephemeral runs.
type memStore struct {
	mu      sync.Mutex
	states  map[int64][]byte
	sent    []string
	follows map[string]struct{}

	token     string
	expiresAt time.Time
	hasToken  bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memStore{
		states:  map[int64][]byte{},
		follows: map[string]struct{}{},
	}
}

func (s *memStore) PutState(ctx context.Context, chatID int64, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(blob))
	copy(cp, blob)
	s.states[chatID] = cp
	return nil
}

func (s *memStore) DeleteState(ctx context.Context, chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, chatID)
	return nil
}

func (s *memStore) LoadStates(ctx context.Context) (map[int64][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64][]byte, len(s.states))
	for k, v := range s.states {
		cp := make([]byte, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out, nil
}

func (s *memStore) AppendSent(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, url)
	return nil
}

func (s *memStore) ReplaceSent(ctx context.Context, urls []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append([]string(nil), urls...)
	return nil
}

func (s *memStore) LoadSent(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...), nil
}

func (s *memStore) AddFollow(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follows[name] = struct{}{}
	return nil
}

func (s *memStore) RemoveFollow(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.follows, name)
	return nil
}

func (s *memStore) LoadFollows(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.follows))
	for n := range s.follows {
		out = append(out, n)
	}
	return out, nil
}

func (s *memStore) PutCredential(ctx context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.expiresAt = expiresAt
	s.hasToken = true
	return nil
}

func (s *memStore) GetCredential(ctx context.Context) (string, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.expiresAt, s.hasToken, nil
}

func (s *memStore) Close() error { return nil }
