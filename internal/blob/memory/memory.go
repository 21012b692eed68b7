package memory

import (
	"context"
	"sync"
)

// Store keeps blobs in process memory. It never fails unless a failure is
// injected with FailWith.
type Store struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
	saves int
}

func New() *Store {
	return &Store{blobs: map[string][]byte{}}
}

// NewWithSeed returns a store already holding data under key.
func NewWithSeed(key string, data []byte) *Store {
	s := New()
	s.blobs[key] = append([]byte(nil), data...)
	return s
}

func (s *Store) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, false, s.err
	}
	data, ok := s.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (s *Store) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.blobs[key] = append([]byte(nil), data...)
	s.saves++
	return nil
}

// FailWith makes every following call return err; nil restores the store.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Saves returns how many successful writes happened.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *Store) Ping(context.Context) error { return nil }
