package storage

import (
	"context"
	"strings"
	"sync"
	"time"
)

type memoryStore struct {
	mu     sync.Mutex
	rows   map[string]Association
	closed bool
}

// NewMemory returns an empty process-local store.
func NewMemory() Store {
	return &memoryStore{rows: map[string]Association{}}
}

func (s *memoryStore) Get(_ context.Context, runID string) (Association, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Association{}, false, ErrClosed
	}
	a, ok := s.rows[strings.TrimSpace(runID)]
	return a, ok, nil
}

func (s *memoryStore) Put(_ context.Context, a Association) (Association, error) {
	a, err := normalize(a)
	if err != nil {
		return Association{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Association{}, ErrClosed
	}
	if cur, ok := s.rows[a.RunID]; ok {
		return cur, nil
	}
	s.rows[a.RunID] = a
	return a, nil
}

func (s *memoryStore) Delete(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	delete(s.rows, strings.TrimSpace(runID))
	return nil
}

func (s *memoryStore) Expire(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	n := 0
	for k, a := range s.rows {
		if a.CreatedAt.Before(before) {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.rows = nil
	s.mu.Unlock()
	return nil
}
