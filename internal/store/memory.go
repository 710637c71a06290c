package store

import (
	"context"
	"sync"
	"time"

	"github.com/ashureev/advisor/internal/domain"
)

// MemoryStore keeps sessions in process memory. Callers always receive
// copies.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

// NewMemory returns an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session)}
}

// GetOrCreate implements Repository.
func (m *MemoryStore) GetOrCreate(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s.Clone(), nil
	}
	s := domain.NewSession(id)
	stamp(s, time.Now())
	s.Version = 1
	m.sessions[id] = s
	return s.Clone(), nil
}

// Get implements Repository.
func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

// Save implements Repository.
func (m *MemoryStore) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.sessions[s.ID]
	switch {
	case !ok && s.Version != 0:
		return ErrNotFound
	case ok && stored.Version != s.Version:
		return ErrVersionConflict
	case ok && len(s.Messages) < len(stored.Messages):
		return ErrMessageLogShrunk
	}

	stamp(s, time.Now())
	s.Version++
	m.sessions[s.ID] = s.Clone()
	return nil
}

// Delete implements Repository.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Ping implements Repository.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Repository.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*domain.Session)
	return nil
}
