package session

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions in process memory. Values are copied on the way in and out.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Get(_ context.Context, channel string) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[channel]
	if !ok {
		return Idle(), false, nil
	}
	return s.Clone(), true, nil
}

func (m *MemoryStore) Set(_ context.Context, channel string, s Session) error {
	m.mu.Lock()
	m.sessions[channel] = s.Clone()
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Reset(_ context.Context, channel string) error {
	m.mu.Lock()
	delete(m.sessions, channel)
	m.mu.Unlock()
	return nil
}

// Len reports how many channels hold a session.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
