package sessionstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"order-agent/internal/models"
)

// Memory is a process-local store for development and tests.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemory creates a memory store. A positive ttl discards idle sessions on read.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		sessions: make(map[string]models.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *Memory) GetOrCreate(ctx context.Context, phone string) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	m.mu.RLock()
	s, ok := m.sessions[phone]
	m.mu.RUnlock()

	if !ok || expired(&s, m.ttl, m.now()) {
		return models.NewSession(phone), nil
	}
	return copySession(s), nil
}

func (m *Memory) Save(ctx context.Context, s *models.Session) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := s.Validate(); err != nil {
		return err
	}

	stored := *copySession(*s)
	stored.UpdatedAt = m.now()
	s.UpdatedAt = stored.UpdatedAt

	m.mu.Lock()
	m.sessions[s.Phone] = stored
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(ctx context.Context, phone string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	m.mu.Lock()
	delete(m.sessions, phone)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func copySession(s models.Session) *models.Session {
	if s.SelectedItem != nil {
		item := *s.SelectedItem
		s.SelectedItem = &item
	}
	return &s
}
