// Package sessionstore keeps one conversation session per phone number.
//
// Implementations do not serialize a load-modify-save cycle themselves; callers hold the
// per-phone lock from package lock around GetOrCreate and Save/Clear.
package sessionstore

import (
	"context"
	"errors"
	"time"

	"order-agent/internal/models"
)

// ErrPersistence wraps every storage failure so callers can tell it apart from
// conversation outcomes.
var ErrPersistence = errors.New("session persistence failed")

type Store interface {
	// GetOrCreate returns the stored session, or a fresh initial session when the phone
	// is unknown. A fresh session is not persisted until Save.
	GetOrCreate(ctx context.Context, phone string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	// Clear deletes the session; clearing an unknown phone succeeds.
	Clear(ctx context.Context, phone string) error
}

func expired(s *models.Session, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && !s.UpdatedAt.IsZero() && now.Sub(s.UpdatedAt) > ttl
}
