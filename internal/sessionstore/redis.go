package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-agent/internal/models"
	"order-agent/internal/redisclient"
	"order-agent/internal/util"

	"go.uber.org/zap"
)

const sessionKeyPrefix = "session:"

// JSONCache is the subset of the Redis client the session store needs.
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Redis stores each session as a JSON value under session:<phone>. A positive ttl is
// applied as the key expiry and refreshed on every save.
type Redis struct {
	client JSONCache
	ttl    time.Duration
}

func NewRedis(client JSONCache, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) GetOrCreate(ctx context.Context, phone string) (*models.Session, error) {
	var s models.Session
	ok, err := r.client.GetJSON(ctx, sessionKeyPrefix+phone, &s)
	if errors.Is(err, redisclient.ErrDecode) {
		util.GetLogger().Warn("Discarding unreadable session", util.Phone(phone), zap.Error(err))
		return models.NewSession(phone), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !ok {
		return models.NewSession(phone), nil
	}
	if err := s.Validate(); err != nil {
		util.GetLogger().Warn("Discarding invalid session", util.Phone(phone), zap.Error(err))
		return models.NewSession(phone), nil
	}
	return &s, nil
}

func (r *Redis) Save(ctx context.Context, s *models.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}
	s.UpdatedAt = time.Now()
	if err := r.client.SetJSON(ctx, sessionKeyPrefix+s.Phone, s, r.ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context, phone string) error {
	if err := r.client.Delete(ctx, sessionKeyPrefix+phone); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
