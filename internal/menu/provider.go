package menu

import (
	"context"
	"fmt"
	"time"

	"order-agent/internal/models"
	"order-agent/internal/util"

	"go.uber.org/zap"
)

// Provider exposes the catalog. Not-found is a normal outcome (false), not an error.
type Provider interface {
	List(ctx context.Context) ([]models.MenuEntry, error)
	FindBySelection(ctx context.Context, token string) (models.MenuEntry, bool, error)
}

// Load snapshots a provider into a Catalog for one conversation step.
func Load(ctx context.Context, p Provider) (Catalog, error) {
	entries, err := p.List(ctx)
	if err != nil {
		return Catalog{}, err
	}
	return NewCatalog(entries, 0), nil
}

// Static serves a fixed catalog.
type Static struct {
	catalog Catalog
}

func NewStatic(entries []models.MenuEntry) *Static {
	return &Static{catalog: NewCatalog(entries, 0)}
}

func (s *Static) List(ctx context.Context) ([]models.MenuEntry, error) {
	return s.catalog.Entries(), nil
}

func (s *Static) FindBySelection(ctx context.Context, token string) (models.MenuEntry, bool, error) {
	e, ok := s.catalog.Find(token)
	return e, ok, nil
}

// Repository is the persistent source of menu entries, ordered for display.
type Repository interface {
	GetMenuItems(ctx context.Context) ([]models.MenuEntry, error)
}

// Cache keeps the last menu read for a short time.
type Cache interface {
	GetMenu(ctx context.Context) ([]models.MenuEntry, bool, error)
	SetMenu(ctx context.Context, entries []models.MenuEntry, ttl time.Duration) error
}

// StoreProvider reads the menu from the database through a cache.
type StoreProvider struct {
	repo   Repository
	cache  Cache
	ttl    time.Duration
	limit  int
	logger *zap.Logger
}

// NewStoreProvider creates a provider; cache may be nil. A positive limit caps the menu size.
func NewStoreProvider(repo Repository, cache Cache, ttl time.Duration, limit int) *StoreProvider {
	return &StoreProvider{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		limit:  limit,
		logger: util.GetLogger(),
	}
}

func (p *StoreProvider) List(ctx context.Context) ([]models.MenuEntry, error) {
	ctx, span := util.StartSpan(ctx, "MenuProvider.List")
	defer span.End()

	if p.cache != nil && p.ttl > 0 {
		entries, ok, err := p.cache.GetMenu(ctx)
		if err != nil {
			p.logger.Warn("Menu cache read failed, falling back to DB", zap.Error(err))
		} else if ok {
			return NewCatalog(entries, p.limit).Entries(), nil
		}
	}

	entries, err := p.repo.GetMenuItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu: %w", err)
	}

	if p.cache != nil && p.ttl > 0 {
		if err := p.cache.SetMenu(ctx, entries, p.ttl); err != nil {
			p.logger.Warn("Menu cache write failed", zap.Error(err))
		}
	}

	return NewCatalog(entries, p.limit).Entries(), nil
}

func (p *StoreProvider) FindBySelection(ctx context.Context, token string) (models.MenuEntry, bool, error) {
	entries, err := p.List(ctx)
	if err != nil {
		return models.MenuEntry{}, false, err
	}
	e, ok := NewCatalog(entries, 0).Find(token)
	return e, ok, nil
}
