package registry

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/denzueee/gonsters-backend-assessment/internal/cache"
	"github.com/denzueee/gonsters-backend-assessment/internal/models"
)

// MetadataCache is the fast lookup path. Outages degrade to the store.
type MetadataCache interface {
	Get(ctx context.Context, id string) (*models.Machine, error)
	Set(ctx context.Context, m *models.Machine) error
}

// MachineStore is the authoritative registry.
type MachineStore interface {
	Find(ctx context.Context, id string) (*models.Machine, error)
}

// Resolver looks up machine identity with a cache-aside policy. It never
// mutates the relational store and never caches negative results, so a machine
// registered moments after a miss is discoverable on the next call.
type Resolver struct {
	cache  MetadataCache
	store  MachineStore
	logger *zap.Logger
}

// NewResolver returns resolver.
func NewResolver(cache MetadataCache, store MachineStore, logger *zap.Logger) *Resolver {
	return &Resolver{cache: cache, store: store, logger: logger}
}

// Resolve returns the machine record for id or models.ErrMachineNotFound.
// A store outage is logged so operators can distinguish it from a genuine
// absence, but surfaces to the caller the same way.
func (r *Resolver) Resolve(ctx context.Context, id string) (*models.Machine, error) {
	if m, err := r.cache.Get(ctx, id); err == nil {
		return m, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		r.logger.Warn("machine cache unavailable, falling back to store",
			zap.String("machine_id", id), zap.Error(err))
	}

	m, err := r.store.Find(ctx, id)
	if errors.Is(err, models.ErrMachineNotFound) {
		return nil, models.ErrMachineNotFound
	}
	if err != nil {
		r.logger.Error("machine store lookup failed",
			zap.String("machine_id", id), zap.Error(err))
		return nil, models.ErrMachineNotFound
	}

	// Best effort: a cache-write failure must not fail the resolve.
	if err := r.cache.Set(ctx, m); err != nil {
		r.logger.Warn("machine cache populate failed",
			zap.String("machine_id", id), zap.Error(err))
	}
	return m, nil
}
