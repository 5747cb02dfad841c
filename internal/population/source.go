// Package population loads the reference population used to normalize a
// subject's ratios.
package population

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MikeSquared-Agency/RiskScore/internal/scoring"
)

// Source loads a reference population. Implementations must return
// scoring.ErrDataUnavailable when the underlying storage cannot be read.
type Source interface {
	Load(ctx context.Context) (scoring.Population, error)
	Describe() string
}

// RecordLister is the slice of the store a StoreSource needs.
type RecordLister interface {
	ListPopulation(ctx context.Context) ([]scoring.Record, error)
}

// StoreSource loads the population from the database.
type StoreSource struct {
	store RecordLister
}

func NewStoreSource(s RecordLister) *StoreSource {
	return &StoreSource{store: s}
}

func (s *StoreSource) Load(ctx context.Context) (scoring.Population, error) {
	records, err := s.store.ListPopulation(ctx)
	if err != nil {
		return scoring.Population{}, fmt.Errorf("%w: reference_population table: %w", scoring.ErrDataUnavailable, err)
	}
	if len(records) == 0 {
		return scoring.Population{}, fmt.Errorf("%w: reference_population table is empty", scoring.ErrDataUnavailable)
	}
	return scoring.Population{Records: records, Source: "reference_population table"}, nil
}

func (s *StoreSource) Describe() string { return "postgres:reference_population" }

// Cache memoizes a source's population. The cached records are shared
// between concurrent callers and must only ever be read.
type Cache struct {
	src    Source
	logger *slog.Logger

	mu  sync.RWMutex
	pop *scoring.Population
}

// NewCache wraps src.
func NewCache(src Source, logger *slog.Logger) *Cache {
	return &Cache{src: src, logger: logger}
}

// Load returns the cached population, loading it on first use. Failed loads
// are not cached.
func (c *Cache) Load(ctx context.Context) (scoring.Population, error) {
	c.mu.RLock()
	if c.pop != nil {
		pop := *c.pop
		c.mu.RUnlock()
		return pop, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pop != nil {
		return *c.pop, nil
	}
	pop, err := c.src.Load(ctx)
	if err != nil {
		return scoring.Population{}, err
	}
	c.pop = &pop
	c.logger.Info("reference population loaded", "source", c.src.Describe(), "records", pop.Len())
	return pop, nil
}

// Invalidate drops the cached population so the next Load re-reads it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.pop = nil
	c.mu.Unlock()
	c.logger.Info("reference population cache invalidated", "source", c.src.Describe())
}

func (c *Cache) Describe() string { return "cached " + c.src.Describe() }
