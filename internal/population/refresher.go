package population

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Refresher periodically drops and reloads a cached population so edits to
// the underlying file or table are picked up without a restart.
type Refresher struct {
	cache    *Cache
	interval time.Duration
	logger   *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewRefresher(cache *Cache, interval time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		cache:    cache,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (r *Refresher) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.loop(ctx)
}

func (r *Refresher) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// Refresh reloads the population once. A failed reload leaves the cache
// empty so the next caller retries the source.
func (r *Refresher) Refresh(ctx context.Context) {
	r.cache.Invalidate()
	pop, err := r.cache.Load(ctx)
	if err != nil {
		r.logger.Warn("population refresh failed", "source", r.cache.Describe(), "error", err)
		return
	}
	r.logger.Debug("population refreshed", "records", pop.Len())
}
