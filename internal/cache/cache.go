// Package cache holds loaded series and their statistics per username.
//
// Each username owns one slot. Loads go through a singleflight group so concurrent
// requests for an unloaded user share a single load; statistics are computed at most once
// per loaded slot.
package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/glucokeeper/internal/glucose"
	"github.com/and161185/glucokeeper/internal/model"
	"github.com/and161185/glucokeeper/internal/stats"
)

// Loader loads a user's series from the backing data.
type Loader interface {
	Load(ctx context.Context, username string) (glucose.Series, error)
}

// StatsStore shares computed statistics between processes.
type StatsStore interface {
	// Get returns the stored stats and whether they were present.
	Get(ctx context.Context, username string) (model.Stats, bool, error)
	Set(ctx context.Context, username string, st model.Stats) error
	Delete(ctx context.Context, username string) error
}

type slot struct {
	series glucose.Series
	gen    uint64

	statsOnce sync.Once
	stats     model.Stats
	statsErr  error
}

// Cache maps usernames to loaded series.
type Cache struct {
	loader Loader
	store  StatsStore
	log    *zap.Logger

	group singleflight.Group

	mu    sync.Mutex
	slots map[string]*slot
	gens  map[string]uint64 // bumped by Invalidate
}

// Option configures a Cache.
type Option func(*Cache)

// WithStatsStore enables a shared stats store.
func WithStatsStore(s StatsStore) Option { return func(c *Cache) { c.store = s } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Cache) { c.log = l } }

// New creates an empty cache.
func New(loader Loader, opts ...Option) *Cache {
	c := &Cache{loader: loader, log: zap.NewNop(), slots: make(map[string]*slot), gens: make(map[string]uint64)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Series returns the user's series, loading it on first access.
func (c *Cache) Series(ctx context.Context, username string) (glucose.Series, error) {
	s, err := c.slot(ctx, username)
	if err != nil {
		return glucose.Series{}, err
	}
	return s.series, nil
}

// Stats returns the statistics of the user's series.
func (c *Cache) Stats(ctx context.Context, username string) (model.Stats, error) {
	s, err := c.slot(ctx, username)
	if err != nil {
		return model.Stats{}, err
	}
	s.statsOnce.Do(func() {
		s.stats, s.statsErr = c.computeStats(ctx, username, s)
	})
	return s.stats, s.statsErr
}

// Invalidate drops the user's slot and shared stats.
func (c *Cache) Invalidate(ctx context.Context, username string) {
	c.mu.Lock()
	delete(c.slots, username)
	c.gens[username]++
	c.mu.Unlock()
	c.group.Forget(username)

	if c.store != nil {
		if err := c.store.Delete(ctx, username); err != nil {
			c.log.Warn("stats store delete failed", zap.String("username", username), zap.Error(err))
		}
	}
}

// Len returns the number of loaded users.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

func (c *Cache) slot(ctx context.Context, username string) (*slot, error) {
	c.mu.Lock()
	s, ok := c.slots[username]
	c.mu.Unlock()
	if ok {
		return s, nil
	}

	v, err, shared := c.group.Do(username, func() (any, error) {
		c.mu.Lock()
		if s, ok := c.slots[username]; ok {
			c.mu.Unlock()
			return s, nil
		}
		gen := c.gens[username]
		c.mu.Unlock()

		series, err := c.loader.Load(ctx, username)
		if err != nil {
			return nil, err
		}
		s := &slot{series: series, gen: gen}
		c.mu.Lock()
		current := c.gens[username] == gen
		if current {
			c.slots[username] = s
		}
		c.mu.Unlock()
		if !current {
			// invalidated while loading: serve this caller, keep nothing
			c.log.Debug("stale series dropped", zap.String("username", username))
			return s, nil
		}
		c.log.Debug("series loaded", zap.String("username", username), zap.Int("samples", series.Len()))
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.Debug("series load shared", zap.String("username", username))
	}
	return v.(*slot), nil
}

func (c *Cache) current(username string, s *slot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[username] == s.gen
}

func (c *Cache) computeStats(ctx context.Context, username string, s *slot) (model.Stats, error) {
	series := s.series
	if c.store != nil {
		st, ok, err := c.store.Get(ctx, username)
		switch {
		case err != nil:
			c.log.Warn("stats store get failed", zap.String("username", username), zap.Error(err))
		case ok:
			return st, nil
		}
	}

	st, err := stats.Compute(series)
	if err != nil {
		return model.Stats{}, err
	}
	if c.store != nil && c.current(username, s) {
		if err := c.store.Set(ctx, username, st); err != nil {
			c.log.Warn("stats store set failed", zap.String("username", username), zap.Error(err))
		}
	}
	return st, nil
}
