package availability

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Observer receives cache and build events. Implementations must be safe
// for concurrent use.
type Observer interface {
	CacheHit()
	CacheMiss()
	CacheCollision()
	MonthBuilt(elapsed time.Duration, stats BuildStats)
}

type nopObserver struct{}

func (nopObserver) CacheHit() {}
func (nopObserver) CacheMiss() {}
func (nopObserver) CacheCollision() {}
func (nopObserver) MonthBuilt(time.Duration, BuildStats) {}

// MonthCache memoizes month indexes for one dataset. Entries are never
// evicted; a reloaded dataset needs a new MonthCache.
type MonthCache struct {
	dataset  *Dataset
	builder  *Builder
	observer Observer
	logger   zerolog.Logger

	mu     sync.RWMutex
	months map[string]*MonthIndex
	flight singleflight.Group

	// build is Builder.Build unless a test swaps it.
	build func(year int, month time.Month, ds *Dataset) *MonthIndex
}

// CacheOption configures a MonthCache.
type CacheOption func(*MonthCache)

// WithObserver reports cache and build events to o.
func WithObserver(o Observer) CacheOption {
	return func(c *MonthCache) {
		if o != nil {
			c.observer = o
		}
	}
}

// NewMonthCache returns an empty cache over ds.
func NewMonthCache(ds *Dataset, b *Builder, logger zerolog.Logger, opts ...CacheOption) *MonthCache {
	if b == nil {
		b = NewBuilder(time.UTC, logger)
	}
	c := &MonthCache{
		dataset:  ds,
		builder:  b,
		observer: nopObserver{},
		logger:   logger,
		months:   make(map[string]*MonthIndex),
	}
	c.build = b.Build
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dataset returns the dataset this cache indexes.
func (c *MonthCache) Dataset() *Dataset { return c.dataset }

// Len returns the number of cached months.
func (c *MonthCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.months)
}

// Get returns the index of (year, month), building it on first request.
// Concurrent first requests for the same month share a single build.
func (c *MonthCache) Get(year int, month time.Month) *MonthIndex {
	key := MonthKey(year, month)

	if idx, ok := c.lookup(key, year, month); ok {
		c.observer.CacheHit()
		return idx
	}

	v, _, _ := c.flight.Do(key, func() (interface{}, error) {
		// Another caller may have stored it between lookup and Do.
		if idx, ok := c.lookup(key, year, month); ok {
			return idx, nil
		}
		c.observer.CacheMiss()

		started := time.Now()
		idx := c.build(year, month, c.dataset)
		c.observer.MonthBuilt(time.Since(started), idx.Stats)

		c.mu.Lock()
		c.months[key] = idx
		c.mu.Unlock()

		c.logger.Debug().
			Str("month", key).
			Int("days", len(idx.Days)).
			Int("indexed", idx.Stats.Indexed).
			Msg("month index built")
		return idx, nil
	})
	idx := v.(*MonthIndex)
	if err := checkMonth(key, idx, year, month); err != nil {
		return c.collision(err, year, month)
	}
	return idx
}

// lookup reads a stored index. A stored index that belongs to a different
// month is reported as a collision and answered with an uncached build.
func (c *MonthCache) lookup(key string, year int, month time.Month) (*MonthIndex, bool) {
	c.mu.RLock()
	idx, ok := c.months[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if err := checkMonth(key, idx, year, month); err != nil {
		return c.collision(err, year, month), true
	}
	return idx, true
}

func (c *MonthCache) collision(err error, year int, month time.Month) *MonthIndex {
	c.observer.CacheCollision()
	c.logger.Error().Err(err).Msg("serving uncached month index")
	return c.build(year, month, c.dataset)
}

func checkMonth(key string, idx *MonthIndex, year int, month time.Month) error {
	if idx.Year != year || idx.Month != month {
		return fmt.Errorf("%w: key %s holds %s", ErrCacheKeyCollision, key, MonthKey(idx.Year, idx.Month))
	}
	return nil
}
