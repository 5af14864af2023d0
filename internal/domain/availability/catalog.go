package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotLoaded is returned before the first successful load.
var ErrNotLoaded = errors.New("availability dataset not loaded")

// Source loads the three resource collections. Implementations live under
// internal/platform.
type Source interface {
	Load(ctx context.Context) (*Dataset, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*Dataset, error)

func (f SourceFunc) Load(ctx context.Context) (*Dataset, error) { return f(ctx) }

// Catalog owns the current dataset together with its month cache. A reload
// installs a new dataset and a new, empty cache in one step.
type Catalog struct {
	source   Source
	builder  *Builder
	observer Observer
	logger   zerolog.Logger

	reloadMu sync.Mutex
	current  atomic.Pointer[MonthCache]
}

// NewCatalog returns a Catalog that has not loaded anything yet.
func NewCatalog(src Source, b *Builder, obs Observer, logger zerolog.Logger) *Catalog {
	return &Catalog{source: src, builder: b, observer: obs, logger: logger}
}

// Reload fetches a fresh dataset and replaces the current one. On error the
// previous dataset stays in place.
func (c *Catalog) Reload(ctx context.Context) (*Dataset, error) {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	started := time.Now()
	ds, err := c.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if ds == nil {
		return nil, fmt.Errorf("load dataset: source returned no data")
	}

	c.current.Store(NewMonthCache(ds, c.builder, c.logger, WithObserver(c.observer)))
	c.logger.Info().
		Str("dataset_id", ds.ID.String()).
		Int("practitioner_roles", len(ds.Practitioners)).
		Int("schedules", len(ds.Schedules)).
		Int("slots", len(ds.Slots)).
		Dur("elapsed", time.Since(started)).
		Msg("availability dataset loaded")
	return ds, nil
}

// Cache returns the month cache of the current dataset.
func (c *Catalog) Cache() (*MonthCache, error) {
	mc := c.current.Load()
	if mc == nil {
		return nil, ErrNotLoaded
	}
	return mc, nil
}

// Month is a shortcut for Cache().Get.
func (c *Catalog) Month(year int, month time.Month) (*MonthIndex, *Dataset, error) {
	mc, err := c.Cache()
	if err != nil {
		return nil, nil, err
	}
	return mc.Get(year, month), mc.Dataset(), nil
}

// Day returns the start-time groups of one date, using the index of the
// date's month.
func (c *Catalog) Day(date time.Time) ([]StartGroup, error) {
	idx, _, err := c.Month(date.Year(), date.Month())
	if err != nil {
		return nil, err
	}
	return GroupByStart(idx.Day(date.Format(DateKeyLayout))), nil
}
