// Package snapshot keeps the last successfully loaded dataset in Redis so a
// restart can still serve availability while the upstream source is down.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ehr/slotcal/internal/domain/availability"
	"github.com/ehr/slotcal/internal/platform/fhir"
)

const DefaultKey = "slotcal:dataset"

// Store is the subset of a go-redis client the snapshot needs.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type record struct {
	ID            uuid.UUID               `json:"id"`
	LoadedAt      time.Time               `json:"loadedAt"`
	Practitioners []fhir.PractitionerRole `json:"practitionerRoles"`
	Schedules     []fhir.Schedule         `json:"schedules"`
	Slots         []fhir.Slot             `json:"slots"`
}

// Source wraps an upstream availability.Source. Every successful upstream
// load is written to the store; a failed one is answered from the store when
// a snapshot exists.
type Source struct {
	upstream availability.Source
	store    Store
	key      string
	ttl      time.Duration
	logger   zerolog.Logger
}

var _ availability.Source = (*Source)(nil)

// New wraps upstream. A zero ttl keeps the snapshot until overwritten.
func New(upstream availability.Source, store Store, key string, ttl time.Duration, logger zerolog.Logger) *Source {
	if key == "" {
		key = DefaultKey
	}
	return &Source{upstream: upstream, store: store, key: key, ttl: ttl, logger: logger}
}

func (s *Source) Load(ctx context.Context) (*availability.Dataset, error) {
	ds, err := s.upstream.Load(ctx)
	if err == nil && ds == nil {
		err = ErrEmptyLoad
	}
	if err == nil {
		if saveErr := s.Save(ctx, ds); saveErr != nil {
			s.logger.Warn().Err(saveErr).Str("key", s.key).Msg("failed to store dataset snapshot")
		}
		return ds, nil
	}

	snap, snapErr := s.Restore(ctx)
	if snapErr != nil {
		return nil, errors.Join(err, snapErr)
	}
	s.logger.Warn().Err(err).
		Str("dataset_id", snap.ID.String()).
		Time("loaded_at", snap.LoadedAt).
		Msg("upstream load failed, serving dataset snapshot")
	return snap, nil
}

// Save writes ds under the snapshot key.
func (s *Source) Save(ctx context.Context, ds *availability.Dataset) error {
	if ds == nil {
		return ErrEmptyLoad
	}
	raw, err := json.Marshal(record{
		ID:            ds.ID,
		LoadedAt:      ds.LoadedAt,
		Practitioners: ds.Practitioners,
		Schedules:     ds.Schedules,
		Slots:         ds.Slots,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.store.Set(ctx, s.key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// ErrEmptyLoad marks an upstream that returned neither data nor an error.
var ErrEmptyLoad = errors.New("upstream returned no dataset")

// ErrNoSnapshot is returned by Restore when nothing has been stored.
var ErrNoSnapshot = errors.New("no dataset snapshot stored")

// Restore reads the stored dataset. It keeps the original id and load time.
func (s *Source) Restore(ctx context.Context) (*availability.Dataset, error) {
	raw, err := s.store.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &availability.Dataset{
		ID:            rec.ID,
		LoadedAt:      rec.LoadedAt,
		Practitioners: rec.Practitioners,
		Schedules:     rec.Schedules,
		Slots:         rec.Slots,
	}, nil
}
