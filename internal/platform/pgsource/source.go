// Package pgsource loads scheduling resources stored as raw FHIR JSON in
// Postgres.
package pgsource

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/slotcal/internal/domain/availability"
	"github.com/ehr/slotcal/internal/platform/fhir"
)

// Schema creates the resource table when it does not exist. seq keeps the
// publisher's record order.
const Schema = `CREATE TABLE IF NOT EXISTS fhir_resource (
	seq           BIGSERIAL PRIMARY KEY,
	resource_type TEXT NOT NULL,
	resource_id   TEXT NOT NULL,
	resource      JSONB NOT NULL
)`

const selectResources = `SELECT resource_type, resource FROM fhir_resource
WHERE resource_type = ANY($1)
ORDER BY seq`

// DB is the subset of pgxpool.Pool the source uses.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Source implements availability.Source over the fhir_resource table.
type Source struct {
	db     DB
	logger zerolog.Logger
}

var _ availability.Source = (*Source)(nil)

func New(db DB, logger zerolog.Logger) *Source {
	return &Source{db: db, logger: logger}
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns > 0 {
		cfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the resource table if needed.
func (s *Source) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Insert stores one resource. Used to seed the table from NDJSON.
func (s *Source) Insert(ctx context.Context, resourceType, id string, resource json.RawMessage) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO fhir_resource (resource_type, resource_id, resource) VALUES ($1, $2, $3)`,
		resourceType, id, resource)
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", resourceType, id, err)
	}
	return nil
}

// Load reads every PractitionerRole, Schedule and Slot row in insertion
// order. Rows whose JSON cannot be decoded are logged and skipped.
func (s *Source) Load(ctx context.Context) (*availability.Dataset, error) {
	rows, err := s.db.Query(ctx, selectResources, []string{"PractitionerRole", "Schedule", "Slot"})
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	var (
		practitioners []fhir.PractitionerRole
		schedules     []fhir.Schedule
		slots         []fhir.Slot
		row           int
	)
	for rows.Next() {
		row++
		var (
			resourceType string
			raw          []byte
		)
		if err := rows.Scan(&resourceType, &raw); err != nil {
			return nil, fmt.Errorf("scan resource row: %w", err)
		}

		var decodeErr error
		switch resourceType {
		case "PractitionerRole":
			var p fhir.PractitionerRole
			if decodeErr = json.Unmarshal(raw, &p); decodeErr == nil {
				practitioners = append(practitioners, p)
			}
		case "Schedule":
			var sc fhir.Schedule
			if decodeErr = json.Unmarshal(raw, &sc); decodeErr == nil {
				schedules = append(schedules, sc)
			}
		case "Slot":
			var sl fhir.Slot
			if decodeErr = json.Unmarshal(raw, &sl); decodeErr == nil {
				slots = append(slots, sl)
			}
		}
		if decodeErr != nil {
			s.logger.Warn().Err(decodeErr).Str("resource_type", resourceType).Int("row", row).Msg("skipping undecodable resource row")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resource rows: %w", err)
	}
	return availability.NewDataset(practitioners, schedules, slots), nil
}
