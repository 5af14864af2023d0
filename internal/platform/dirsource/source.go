// Package dirsource loads scheduling resources from NDJSON files on disk,
// one file per resource type.
package dirsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ehr/slotcal/internal/domain/availability"
	"github.com/ehr/slotcal/internal/platform/fhir"
)

// File names read from the data directory.
const (
	PractitionerRoleFile = "PractitionerRole.ndjson"
	ScheduleFile         = "Schedule.ndjson"
	SlotFile             = "Slot.ndjson"
)

// Source implements availability.Source over a directory.
type Source struct {
	dir    string
	logger zerolog.Logger
}

var _ availability.Source = (*Source)(nil)

func New(dir string, logger zerolog.Logger) *Source {
	return &Source{dir: dir, logger: logger}
}

// Load reads the three files. A missing file is an empty collection.
func (s *Source) Load(ctx context.Context) (*availability.Dataset, error) {
	if info, err := os.Stat(s.dir); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("data dir %s is not a directory", s.dir)
	}

	practitioners, err := readFile[fhir.PractitionerRole](s, PractitionerRoleFile)
	if err != nil {
		return nil, err
	}
	schedules, err := readFile[fhir.Schedule](s, ScheduleFile)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slots, err := readFile[fhir.Slot](s, SlotFile)
	if err != nil {
		return nil, err
	}
	return availability.NewDataset(practitioners, schedules, slots), nil
}

func readFile[T any](s *Source, name string) ([]T, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn().Str("file", path).Msg("resource file missing, treating as empty")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	recs, bad, err := fhir.DecodeNDJSON[T](f)
	for _, le := range bad {
		s.logger.Warn().Err(le.Err).Str("file", path).Int("line", le.Line).Msg("skipping undecodable ndjson line")
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return recs, nil
}
