package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/slotcal/internal/platform/fhir"
)

// Builder partitions a dataset's free slots into the day buckets of one
// month. All calendar arithmetic happens in Location, so month filtering and
// date keys never disagree.
type Builder struct {
	Location *time.Location
	Logger   zerolog.Logger
}

// NewBuilder returns a Builder for loc. A nil loc means UTC.
func NewBuilder(loc *time.Location, logger zerolog.Logger) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{Location: loc, Logger: logger}
}

func (b *Builder) location() *time.Location {
	if b.Location == nil {
		return time.UTC
	}
	return b.Location
}

// Build indexes the free slots of ds starting in (year, month). Slots that
// are not free, fall outside the month, carry malformed instants or point at
// an unknown schedule are skipped; none of these fail the build.
func (b *Builder) Build(year int, month time.Month, ds *Dataset) *MonthIndex {
	idx := &MonthIndex{
		Year:  year,
		Month: month,
		Days:  make(map[string]DayBucket),
	}
	if ds == nil {
		return idx
	}

	loc := b.location()
	resolver := ds.Resolver()

	for i := range ds.Slots {
		slot := &ds.Slots[i]
		idx.Stats.Considered++

		if slot.Status != fhir.SlotStatusFree {
			idx.Stats.NotFree++
			continue
		}

		start, end, err := parseSlotWindow(slot)
		if err != nil {
			idx.Stats.MalformedTimestamp++
			b.Logger.Warn().Err(err).
				Str("slot_id", slot.ID).
				Str("schedule", slot.Schedule.Reference).
				Msg("skipping slot with malformed timestamp")
			continue
		}

		local := start.In(loc)
		if local.Year() != year || local.Month() != month {
			idx.Stats.OutOfMonth++
			continue
		}

		res, err := resolver.Resolve(slot)
		if err != nil {
			idx.Stats.UnresolvedSchedule++
			b.Logger.Debug().Err(err).
				Str("slot_id", slot.ID).
				Msg("dropping slot with unresolved schedule")
			continue
		}
		if res.Degraded() {
			idx.Stats.Degraded++
		}

		key := local.Format(DateKeyLayout)
		idx.Days[key] = append(idx.Days[key], Entry{
			Start:        start,
			End:          end,
			Practitioner: res.Practitioner,
			Location:     res.Location,
			BookingURL:   res.BookingURL,
			Phone:        res.Phone,
		})
		idx.Stats.Indexed++
	}
	return idx
}

// ParseInstant parses a FHIR instant. Any failure, including an empty value,
// wraps ErrMalformedTimestamp.
func ParseInstant(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is missing", ErrMalformedTimestamp, field)
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s %q: %v", ErrMalformedTimestamp, field, value, err)
	}
	return t, nil
}

func parseSlotWindow(slot *fhir.Slot) (time.Time, time.Time, error) {
	start, startErr := ParseInstant("start", slot.Start)
	end, endErr := ParseInstant("end", slot.End)
	if err := errors.Join(startErr, endErr); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
