package availability

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/slotcal/internal/platform/fhir"
)

// Fallback labels used when a reference chain cannot be followed.
const (
	UnknownPractitioner = "Unknown"
	UnknownLocation     = "Unknown"
)

// Extension URL markers carrying booking contact details on a Slot.
const (
	BookingLinkMarker  = "booking-deep-link"
	BookingPhoneMarker = "booking-phone"
)

// DateKeyLayout is the layout of DayBucket keys.
const DateKeyLayout = "2006-01-02"

// Dataset is one load of the three source collections. It is read-only once
// constructed.
type Dataset struct {
	ID            uuid.UUID
	LoadedAt      time.Time
	Practitioners []fhir.PractitionerRole
	Schedules     []fhir.Schedule
	Slots         []fhir.Slot

	resolverOnce sync.Once
	resolver     *Resolver
}

// Resolver returns the reference resolver over this dataset, indexing the
// schedules and practitioner roles on first use.
func (d *Dataset) Resolver() *Resolver {
	d.resolverOnce.Do(func() {
		d.resolver = NewResolver(d.Practitioners, d.Schedules)
	})
	return d.resolver
}

// NewDataset stamps the collections with a fresh load id.
func NewDataset(practitioners []fhir.PractitionerRole, schedules []fhir.Schedule, slots []fhir.Slot) *Dataset {
	return &Dataset{
		ID:            uuid.New(),
		LoadedAt:      time.Now().UTC(),
		Practitioners: practitioners,
		Schedules:     schedules,
		Slots:         slots,
	}
}

// Entry is one resolved, display-ready free slot.
type Entry struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Practitioner string    `json:"practitioner"`
	Location     string    `json:"location"`
	BookingURL   *string   `json:"bookingUrl"`
	Phone        *string   `json:"phone"`
}

// DayBucket holds the entries of one calendar date in source order.
type DayBucket []Entry

// MonthIndex maps date keys (YYYY-MM-DD) to the free slots of that day for
// one (year, month).
type MonthIndex struct {
	Year  int                  `json:"year"`
	Month time.Month           `json:"month"`
	Days  map[string]DayBucket `json:"days"`
	Stats BuildStats           `json:"stats"`
}

// Has reports whether any free slot exists on date.
func (m *MonthIndex) Has(date string) bool {
	if m == nil {
		return false
	}
	_, ok := m.Days[date]
	return ok
}

// Day returns the bucket for date, or nil.
func (m *MonthIndex) Day(date string) DayBucket {
	if m == nil {
		return nil
	}
	return m.Days[date]
}

// BuildStats counts what happened to each slot during a build.
type BuildStats struct {
	Considered         int `json:"considered"`
	NotFree            int `json:"notFree"`
	OutOfMonth         int `json:"outOfMonth"`
	MalformedTimestamp int `json:"malformedTimestamp"`
	UnresolvedSchedule int `json:"unresolvedSchedule"`
	Degraded           int `json:"degraded"`
	Indexed            int `json:"indexed"`
}

// MonthKey is the cache key of (year, month), with a 1-based month.
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%d-%d", year, int(month))
}
