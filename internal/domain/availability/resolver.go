package availability

import (
	"fmt"
	"strings"

	"github.com/ehr/slotcal/internal/platform/fhir"
)

// Resolution is a slot's reference chain followed to display values.
type Resolution struct {
	Practitioner string
	Location     string
	BookingURL   *string
	Phone        *string

	// DegradedPractitioner is set when Practitioner is the fallback label.
	DegradedPractitioner bool
	// DegradedLocation is set when Location is the fallback label.
	DegradedLocation bool
}

// Degraded reports whether any fallback label was used.
func (r Resolution) Degraded() bool {
	return r.DegradedPractitioner || r.DegradedLocation
}

// Resolver follows slot -> schedule -> practitioner role references over one
// dataset. It is safe for concurrent use once constructed.
type Resolver struct {
	schedules     map[string]*fhir.Schedule
	practitioners map[string]*fhir.PractitionerRole
}

// NewResolver indexes schedules and practitioner roles by id. When two
// records share an id the first one wins.
func NewResolver(practitioners []fhir.PractitionerRole, schedules []fhir.Schedule) *Resolver {
	r := &Resolver{
		schedules:     make(map[string]*fhir.Schedule, len(schedules)),
		practitioners: make(map[string]*fhir.PractitionerRole, len(practitioners)),
	}
	for i := range schedules {
		s := &schedules[i]
		if _, dup := r.schedules[s.ID]; !dup {
			r.schedules[s.ID] = s
		}
	}
	for i := range practitioners {
		p := &practitioners[i]
		if _, dup := r.practitioners[p.ID]; !dup {
			r.practitioners[p.ID] = p
		}
	}
	return r
}

// Schedule looks up a schedule by id.
func (r *Resolver) Schedule(id string) (*fhir.Schedule, bool) {
	s, ok := r.schedules[id]
	return s, ok
}

// PractitionerRole looks up a practitioner role by id.
func (r *Resolver) PractitionerRole(id string) (*fhir.PractitionerRole, bool) {
	p, ok := r.practitioners[id]
	return p, ok
}

// Resolve follows the reference chain of slot. It fails only when the
// schedule cannot be found; a missing practitioner or location yields a
// degraded Resolution instead.
func (r *Resolver) Resolve(slot *fhir.Slot) (Resolution, error) {
	schedID, ok := fhir.ReferenceID(slot.Schedule.Reference, "Schedule")
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnresolvedSchedule, slot.Schedule.Reference)
	}
	sched, ok := r.schedules[schedID]
	if !ok {
		return Resolution{}, fmt.Errorf("%w: Schedule/%s not loaded", ErrUnresolvedSchedule, schedID)
	}

	res := Resolution{
		Practitioner: UnknownPractitioner,
		Location:     UnknownLocation,
	}

	res.DegradedPractitioner = true
	// First PractitionerRole actor wins, even if later ones also match.
	for _, actor := range sched.Actor {
		if !strings.HasPrefix(actor.Reference, "PractitionerRole/") {
			continue
		}
		if id, ok := fhir.ReferenceID(actor.Reference, "PractitionerRole"); ok {
			if role, ok := r.practitioners[id]; ok {
				if name := role.PractitionerDisplay(); name != "" {
					res.Practitioner = name
					res.DegradedPractitioner = false
				}
			}
		}
		break
	}

	if len(sched.Actor) > 0 {
		labels := make([]string, len(sched.Actor))
		for i, actor := range sched.Actor {
			labels[i] = actor.Display
		}
		res.Location = strings.Join(labels, ", ")
	}
	res.DegradedLocation = len(sched.Actor) == 0

	if ext, ok := fhir.FindExtension(slot.Extension, BookingLinkMarker); ok && ext.ValueURL != "" {
		u := ext.ValueURL
		res.BookingURL = &u
	}
	if ext, ok := fhir.FindExtension(slot.Extension, BookingPhoneMarker); ok && ext.ValueString != "" {
		p := ext.ValueString
		res.Phone = &p
	}
	return res, nil
}
