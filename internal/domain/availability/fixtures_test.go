package availability

import (
	"github.com/ehr/slotcal/internal/platform/fhir"
)

const (
	testLinkURL  = "http://fhir-registry.smarthealthit.org/StructureDefinition/booking-deep-link"
	testPhoneURL = "http://fhir-registry.smarthealthit.org/StructureDefinition/booking-phone"
)

func testPractitioners() []fhir.PractitionerRole {
	return []fhir.PractitionerRole{
		{ResourceType: "PractitionerRole", ID: "P1", Practitioner: &fhir.Reference{Reference: "Practitioner/D1", Display: "Dr. A. Smith"}},
		{ResourceType: "PractitionerRole", ID: "P2", Practitioner: &fhir.Reference{Reference: "Practitioner/D2", Display: "Dr. B. Jones"}},
		{ResourceType: "PractitionerRole", ID: "P3"},
	}
}

func testSchedules() []fhir.Schedule {
	return []fhir.Schedule{
		{ResourceType: "Schedule", ID: "S1", Actor: []fhir.Reference{
			{Reference: "PractitionerRole/P1", Display: "Dr. A"},
		}},
		{ResourceType: "Schedule", ID: "S2", Actor: []fhir.Reference{
			{Reference: "Location/L1", Display: "Main Street Clinic"},
			{Reference: "PractitionerRole/P2", Display: "Dr. B"},
		}},
		{ResourceType: "Schedule", ID: "S3", Actor: []fhir.Reference{
			{Reference: "Location/L2", Display: "Walk-in Center"},
		}},
		{ResourceType: "Schedule", ID: "S4"},
		{ResourceType: "Schedule", ID: "S5", Actor: []fhir.Reference{
			{Reference: "PractitionerRole/P_missing", Display: "Dr. Ghost"},
		}},
	}
}

func freeSlot(schedule, start, end string) fhir.Slot {
	return fhir.Slot{
		ResourceType: "Slot",
		Schedule:     fhir.Reference{Reference: schedule},
		Status:       fhir.SlotStatusFree,
		Start:        start,
		End:          end,
	}
}

func withContact(s fhir.Slot, link, phone string) fhir.Slot {
	if link != "" {
		s.Extension = append(s.Extension, fhir.Extension{URL: testLinkURL, ValueURL: link})
	}
	if phone != "" {
		s.Extension = append(s.Extension, fhir.Extension{URL: testPhoneURL, ValueString: phone})
	}
	return s
}

func testDataset(slots ...fhir.Slot) *Dataset {
	return NewDataset(testPractitioners(), testSchedules(), slots)
}
