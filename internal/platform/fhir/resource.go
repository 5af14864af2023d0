package fhir

import "strings"

// Resource is the common header of every FHIR resource.
type Resource struct {
	ResourceType string `json:"resourceType"`
	ID           string `json:"id"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

type Extension struct {
	URL         string `json:"url"`
	ValueString string `json:"valueString,omitempty"`
	ValueURL    string `json:"valueUrl,omitempty"`
	ValueCode   string `json:"valueCode,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// PractitionerRole is the subset of the FHIR PractitionerRole resource the
// availability index reads.
type PractitionerRole struct {
	ResourceType string     `json:"resourceType"`
	ID           string     `json:"id"`
	Practitioner *Reference `json:"practitioner,omitempty"`
}

// PractitionerDisplay returns the display label of the underlying
// practitioner, or "" when the role carries none.
func (p *PractitionerRole) PractitionerDisplay() string {
	if p == nil || p.Practitioner == nil {
		return ""
	}
	return p.Practitioner.Display
}

// Schedule is the subset of the FHIR Schedule resource the availability
// index reads. Actor order is significant.
type Schedule struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id"`
	Actor        []Reference       `json:"actor,omitempty"`
	ServiceType  []CodeableConcept `json:"serviceType,omitempty"`
}

// Slot is the subset of the FHIR Slot resource the availability index
// reads. Start and End are kept as the raw instant strings so a malformed
// value fails only the slot it belongs to, not the decode of the batch.
type Slot struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id,omitempty"`
	Schedule     Reference   `json:"schedule"`
	Status       string      `json:"status"`
	Start        string      `json:"start"`
	End          string      `json:"end"`
	Extension    []Extension `json:"extension,omitempty"`
}

// SlotStatus values from the FHIR slotstatus value set.
const (
	SlotStatusFree            = "free"
	SlotStatusBusy            = "busy"
	SlotStatusBusyUnavailable = "busy-unavailable"
	SlotStatusBusyTentative   = "busy-tentative"
	SlotStatusEnteredInError  = "entered-in-error"
)

// FindExtension returns the first extension whose URL contains marker.
func FindExtension(exts []Extension, marker string) (Extension, bool) {
	for _, e := range exts {
		if strings.Contains(e.URL, marker) {
			return e, true
		}
	}
	return Extension{}, false
}

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string `json:"severity"`
	Code        string `json:"code"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome("error", "processing", diagnostics)
}

func InvalidOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome("error", "invalid", diagnostics)
}
