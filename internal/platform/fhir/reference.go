package fhir

import (
	"fmt"
	"strings"
)

// FormatReference creates a FHIR reference string.
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}

// ParseReference splits a relative reference of the form "Type/id". It
// reports false when ref has no type prefix or an empty id.
func ParseReference(ref string) (resourceType, id string, ok bool) {
	resourceType, id, found := strings.Cut(ref, "/")
	if !found || resourceType == "" || id == "" {
		return "", "", false
	}
	// Drop a trailing "/_history/n" version suffix.
	if i := strings.IndexByte(id, '/'); i >= 0 {
		id = id[:i]
	}
	return resourceType, id, true
}

// ReferenceID returns the id of ref when it points at resourceType.
func ReferenceID(ref, resourceType string) (string, bool) {
	typ, id, ok := ParseReference(ref)
	if !ok || typ != resourceType {
		return "", false
	}
	return id, true
}
