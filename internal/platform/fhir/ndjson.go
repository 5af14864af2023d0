package fhir

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// maxNDJSONLine bounds a single resource line. Bulk files from real
// publishers stay far below this.
const maxNDJSONLine = 4 << 20

// NDJSONWriter writes resources in NDJSON (Newline Delimited JSON) format.
// Each resource is serialised as a single JSON line followed by a newline
// character, which is the format required by the FHIR Bulk Data Access
// specification.
type NDJSONWriter struct {
	w *bufio.Writer
}

// NewNDJSONWriter creates a new NDJSONWriter that writes to w.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{
		w: bufio.NewWriter(w),
	}
}

// WriteResource serialises resource as a single JSON line followed by a
// newline character.
func (n *NDJSONWriter) WriteResource(resource interface{}) error {
	data, err := json.Marshal(resource)
	if err != nil {
		return err
	}
	if _, err := n.w.Write(data); err != nil {
		return err
	}
	return n.w.WriteByte('\n')
}

// Flush flushes any buffered data to the underlying writer.
func (n *NDJSONWriter) Flush() error {
	return n.w.Flush()
}

// LineError describes one NDJSON line that could not be decoded.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// DecodeNDJSON decodes every non-blank line of r into a T. Lines that fail to
// decode are reported in the returned LineError slice and skipped; the
// returned error is non-nil only when reading r itself fails.
func DecodeNDJSON[T any](r io.Reader) ([]T, []LineError, error) {
	var (
		out     []T
		badRows []LineError
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxNDJSONLine)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			badRows = append(badRows, LineError{Line: lineNo, Err: err})
			continue
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return out, badRows, fmt.Errorf("read ndjson: %w", err)
	}
	return out, badRows, nil
}
