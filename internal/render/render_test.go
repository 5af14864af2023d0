package render

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/ehr/slotcal/internal/domain/availability"
)

func lines(s string) []string {
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func TestMonthGrid_SundayStart(t *testing.T) {
	idx := &availability.MonthIndex{
		Year:  2024,
		Month: time.March,
		Days:  map[string]availability.DayBucket{"2024-03-05": {{Practitioner: "Dr. A"}}},
	}

	var buf bytes.Buffer
	if err := MonthGrid(&buf, 2024, time.March, idx, time.Sunday); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := lines(buf.String())
	if len(got) != 2+gridWeeks {
		t.Fatalf("expected %d lines, got %d:\n%s", 2+gridWeeks, len(got), buf.String())
	}
	if got[0] != "March 2024" {
		t.Errorf("unexpected title %q", got[0])
	}
	if got[1] != " Su  Mo  Tu  We  Th  Fr  Sa" {
		t.Errorf("unexpected header %q", got[1])
	}
	// 1 March 2024 is a Friday.
	if want := strings.Repeat(" ", 20) + "  1   2"; got[2] != want {
		t.Errorf("first week = %q, want %q", got[2], want)
	}
	if want := "  3   4   5*  6   7   8   9"; got[3] != want {
		t.Errorf("second week = %q, want %q", got[3], want)
	}
	if strings.Count(buf.String(), AvailableMark) != 1 {
		t.Errorf("expected exactly one mark:\n%s", buf.String())
	}
}

func TestMonthGrid_MondayStart(t *testing.T) {
	var buf bytes.Buffer
	if err := MonthGrid(&buf, 2024, time.March, nil, time.Monday); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := lines(buf.String())
	if got[1] != " Mo  Tu  We  Th  Fr  Sa  Su" {
		t.Errorf("unexpected header %q", got[1])
	}
	if want := strings.Repeat(" ", 16) + "  1   2   3"; got[2] != want {
		t.Errorf("first week = %q, want %q", got[2], want)
	}
	if strings.Contains(buf.String(), AvailableMark) {
		t.Error("nil index should render no marks")
	}
}

func TestMonthGrid_LeapFebruary(t *testing.T) {
	var buf bytes.Buffer
	if err := MonthGrid(&buf, 2024, time.February, nil, time.Sunday); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), " 29") {
		t.Error("expected day 29 in February 2024")
	}
	if strings.Contains(buf.String(), " 30") {
		t.Error("unexpected day 30 in February 2024")
	}
}

func TestDayListing(t *testing.T) {
	link := "https://book.example.org/s1"
	phone := "555-0100"
	nine := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	ten := nine.Add(time.Hour)
	groups := []availability.StartGroup{
		{Start: nine, Entries: []availability.Entry{
			{Start: nine, Practitioner: "Dr. A. Smith", Location: "Dr. A", BookingURL: &link, Phone: &phone},
			{Start: nine, Practitioner: "Unknown", Location: "Walk-in Center"},
		}},
		{Start: ten, Entries: []availability.Entry{
			{Start: ten, Practitioner: "Dr. B. Jones", Location: "Main Street Clinic, Dr. B", Phone: &phone},
		}},
	}

	var buf bytes.Buffer
	if err := DayListing(&buf, "2024-03-05", groups, time.UTC); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"2024-03-05",
		"09:00",
		"  Dr. A. Smith @ Dr. A  Book: https://book.example.org/s1 | 555-0100",
		"  Unknown @ Walk-in Center",
		"10:00",
		"  Dr. B. Jones @ Main Street Clinic, Dr. B | 555-0100",
	}
	got := lines(buf.String())
	if len(got) != len(want) {
		t.Fatalf("expected %d lines, got %d:\n%s", len(want), len(got), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDayListing_Location(t *testing.T) {
	start := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	groups := []availability.StartGroup{{Start: start, Entries: []availability.Entry{{Start: start, Practitioner: "Dr. A", Location: "X"}}}}

	var buf bytes.Buffer
	if err := DayListing(&buf, "2024-03-05", groups, time.FixedZone("UTC+2", 2*3600)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := lines(buf.String())[1]; got != "11:00" {
		t.Errorf("expected start shown in listing zone, got %q", got)
	}
}

func TestDayListing_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := DayListing(&buf, "2024-03-06", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "No availability on 2024-03-06\n" {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestParseWeekStart(t *testing.T) {
	tests := map[string]time.Weekday{
		"sun": time.Sunday,
		"Mon": time.Monday,
		"SAT": time.Saturday,
		"":    time.Sunday,
		"xyz": time.Sunday,
	}
	for in, want := range tests {
		if got := ParseWeekStart(in); got != want {
			t.Errorf("ParseWeekStart(%q) = %s, want %s", in, got, want)
		}
	}
}
