package availability

import (
	"testing"
	"time"
)

func TestGroupByStart_SharedInstant(t *testing.T) {
	ds := testDataset(
		freeSlot("Schedule/S2", "2024-03-05T09:00:00Z", "2024-03-05T09:20:00Z"),
		freeSlot("Schedule/S1", "2024-03-05T09:00:00Z", "2024-03-05T09:20:00Z"),
	)
	bucket := newTestBuilder().Build(2024, time.March, ds).Days["2024-03-05"]

	groups := GroupByStart(bucket)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0].Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(groups[0].Entries))
	}
	if groups[0].Entries[0].Practitioner != "Dr. B. Jones" || groups[0].Entries[1].Practitioner != "Dr. A. Smith" {
		t.Errorf("expected insertion order, got %q then %q",
			groups[0].Entries[0].Practitioner, groups[0].Entries[1].Practitioner)
	}
}

func TestGroupByStart_OrderedAndLossless(t *testing.T) {
	base := time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC)
	at := func(min int) Entry {
		return Entry{Start: base.Add(time.Duration(min) * time.Minute), Practitioner: "p"}
	}
	bucket := DayBucket{at(120), at(0), at(60), at(0), at(120), at(30), at(0)}

	groups := GroupByStart(bucket)

	if len(groups) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(groups))
	}
	total := 0
	for i, g := range groups {
		if i > 0 && !groups[i-1].Start.Before(g.Start) {
			t.Errorf("group %d not after group %d", i, i-1)
		}
		for _, e := range g.Entries {
			if !e.Start.Equal(g.Start) {
				t.Errorf("entry %v in group %v", e.Start, g.Start)
			}
		}
		total += len(g.Entries)
	}
	if total != len(bucket) {
		t.Errorf("expected %d entries across groups, got %d", len(bucket), total)
	}
	if len(groups[0].Entries) != 3 {
		t.Errorf("expected 3 entries at 08:00, got %d", len(groups[0].Entries))
	}
}

func TestGroupByStart_FullPrecision(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	bucket := DayBucket{
		{Start: base},
		{Start: base.Add(time.Second)},
		{Start: base.Add(time.Millisecond)},
	}
	if groups := GroupByStart(bucket); len(groups) != 3 {
		t.Errorf("expected sub-minute starts to stay apart, got %d groups", len(groups))
	}
}

func TestGroupByStart_EqualInstantsAcrossZones(t *testing.T) {
	utc := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	east := utc.In(time.FixedZone("UTC+2", 2*60*60))
	groups := GroupByStart(DayBucket{{Start: utc}, {Start: east}})
	if len(groups) != 1 {
		t.Errorf("expected one group for the same instant, got %d", len(groups))
	}
}

func TestGroupByStart_Empty(t *testing.T) {
	if groups := GroupByStart(nil); len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}

func TestGroupByStart_DoesNotMutateBucket(t *testing.T) {
	base := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	bucket := DayBucket{{Start: base.Add(time.Hour)}, {Start: base}}
	GroupByStart(bucket)
	if !bucket[0].Start.Equal(base.Add(time.Hour)) {
		t.Error("bucket was reordered")
	}
}
