package availability

import (
	"sort"
	"time"
)

// StartGroup is every entry of a day that begins at the same instant.
type StartGroup struct {
	Start   time.Time `json:"start"`
	Entries []Entry   `json:"entries"`
}

// GroupByStart groups a day's entries by exact start instant and orders the
// groups chronologically. Entries keep bucket order inside a group.
func GroupByStart(bucket DayBucket) []StartGroup {
	if len(bucket) == 0 {
		return nil
	}

	// Keyed on UnixNano so equal instants in different zones share a group.
	pos := make(map[int64]int, len(bucket))
	groups := make([]StartGroup, 0, len(bucket))
	for _, e := range bucket {
		k := e.Start.UnixNano()
		i, ok := pos[k]
		if !ok {
			i = len(groups)
			pos[k] = i
			groups = append(groups, StartGroup{Start: e.Start})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Start.Before(groups[j].Start)
	})
	return groups
}
