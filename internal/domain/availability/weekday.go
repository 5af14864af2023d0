package availability

import "strings"

var weekdayIndex = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

// DayOfWeekIndex maps a three-letter weekday abbreviation to 0 (Sunday)
// through 6 (Saturday), ignoring case. Unknown values map to 0.
func DayOfWeekIndex(day string) int {
	return weekdayIndex[strings.ToLower(day)]
}
