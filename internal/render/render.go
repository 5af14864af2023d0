// Package render writes availability as plain text for terminals.
package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ehr/slotcal/internal/domain/availability"
)

const (
	gridWeeks = 6
	// AvailableMark follows the day number of every day with a free slot.
	AvailableMark = "*"
)

var weekdayLabels = [7]string{"Su", "Mo", "Tu", "We", "Th", "Fr", "Sa"}

// MonthGrid writes a six-week calendar for year/month with weeks starting on
// weekStart. Days present in idx are marked with AvailableMark. A nil idx
// renders an unmarked calendar.
func MonthGrid(w io.Writer, year int, month time.Month, idx *availability.MonthIndex, weekStart time.Weekday) error {
	bw := bufio.NewWriter(w)

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()
	offset := (int(first.Weekday()) - int(weekStart) + 7) % 7

	fmt.Fprintf(bw, "%s %d\n", month, year)

	var row strings.Builder
	for i := 0; i < 7; i++ {
		fmt.Fprintf(&row, "%3s ", weekdayLabels[(int(weekStart)+i)%7])
	}
	fmt.Fprintln(bw, strings.TrimRight(row.String(), " "))

	day := 1
	for week := 0; week < gridWeeks; week++ {
		row.Reset()
		for d := 0; d < 7; d++ {
			if (week == 0 && d < offset) || day > daysInMonth {
				row.WriteString("    ")
				continue
			}
			mark := " "
			if idx.Has(fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)) {
				mark = AvailableMark
			}
			fmt.Fprintf(&row, "%3d%s", day, mark)
			day++
		}
		fmt.Fprintln(bw, strings.TrimRight(row.String(), " "))
	}
	return bw.Flush()
}

// DayListing writes the grouped slots of one day. Start times are shown as
// HH:MM in loc; each entry lists who, where and how to book.
func DayListing(w io.Writer, date string, groups []availability.StartGroup, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	bw := bufio.NewWriter(w)

	if len(groups) == 0 {
		fmt.Fprintf(bw, "No availability on %s\n", date)
		return bw.Flush()
	}

	fmt.Fprintln(bw, date)
	for _, g := range groups {
		fmt.Fprintln(bw, g.Start.In(loc).Format("15:04"))
		for _, e := range g.Entries {
			fmt.Fprintf(bw, "  %s @ %s", e.Practitioner, e.Location)
			if e.BookingURL != nil {
				fmt.Fprintf(bw, "  Book: %s", *e.BookingURL)
			}
			if e.Phone != nil {
				fmt.Fprintf(bw, " | %s", *e.Phone)
			}
			fmt.Fprintln(bw)
		}
	}
	return bw.Flush()
}

// ParseWeekStart maps a weekday abbreviation such as "mon" to a
// time.Weekday. Unknown values start the week on Sunday.
func ParseWeekStart(day string) time.Weekday {
	return time.Weekday(availability.DayOfWeekIndex(day))
}
