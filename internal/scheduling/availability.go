package scheduling

import (
	"time"
)

// MinFreeWindow is the shortest gap worth offering as bookable.
const MinFreeWindow = 30 * time.Minute

// DayWindow lists the free windows of one business day.
type DayWindow struct {
	Date    string      `json:"date"`
	DayName string      `json:"dayName"`
	Windows []string    `json:"windows"`
	Free    []TimeRange `json:"-"`
}

// FreeWindows subtracts busy from the business hours of every workday
// touched by window. The first and last day are clipped to window.
// Gaps shorter than minDuration are dropped, and so are days left with
// no gap at all. busy may be unsorted and overlapping.
func FreeWindows(h BusinessHours, window TimeRange, busy []BusySlot, minDuration time.Duration) []DayWindow {
	if minDuration <= 0 {
		minDuration = MinFreeWindow
	}
	sorted := SortBusy(busy)

	first := midnight(window.Start.In(h.Location))
	last := midnight(window.End.In(h.Location))

	var days []DayWindow
	// Step by calendar date: a zone that skips midnight puts that day's
	// start at 01:00, so instants cannot bound the loop.
	for day := first; !dateAfter(day, last); day = nextDate(day) {
		if !h.IsWorkday(day) {
			continue
		}

		effective := h.Day(day)
		if window.Start.After(effective.Start) {
			effective.Start = window.Start.UTC()
		}
		if window.End.Before(effective.End) {
			effective.End = window.End.UTC()
		}
		if !effective.Start.Before(effective.End) {
			continue
		}

		free := FreeRanges(effective, sorted, minDuration)
		if len(free) == 0 {
			continue
		}

		labels := make([]string, len(free))
		for i, f := range free {
			labels[i] = f.Format(h.Location)
		}
		days = append(days, DayWindow{
			Date:    day.Format(DateLayout),
			DayName: day.Weekday().String(),
			Windows: labels,
			Free:    free,
		})
	}
	return days
}

// FreeRanges sweeps the start-sorted busy slots across effective and
// returns the uncovered gaps of at least minDuration.
func FreeRanges(effective TimeRange, sorted []BusySlot, minDuration time.Duration) []TimeRange {
	var free []TimeRange
	emit := func(start, end time.Time) {
		if end.Sub(start) >= minDuration {
			free = append(free, TimeRange{Start: start.UTC(), End: end.UTC()})
		}
	}

	cursor := effective.Start
	for _, slot := range sorted {
		if !slot.Overlaps(effective) {
			continue
		}
		if slot.Start.After(cursor) {
			emit(cursor, slot.Start)
		}
		if slot.End.After(cursor) {
			cursor = slot.End
		}
	}
	if effective.End.After(cursor) {
		emit(cursor, effective.End)
	}
	return free
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func nextDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

// dateAfter compares the local calendar dates of a and b.
func dateAfter(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay > by
	}
	if am != bm {
		return am > bm
	}
	return ad > bd
}
