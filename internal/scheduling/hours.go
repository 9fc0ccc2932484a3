package scheduling

import (
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrOutsideBusinessHours is returned for ranges not fully inside the operating window.
	ErrOutsideBusinessHours = errors.New("outside business hours")
	// ErrSpansMultipleDays is returned for ranges that cross a local day boundary.
	ErrSpansMultipleDays = errors.New("range spans more than one day")
)

// BusinessHours is the weekly operating window: Monday to Friday,
// OpenHour inclusive to CloseHour exclusive, in Location.
type BusinessHours struct {
	Location  *time.Location
	OpenHour  int
	CloseHour int
}

// DefaultBusinessHours returns the 09:00-18:00 weekday window in loc.
func DefaultBusinessHours(loc *time.Location) BusinessHours {
	return BusinessHours{Location: loc, OpenHour: 9, CloseHour: 18}
}

// NewBusinessHours validates the bounds before building the policy.
func NewBusinessHours(loc *time.Location, open, close int) (BusinessHours, error) {
	if loc == nil {
		return BusinessHours{}, errors.New("location is required")
	}
	if open < 0 || close > 23 || open >= close {
		return BusinessHours{}, errors.Errorf("invalid business hours %02d:00-%02d:00", open, close)
	}
	return BusinessHours{Location: loc, OpenHour: open, CloseHour: close}, nil
}

// IsWorkday reports whether t falls on Monday to Friday in the operating zone.
func (h BusinessHours) IsWorkday(t time.Time) bool {
	switch t.In(h.Location).Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
		return true
	}
}

func (h BusinessHours) openOn(t time.Time) time.Time {
	lt := t.In(h.Location)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), h.OpenHour, 0, 0, 0, h.Location)
}

func (h BusinessHours) closeOn(t time.Time) time.Time {
	lt := t.In(h.Location)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), h.CloseHour, 0, 0, 0, h.Location)
}

// Day returns the operating window of the local calendar day containing t.
// The result is meaningful only for workdays.
func (h BusinessHours) Day(t time.Time) TimeRange {
	return TimeRange{Start: h.openOn(t).UTC(), End: h.closeOn(t).UTC()}
}

// Validate explains why r is not bookable, or returns nil.
func (h BusinessHours) Validate(r TimeRange) error {
	start, end := r.Start.In(h.Location), r.End.In(h.Location)
	if !start.Before(end) {
		return ErrInvalidRange
	}
	if !sameDay(start, end) {
		return ErrSpansMultipleDays
	}
	if !h.IsWorkday(start) {
		return errors.Wrapf(ErrOutsideBusinessHours, "%s is not a weekday", start.Weekday())
	}
	if start.Before(h.openOn(start)) || end.After(h.closeOn(start)) {
		return errors.Wrapf(ErrOutsideBusinessHours, "meetings must be between %02d:00 and %02d:00", h.OpenHour, h.CloseHour)
	}
	return nil
}

// Contains reports whether r lies entirely inside one day's operating window.
func (h BusinessHours) Contains(r TimeRange) bool {
	return h.Validate(r) == nil
}

// Clamp moves t forward to the nearest instant inside business hours.
// Instants already inside are returned unchanged (in the operating zone).
func (h BusinessHours) Clamp(t time.Time) time.Time {
	lt := t.In(h.Location)
	if !h.IsWorkday(lt) {
		return h.NextOpening(lt)
	}
	if open := h.openOn(lt); lt.Before(open) {
		return open
	}
	if !lt.Before(h.closeOn(lt)) {
		return h.NextOpening(lt)
	}
	return lt
}

// NextOpening returns the opening instant of the first workday after t's local day.
func (h BusinessHours) NextOpening(t time.Time) time.Time {
	lt := t.In(h.Location)
	d := time.Date(lt.Year(), lt.Month(), lt.Day()+1, h.OpenHour, 0, 0, 0, h.Location)
	for !h.IsWorkday(d) {
		d = time.Date(d.Year(), d.Month(), d.Day()+1, h.OpenHour, 0, 0, 0, h.Location)
	}
	return d
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
