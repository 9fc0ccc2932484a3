package scheduling

import (
	"time"

	"github.com/pkg/errors"
)

// ErrNoAvailability is returned when the horizon is exhausted without a free slot.
var ErrNoAvailability = errors.New("no availability found")

// SlotQuery parameterizes the forward scan.
type SlotQuery struct {
	Duration time.Duration
	Step     time.Duration
	Horizon  time.Duration
}

// DefaultSlotQuery looks for a one hour slot in 30 minute steps over two weeks.
func DefaultSlotQuery() SlotQuery {
	return SlotQuery{
		Duration: time.Hour,
		Step:     30 * time.Minute,
		Horizon:  14 * 24 * time.Hour,
	}
}

func (q SlotQuery) withDefaults() SlotQuery {
	d := DefaultSlotQuery()
	if q.Duration <= 0 {
		q.Duration = d.Duration
	}
	if q.Step <= 0 {
		q.Step = d.Step
	}
	if q.Horizon <= 0 {
		q.Horizon = d.Horizon
	}
	return q
}

// NextSlot scans forward from the next business day opening after now and
// returns the first q.Duration range that fits business hours and overlaps
// none of busy. The scan stops at now+q.Horizon.
func NextSlot(h BusinessHours, now time.Time, busy []BusySlot, q SlotQuery) (TimeRange, error) {
	q = q.withDefaults()
	deadline := now.Add(q.Horizon)

	cursor := h.NextOpening(now)
	for cursor.Before(deadline) {
		if !h.IsWorkday(cursor) || cursor.Hour() >= h.CloseHour {
			cursor = h.NextOpening(cursor)
			continue
		}

		end := cursor.Add(q.Duration)
		if end.After(h.closeOn(cursor)) {
			cursor = h.NextOpening(cursor)
			continue
		}

		candidate := TimeRange{Start: cursor.UTC(), End: end.UTC()}
		if !anyOverlap(candidate, busy) {
			return candidate, nil
		}
		cursor = cursor.Add(q.Step)
	}
	return TimeRange{}, ErrNoAvailability
}
