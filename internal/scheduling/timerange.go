package scheduling

import (
	"sort"
	"time"

	"github.com/pkg/errors"
)

// ErrInvalidRange is returned when a range does not start strictly before it ends.
var ErrInvalidRange = errors.New("start must be before end")

// TimeRange is a half-open interval [Start, End). Both instants are kept in UTC.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeRange builds a normalized range, rejecting empty or inverted ones.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if !start.Before(end) {
		return TimeRange{}, errors.Wrapf(ErrInvalidRange, "%s >= %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return TimeRange{Start: start.UTC(), End: end.UTC()}, nil
}

func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Overlaps reports whether the two ranges share any instant. Touching ranges do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && r.End.After(o.Start)
}

// Format renders the range as "15:04 - 15:04" in loc.
func (r TimeRange) Format(loc *time.Location) string {
	return r.Start.In(loc).Format(clockLayout) + " - " + r.End.In(loc).Format(clockLayout)
}

// BusySlot is an occupied interval reported by the calendar backend.
type BusySlot = TimeRange

// SortBusy returns a start-ascending copy of slots.
func SortBusy(slots []BusySlot) []BusySlot {
	out := make([]BusySlot, len(slots))
	copy(out, slots)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// anyOverlap reports whether r overlaps at least one slot.
func anyOverlap(r TimeRange, slots []BusySlot) bool {
	for _, s := range slots {
		if r.Overlaps(s) {
			return true
		}
	}
	return false
}

const (
	clockLayout = "15:04"
	DateLayout  = "2006-01-02"
)
