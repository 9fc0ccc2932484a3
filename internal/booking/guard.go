package booking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"meeting-agent/internal/calendar"
	"meeting-agent/internal/scheduling"
)

// ErrConflict matches any *ConflictError.
var ErrConflict = errors.New("time slot conflicts with an existing event")

// ConflictError lists the events that overlap a proposed booking.
type ConflictError struct {
	Requested scheduling.TimeRange
	Events    []calendar.Event
}

func (e *ConflictError) Error() string {
	titles := make([]string, 0, len(e.Events))
	for _, ev := range e.Events {
		titles = append(titles, fmt.Sprintf("%s-%s", ev.Start.UTC().Format(time.RFC3339), ev.End.UTC().Format(time.RFC3339)))
	}
	return fmt.Sprintf("%s: %s", ErrConflict, strings.Join(titles, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// EventLister is the slice of the calendar backend the guard needs.
type EventLister interface {
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]calendar.Event, error)
}

// Guard performs the last-moment existence check before a booking is committed.
type Guard struct {
	events EventLister
}

func NewGuard(events EventLister) *Guard {
	return &Guard{events: events}
}

// Check fails with a *ConflictError when a blocking event intersects r.
func (g *Guard) Check(ctx context.Context, calendarID string, r scheduling.TimeRange) error {
	events, err := g.events.ListEvents(ctx, calendarID, r.Start, r.End)
	if err != nil {
		return errors.Wrap(err, "conflict check failed")
	}

	var clashing []calendar.Event
	for _, ev := range events {
		if ev.Blocks() && ev.Range().Overlaps(r) {
			clashing = append(clashing, ev)
		}
	}
	if len(clashing) > 0 {
		return &ConflictError{Requested: r, Events: clashing}
	}
	return nil
}
