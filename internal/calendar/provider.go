package calendar

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"meeting-agent/internal/scheduling"
)

// ErrNotConfigured is returned when the backend credentials are missing.
var ErrNotConfigured = errors.New("calendar backend not configured")

// Provider is the narrow contract the scheduling engine needs from a calendar backend.
type Provider interface {
	// FreeBusy returns the occupied intervals of calendarID within [timeMin, timeMax].
	// The result is unordered and may contain overlapping intervals.
	FreeBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]scheduling.BusySlot, error)

	// ListEvents returns the events of calendarID intersecting [timeMin, timeMax].
	ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]Event, error)

	// CreateEvent commits a single event.
	CreateEvent(ctx context.Context, req *EventRequest) (*Event, error)
}

// EventRequest describes an event to create.
type EventRequest struct {
	CalendarID  string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	// TimeZone is the IANA zone the event is presented in.
	TimeZone  string
	Attendees []string
	// WithConference asks the backend to generate a video conferencing link.
	WithConference bool
}

// Event is a calendar event as seen by the engine.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start_time"`
	End         time.Time `json:"end_time"`
	Status      string    `json:"status"`
	Transparent bool      `json:"transparent,omitempty"`
	HTMLLink    string    `json:"html_link,omitempty"`
	MeetLink    string    `json:"meet_link,omitempty"`
}

// Blocks reports whether the event occupies its time range.
// Cancelled and free ("transparent") events do not.
func (e Event) Blocks() bool {
	return e.Status != "cancelled" && !e.Transparent
}

// Range returns the event interval.
func (e Event) Range() scheduling.TimeRange {
	return scheduling.TimeRange{Start: e.Start.UTC(), End: e.End.UTC()}
}
