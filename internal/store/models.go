package store

import "time"

// Booking is a ledger entry for an event committed to the calendar.
type Booking struct {
	ID          string    `json:"id"`
	EventID     string    `json:"event_id"`
	CalendarID  string    `json:"calendar_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartAtUTC  time.Time `json:"start_at_utc"`
	EndAtUTC    time.Time `json:"end_at_utc"`
	Attendees   []string  `json:"attendees"`
	MeetLink    string    `json:"meet_link,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}
