package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"

	"meeting-agent/internal/calendar"
	"meeting-agent/internal/scheduling"
	"meeting-agent/internal/store"
)

var (
	// ErrInvalidRequest is returned for requests missing mandatory fields.
	ErrInvalidRequest = errors.New("invalid meeting request")
	// ErrInPast is returned for meetings starting before now.
	ErrInPast = errors.New("meeting must start in the future")
)

const maxTitleLengthForLog = 50

// MeetingRequest is a booking request whose dates are already parsed.
type MeetingRequest struct {
	Title       string
	Description string
	Range       scheduling.TimeRange
	// Attendees is the raw, caller supplied attendee list.
	Attendees string
}

// Result describes a committed booking.
type Result struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	EventID  string `json:"eventId,omitempty"`
	MeetLink string `json:"meetLink,omitempty"`
	HTMLLink string `json:"htmlLink,omitempty"`
}

// Ledger records committed bookings. It is optional.
type Ledger interface {
	InsertBooking(ctx context.Context, b *store.Booking) error
}

// Options holds the read-only settings of a Service.
type Options struct {
	CalendarID       string
	Hours            scheduling.BusinessHours
	DefaultAttendees []string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service validates, guards and commits meetings.
type Service struct {
	provider calendar.Provider
	guard    *Guard
	ledger   Ledger
	opts     Options
}

// NewService builds a booking service. ledger may be nil.
func NewService(provider calendar.Provider, ledger Ledger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		provider: provider,
		guard:    NewGuard(provider),
		ledger:   ledger,
		opts:     opts,
	}
}

// Book commits exactly one calendar event for req, or nothing.
// The context is checked right before the conflict check and again right
// before the commit so an abandoned conversation never books.
func (s *Service) Book(ctx context.Context, req MeetingRequest) (*Result, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "title is required")
	}
	if err := s.opts.Hours.Validate(req.Range); err != nil {
		return nil, err
	}
	if req.Range.Start.Before(s.opts.Now()) {
		return nil, ErrInPast
	}

	attendees, err := MergeAttendees(s.opts.DefaultAttendees, req.Attendees)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "booking abandoned")
	}
	if err := s.guard.Check(ctx, s.opts.CalendarID, req.Range); err != nil {
		if errors.Is(err, ErrConflict) {
			slog.Info("booking rejected by conflict guard",
				"start", req.Range.Start,
				"end", req.Range.End)
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "booking abandoned")
	}

	loc := s.opts.Hours.Location
	event, err := s.provider.CreateEvent(ctx, &calendar.EventRequest{
		CalendarID:     s.opts.CalendarID,
		Title:          req.Title,
		Description:    req.Description,
		Start:          req.Range.Start.In(loc),
		End:            req.Range.End.In(loc),
		TimeZone:       loc.String(),
		Attendees:      attendees,
		WithConference: true,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("meeting booked",
		"event_id", event.ID,
		"title", truncate(req.Title, maxTitleLengthForLog),
		"start", req.Range.Start,
		"end", req.Range.End,
		"attendees", len(attendees))

	s.record(ctx, event, req, attendees)

	return &Result{
		Success:  true,
		Message:  fmt.Sprintf("Meeting %q booked for %s.", req.Title, Describe(req.Range, loc)),
		EventID:  event.ID,
		MeetLink: event.MeetLink,
		HTMLLink: event.HTMLLink,
	}, nil
}

// record appends the committed event to the ledger. The event already
// exists, so a ledger failure is logged and otherwise ignored.
func (s *Service) record(ctx context.Context, event *calendar.Event, req MeetingRequest, attendees []string) {
	if s.ledger == nil {
		return
	}
	b := &store.Booking{
		EventID:     event.ID,
		CalendarID:  s.opts.CalendarID,
		Title:       req.Title,
		Description: req.Description,
		StartAtUTC:  req.Range.Start.UTC(),
		EndAtUTC:    req.Range.End.UTC(),
		Attendees:   attendees,
		MeetLink:    event.MeetLink,
	}
	if err := s.ledger.InsertBooking(context.WithoutCancel(ctx), b); err != nil {
		slog.Error("failed to record booking", "event_id", event.ID, "error", err)
	}
}

// Describe renders a range as "Tuesday, 14 Jan 2025, 10:00 - 11:00 (America/Sao_Paulo)".
func Describe(r scheduling.TimeRange, loc *time.Location) string {
	start := r.Start.In(loc)
	return fmt.Sprintf("%s, %s (%s)", start.Format("Monday, 02 Jan 2006"), r.Format(loc), loc)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
