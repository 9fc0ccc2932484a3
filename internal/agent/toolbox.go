package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"

	"meeting-agent/internal/booking"
	"meeting-agent/internal/calendar"
	"meeting-agent/internal/scheduling"
)

// ToolboxConfig holds the read-only settings shared by every tool call.
type ToolboxConfig struct {
	CalendarID    string
	Hours         scheduling.BusinessHours
	MinFreeWindow time.Duration
	SlotQuery     scheduling.SlotQuery
	// NextAvailabilityWindow bounds both the free/busy query and the scan
	// of getNextAvailability.
	NextAvailabilityWindow time.Duration
	MaxAvailabilitySpan    time.Duration
	ContactEmail           string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Toolbox executes tool calls. It is safe for concurrent use.
type Toolbox struct {
	cfg      ToolboxConfig
	provider calendar.Provider
	bookings *booking.Service
}

// NewToolbox wires the tools to a calendar backend. provider and bookings
// may be nil, in which case the calendar tools answer with the contact
// fallback.
func NewToolbox(provider calendar.Provider, bookings *booking.Service, cfg ToolboxConfig) *Toolbox {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MinFreeWindow <= 0 {
		cfg.MinFreeWindow = scheduling.MinFreeWindow
	}
	if cfg.NextAvailabilityWindow <= 0 {
		cfg.NextAvailabilityWindow = 7 * 24 * time.Hour
	}
	if cfg.MaxAvailabilitySpan <= 0 {
		cfg.MaxAvailabilitySpan = 31 * 24 * time.Hour
	}
	return &Toolbox{cfg: cfg, provider: provider, bookings: bookings}
}

// Result is the outcome of one tool call.
type Result struct {
	Tool   string
	OK     bool
	Output interface{}
}

// JSON renders the output as the tool message content.
func (r Result) JSON() string {
	b, err := json.Marshal(r.Output)
	if err != nil {
		return fmt.Sprintf(`{"success":false,"message":"unable to encode result","error":%q}`, err.Error())
	}
	return string(b)
}

// Window is a time range rendered in the operating zone.
type Window struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// AvailabilityOutput is returned by checkAvailability.
type AvailabilityOutput struct {
	Success      bool                   `json:"success"`
	Message      string                 `json:"message"`
	Days         []scheduling.DayWindow `json:"days"`
	Availability *Window                `json:"availability,omitempty"`
}

// BookingOutput is returned by bookMeeting.
type BookingOutput struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	EventID  string `json:"eventId,omitempty"`
	MeetLink string `json:"meetLink,omitempty"`
}

// WeekdayOutput is returned by getWeekdayDate.
type WeekdayOutput struct {
	Success   bool   `json:"success"`
	Weekday   string `json:"weekday"`
	Sequence  int    `json:"sequence"`
	Date      string `json:"date"`
	Formatted string `json:"formatted"`
}

// NextAvailabilityOutput is returned by getNextAvailability.
type NextAvailabilityOutput struct {
	Success      bool    `json:"success"`
	Message      string  `json:"message"`
	Availability *Window `json:"availability,omitempty"`
}

// FailureOutput is the result of any tool call that did not succeed.
type FailureOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
	// Conflict is set when the slot is taken so the model can offer alternatives.
	Conflict bool `json:"conflict,omitempty"`
}

// Execute runs the named tool with its raw JSON arguments. It never fails:
// every error, including a panic inside the handler, becomes a
// FailureOutput result.
func (t *Toolbox) Execute(ctx context.Context, name, arguments string) (res Result) {
	start := time.Now()
	res = Result{Tool: name}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool panicked",
				"tool", name,
				"panic", r,
				"stack", string(debug.Stack()))
			res.OK = false
			res.Output = FailureOutput{
				Message: t.fallbackMessage("Something went wrong on our side."),
				Error:   fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	out, err := t.dispatch(ctx, name, arguments)
	if err != nil {
		res.Output = t.failure(err)
	} else {
		res.OK = true
		res.Output = out
	}

	slog.Info("tool executed",
		"tool", name,
		"success", res.OK,
		"duration_ms", time.Since(start).Milliseconds())
	return res
}

func (t *Toolbox) dispatch(ctx context.Context, name, arguments string) (interface{}, error) {
	kind, err := ParseToolKind(name)
	if err != nil {
		return nil, err
	}

	switch kind {
	case CheckAvailability:
		var in availabilityInput
		if err := decodeInput(arguments, &in); err != nil {
			return nil, err
		}
		return t.checkAvailability(ctx, in)
	case BookMeeting:
		var in bookingInput
		if err := decodeInput(arguments, &in); err != nil {
			return nil, err
		}
		return t.bookMeeting(ctx, in)
	case GetWeekdayDate:
		var in weekdayInput
		if err := decodeInput(arguments, &in); err != nil {
			return nil, err
		}
		return t.getWeekdayDate(in)
	case GetNextAvailability:
		var in nextAvailabilityInput
		if err := decodeInput(arguments, &in); err != nil {
			return nil, err
		}
		return t.getNextAvailability(ctx)
	}
	return nil, errors.Wrapf(ErrUnknownTool, "%q", name)
}

func (t *Toolbox) checkAvailability(ctx context.Context, in availabilityInput) (*AvailabilityOutput, error) {
	loc := t.cfg.Hours.Location
	start, err := parseDateTime("startDateTime", in.StartDateTime, loc)
	if err != nil {
		return nil, err
	}
	end, err := parseDateTime("endDateTime", in.EndDateTime, loc)
	if err != nil {
		return nil, err
	}
	if _, err := scheduling.NewTimeRange(start, end); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, "startDateTime must be before endDateTime")
	}
	if end.Sub(start) > t.cfg.MaxAvailabilitySpan {
		return nil, errors.Wrapf(ErrInvalidInput, "the period can span at most %d days", int(t.cfg.MaxAvailabilitySpan/(24*time.Hour)))
	}
	if t.provider == nil {
		return nil, calendar.ErrNotConfigured
	}

	if now := t.cfg.Now(); start.Before(now) {
		start = now
	}
	start = t.cfg.Hours.Clamp(start)
	if !start.Before(end) {
		return &AvailabilityOutput{
			Success: true,
			Message: "There are no business hours left in the requested period.",
			Days:    []scheduling.DayWindow{},
		}, nil
	}

	window := scheduling.TimeRange{Start: start.UTC(), End: end.UTC()}
	busy, err := t.provider.FreeBusy(ctx, t.cfg.CalendarID, window.Start, window.End)
	if err != nil {
		return nil, err
	}

	days := scheduling.FreeWindows(t.cfg.Hours, window, busy, t.cfg.MinFreeWindow)
	if days == nil {
		days = []scheduling.DayWindow{}
	}

	period := fmt.Sprintf("between %s and %s",
		start.In(loc).Format("Mon 02 Jan 15:04"),
		end.In(loc).Format("Mon 02 Jan 15:04"))
	msg := fmt.Sprintf("No free windows of at least %d minutes %s.", int(t.cfg.MinFreeWindow.Minutes()), period)
	if len(days) > 0 {
		msg = fmt.Sprintf("Found free windows on %d business day(s) %s (%s).", len(days), period, loc)
	}

	return &AvailabilityOutput{
		Success:      true,
		Message:      msg,
		Days:         days,
		Availability: t.window(window),
	}, nil
}

func (t *Toolbox) bookMeeting(ctx context.Context, in bookingInput) (*BookingOutput, error) {
	loc := t.cfg.Hours.Location
	start, err := parseDateTime("startDateTime", in.StartDateTime, loc)
	if err != nil {
		return nil, err
	}
	end, err := parseDateTime("endDateTime", in.EndDateTime, loc)
	if err != nil {
		return nil, err
	}
	r, err := scheduling.NewTimeRange(start, end)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, "startDateTime must be before endDateTime")
	}
	if t.bookings == nil {
		return nil, calendar.ErrNotConfigured
	}

	res, err := t.bookings.Book(ctx, booking.MeetingRequest{
		Title:       in.Title,
		Description: in.Description,
		Range:       r,
		Attendees:   in.Attendees,
	})
	if err != nil {
		return nil, err
	}
	return &BookingOutput{
		Success:  true,
		Message:  res.Message,
		EventID:  res.EventID,
		MeetLink: res.MeetLink,
	}, nil
}

func (t *Toolbox) getWeekdayDate(in weekdayInput) (*WeekdayOutput, error) {
	wd, err := scheduling.ParseWeekday(in.Weekday)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	sequence := 1
	if in.Sequence != nil {
		sequence = *in.Sequence
	}

	today := t.cfg.Now().In(t.cfg.Hours.Location)
	date, err := scheduling.WeekdayDate(today, wd, sequence)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	return &WeekdayOutput{
		Success:   true,
		Weekday:   wd.String(),
		Sequence:  sequence,
		Date:      date.Format(scheduling.DateLayout),
		Formatted: date.Format("Monday, 02 January 2006"),
	}, nil
}

func (t *Toolbox) getNextAvailability(ctx context.Context) (*NextAvailabilityOutput, error) {
	if t.provider == nil {
		return nil, calendar.ErrNotConfigured
	}

	q := t.cfg.SlotQuery
	if q.Horizon <= 0 || q.Horizon > t.cfg.NextAvailabilityWindow {
		q.Horizon = t.cfg.NextAvailabilityWindow
	}
	if q.Duration <= 0 {
		q.Duration = scheduling.DefaultSlotQuery().Duration
	}

	now := t.cfg.Now()
	busy, err := t.provider.FreeBusy(ctx, t.cfg.CalendarID, now.UTC(), now.Add(q.Horizon+q.Duration).UTC())
	if err != nil {
		return nil, err
	}

	slot, err := scheduling.NextSlot(t.cfg.Hours, now, busy, q)
	if errors.Is(err, scheduling.ErrNoAvailability) {
		return &NextAvailabilityOutput{
			Success: false,
			Message: fmt.Sprintf("No availability found in the next %d days. %s",
				int(q.Horizon/(24*time.Hour)), t.contactHint()),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	return &NextAvailabilityOutput{
		Success:      true,
		Message:      "The next available slot is " + booking.Describe(slot, t.cfg.Hours.Location) + ".",
		Availability: t.window(slot),
	}, nil
}

func (t *Toolbox) window(r scheduling.TimeRange) *Window {
	loc := t.cfg.Hours.Location
	return &Window{
		Start: r.Start.In(loc).Format(time.RFC3339),
		End:   r.End.In(loc).Format(time.RFC3339),
	}
}

// failure turns a handler error into the result the model sees.
func (t *Toolbox) failure(err error) FailureOutput {
	out := FailureOutput{Error: err.Error()}

	switch {
	case errors.Is(err, calendar.ErrNotConfigured):
		out.Message = t.fallbackMessage("Online scheduling is not available right now.")
	case errors.Is(err, booking.ErrConflict):
		out.Conflict = true
		out.Message = "That time conflicts with an existing event. Check availability and propose another slot."
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		out.Message = "The request was cancelled before it completed."
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnknownTool),
		errors.Is(err, scheduling.ErrInvalidRange),
		errors.Is(err, scheduling.ErrOutsideBusinessHours),
		errors.Is(err, scheduling.ErrSpansMultipleDays),
		errors.Is(err, booking.ErrInvalidRequest),
		errors.Is(err, booking.ErrInvalidAttendee),
		errors.Is(err, booking.ErrInPast):
		out.Message = err.Error()
	default:
		slog.Warn("calendar backend call failed", "error", err)
		out.Message = t.fallbackMessage("The calendar could not be reached.")
	}
	return out
}

// Fallback is the canned answer used when the conversation cannot go on.
func (t *Toolbox) Fallback() string {
	return t.fallbackMessage("Sorry, I could not complete your request right now.")
}

func (t *Toolbox) fallbackMessage(lead string) string {
	return lead + " " + t.contactHint()
}

func (t *Toolbox) contactHint() string {
	if t.cfg.ContactEmail == "" {
		return "Please contact us directly."
	}
	return "Please contact us directly at " + t.cfg.ContactEmail + "."
}

// Now returns the toolbox clock in the operating zone.
func (t *Toolbox) Now() time.Time {
	return t.cfg.Now().In(t.cfg.Hours.Location)
}

// Hours returns the operating window policy.
func (t *Toolbox) Hours() scheduling.BusinessHours {
	return t.cfg.Hours
}
