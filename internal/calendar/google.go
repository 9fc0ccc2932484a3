package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"meeting-agent/internal/scheduling"
)

// GoogleConfig holds the OAuth2 client and the long-lived refresh token of
// the calendar owner.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	RefreshToken string
}

// OAuthConfig builds the OAuth2 configuration used both for the one-time
// consent flow and for refreshing access tokens.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes: []string{
			gcal.CalendarReadonlyScope,
			gcal.CalendarEventsScope,
		},
		Endpoint: google.Endpoint,
	}
}

// GoogleProvider implements Provider on top of the Google Calendar v3 API.
type GoogleProvider struct {
	svc *gcal.Service
	// loc interprets all-day events.
	loc *time.Location
}

// NewGoogleProvider authenticates with the stored refresh token.
// Extra client options are appended after the token source.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig, loc *time.Location, opts ...option.ClientOption) (*GoogleProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, ErrNotConfigured
	}

	ts := OAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURL).
		TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create calendar service")
	}
	return NewGoogleProviderFromService(svc, loc), nil
}

// NewGoogleProviderFromService wraps an already configured service.
func NewGoogleProviderFromService(svc *gcal.Service, loc *time.Location) *GoogleProvider {
	if loc == nil {
		loc = time.UTC
	}
	return &GoogleProvider{svc: svc, loc: loc}
}

func (p *GoogleProvider) FreeBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]scheduling.BusySlot, error) {
	req := &gcal.FreeBusyRequest{
		TimeMin: timeMin.UTC().Format(time.RFC3339),
		TimeMax: timeMax.UTC().Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: calendarID}},
	}

	resp, err := p.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrap(err, "free/busy query failed")
	}

	cal, ok := resp.Calendars[calendarID]
	if !ok {
		return nil, errors.Errorf("calendar %q missing from free/busy response", calendarID)
	}
	if len(cal.Errors) > 0 {
		return nil, errors.Errorf("free/busy query for %q failed: %s", calendarID, cal.Errors[0].Reason)
	}

	busy := make([]scheduling.BusySlot, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			slog.Warn("skipping busy period with invalid start", "start", period.Start, "error", err)
			continue
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			slog.Warn("skipping busy period with invalid end", "end", period.End, "error", err)
			continue
		}
		slot, err := scheduling.NewTimeRange(start, end)
		if err != nil {
			continue
		}
		busy = append(busy, slot)
	}
	return busy, nil
}

func (p *GoogleProvider) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]Event, error) {
	var events []Event
	call := p.svc.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(timeMin.UTC().Format(time.RFC3339)).
		TimeMax(timeMax.UTC().Format(time.RFC3339)).
		MaxResults(250)

	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			events = append(events, p.convertEvent(item))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to retrieve events")
	}
	return events, nil
}

func (p *GoogleProvider) CreateEvent(ctx context.Context, req *EventRequest) (*Event, error) {
	ev := &gcal.Event{
		Summary:     req.Title,
		Description: req.Description,
		Start: &gcal.EventDateTime{
			DateTime: req.Start.Format(time.RFC3339),
			TimeZone: req.TimeZone,
		},
		End: &gcal.EventDateTime{
			DateTime: req.End.Format(time.RFC3339),
			TimeZone: req.TimeZone,
		},
	}
	for _, email := range req.Attendees {
		ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: email})
	}
	if req.WithConference {
		ev.ConferenceData = &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             uuid.NewString(),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		}
	}

	created, err := p.svc.Events.Insert(req.CalendarID, ev).
		ConferenceDataVersion(1).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create event")
	}

	out := p.convertEvent(created)
	return &out, nil
}

func (p *GoogleProvider) convertEvent(item *gcal.Event) Event {
	event := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Status:      item.Status,
		Transparent: item.Transparency == "transparent",
		HTMLLink:    item.HtmlLink,
		MeetLink:    item.HangoutLink,
	}
	if item.ConferenceData != nil {
		for _, ep := range item.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				event.MeetLink = ep.Uri
				break
			}
		}
	}
	event.Start = p.parseEventTime(item.Start)
	event.End = p.parseEventTime(item.End)
	return event
}

// parseEventTime handles both timed events and all-day events, which carry
// only a date and are anchored to local midnight.
func (p *GoogleProvider) parseEventTime(edt *gcal.EventDateTime) time.Time {
	if edt == nil {
		return time.Time{}
	}
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t
		}
	}
	if edt.Date != "" {
		if t, err := time.ParseInLocation("2006-01-02", edt.Date, p.loc); err == nil {
			return t
		}
	}
	return time.Time{}
}
