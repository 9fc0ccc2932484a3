// Package invite renders booked meetings as iCalendar documents.
package invite

import (
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/pkg/errors"

	"meeting-agent/internal/store"
)

const productID = "-//Kodano//meeting-agent//EN"

// Render writes b as a single-event calendar. All times are UTC.
func Render(w io.Writer, b store.Booking, organizer string) error {
	if b.EventID == "" && b.ID == "" {
		return errors.New("booking has no identifier")
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropMethod, "PUBLISH")

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uid(b))
	stamp := b.CreatedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	event.Props.SetDateTime(ical.PropDateTimeStart, b.StartAtUTC.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, b.EndAtUTC.UTC())
	event.Props.SetText(ical.PropSummary, b.Title)
	event.Props.SetText(ical.PropStatus, "CONFIRMED")
	if b.Description != "" {
		event.Props.SetText(ical.PropDescription, b.Description)
	}
	if b.MeetLink != "" {
		event.Props.SetText(ical.PropLocation, b.MeetLink)
		event.Props.SetText(ical.PropURL, b.MeetLink)
	}

	if organizer != "" {
		prop := ical.NewProp(ical.PropOrganizer)
		prop.Value = mailto(organizer)
		event.Props.Set(prop)
	}
	for _, email := range b.Attendees {
		prop := ical.NewProp(ical.PropAttendee)
		prop.Value = mailto(email)
		prop.Params.Set(ical.ParamRole, "REQ-PARTICIPANT")
		prop.Params.Set(ical.ParamParticipationStatus, "NEEDS-ACTION")
		event.Props.Add(prop)
	}

	cal.Children = append(cal.Children, event.Component)

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return errors.Wrap(err, "failed to encode invite")
	}
	return nil
}

// Filename returns a download name for the booking invite.
func Filename(b store.Booking) string {
	return "meeting-" + uid(b) + ".ics"
}

func uid(b store.Booking) string {
	if b.EventID != "" {
		return b.EventID
	}
	return b.ID
}

func mailto(email string) string {
	email = strings.TrimSpace(email)
	if strings.HasPrefix(strings.ToLower(email), "mailto:") {
		return email
	}
	return "mailto:" + email
}
