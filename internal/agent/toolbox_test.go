package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meeting-agent/internal/booking"
	"meeting-agent/internal/calendar"
	"meeting-agent/internal/scheduling"
)

var brt = time.FixedZone("BRT", -3*60*60)

// Monday, 13 Jan 2025, 12:00 local.
var testNow = time.Date(2025, time.January, 13, 12, 0, 0, 0, brt)

func at(day, hour, min int) time.Time {
	return time.Date(2025, time.January, day, hour, min, 0, 0, brt)
}

type fakeProvider struct {
	busy        []scheduling.BusySlot
	events      []calendar.Event
	freeBusyErr error
	panics      bool

	queriedMin, queriedMax time.Time
	created                []*calendar.EventRequest
}

func (f *fakeProvider) FreeBusy(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]scheduling.BusySlot, error) {
	if f.panics {
		panic("backend exploded")
	}
	f.queriedMin, f.queriedMax = timeMin, timeMax
	return f.busy, f.freeBusyErr
}

func (f *fakeProvider) ListEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]calendar.Event, error) {
	return f.events, nil
}

func (f *fakeProvider) CreateEvent(ctx context.Context, req *calendar.EventRequest) (*calendar.Event, error) {
	f.created = append(f.created, req)
	return &calendar.Event{ID: "evt-42", Start: req.Start, End: req.End, MeetLink: "https://meet.example/abc"}, nil
}

func busySlot(start, end time.Time) scheduling.BusySlot {
	return scheduling.BusySlot{Start: start.UTC(), End: end.UTC()}
}

func testToolboxConfig() ToolboxConfig {
	return ToolboxConfig{
		CalendarID:             "primary",
		Hours:                  scheduling.DefaultBusinessHours(brt),
		SlotQuery:              scheduling.DefaultSlotQuery(),
		NextAvailabilityWindow: 7 * 24 * time.Hour,
		ContactEmail:           "contato@kodano.com.br",
		Now:                    func() time.Time { return testNow },
	}
}

func newTestToolbox(p *fakeProvider) *Toolbox {
	cfg := testToolboxConfig()
	if p == nil {
		return NewToolbox(nil, nil, cfg)
	}
	svc := booking.NewService(p, nil, booking.Options{
		CalendarID:       cfg.CalendarID,
		Hours:            cfg.Hours,
		DefaultAttendees: []string{"contato@kodano.com.br"},
		Now:              cfg.Now,
	})
	return NewToolbox(p, svc, cfg)
}

func mustJSON(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func failureOf(t *testing.T, res Result) FailureOutput {
	t.Helper()
	require.False(t, res.OK, "expected a failed tool call, got %s", res.JSON())
	out, ok := res.Output.(FailureOutput)
	require.True(t, ok, "unexpected output type %T", res.Output)
	assert.False(t, out.Success)
	return out
}

func TestToolKind(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range AllTools() {
		name := k.String()
		assert.NotEqual(t, "unknown", name)
		assert.False(t, seen[name], "duplicate tool name %s", name)
		seen[name] = true

		parsed, err := ParseToolKind(name)
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
		assert.NotEmpty(t, k.Description())
	}

	_, err := ParseToolKind("deleteEverything")
	assert.True(t, errors.Is(err, ErrUnknownTool))
}

func TestDefinitions(t *testing.T) {
	defs := Definitions()
	require.Len(t, defs, len(AllTools()))
	for i, def := range defs {
		assert.Equal(t, AllTools()[i].String(), def.Name)
		assert.True(t, json.Valid(def.Parameters), def.Name)

		var schema map[string]interface{}
		require.NoError(t, json.Unmarshal(def.Parameters, &schema))
		assert.Equal(t, "object", schema["type"])
	}
}

func TestToolbox_DispatchCoversEveryTool(t *testing.T) {
	tb := newTestToolbox(&fakeProvider{})
	for _, k := range AllTools() {
		_, err := tb.dispatch(context.Background(), k.String(), "{}")
		assert.False(t, errors.Is(err, ErrUnknownTool), "%s has no handler", k)
	}
}

func TestToolbox_UnknownTool(t *testing.T) {
	res := newTestToolbox(&fakeProvider{}).Execute(context.Background(), "cancelMeeting", "{}")
	out := failureOf(t, res)
	assert.Contains(t, out.Error, "unknown tool")
}

func TestToolbox_CheckAvailability(t *testing.T) {
	t.Run("free windows around busy slots", func(t *testing.T) {
		p := &fakeProvider{busy: []scheduling.BusySlot{
			busySlot(at(14, 12, 0), at(14, 12, 20)),
			busySlot(at(14, 10, 0), at(14, 11, 0)),
		}}
		res := newTestToolbox(p).Execute(context.Background(), "checkAvailability", mustJSON(t, map[string]string{
			"startDateTime": "2025-01-14T09:00:00-03:00",
			"endDateTime":   "2025-01-14T18:00:00-03:00",
		}))
		require.True(t, res.OK, res.JSON())

		out := res.Output.(*AvailabilityOutput)
		assert.True(t, out.Success)
		require.Len(t, out.Days, 1)
		assert.Equal(t, "2025-01-14", out.Days[0].Date)
		assert.Equal(t, "Tuesday", out.Days[0].DayName)
		assert.Equal(t, []string{"09:00 - 10:00", "11:00 - 12:00", "12:20 - 18:00"}, out.Days[0].Windows)
		assert.Equal(t, &Window{Start: "2025-01-14T09:00:00-03:00", End: "2025-01-14T18:00:00-03:00"}, out.Availability)
		assert.True(t, at(14, 9, 0).Equal(p.queriedMin))
	})

	t.Run("past start moves to now and local times are accepted", func(t *testing.T) {
		p := &fakeProvider{}
		res := newTestToolbox(p).Execute(context.Background(), "checkAvailability",
			`{"startDateTime":"2025-01-13T08:00","endDateTime":"2025-01-13T18:00"}`)
		require.True(t, res.OK, res.JSON())

		out := res.Output.(*AvailabilityOutput)
		assert.Equal(t, "2025-01-13T12:00:00-03:00", out.Availability.Start)
		require.Len(t, out.Days, 1)
		assert.Equal(t, []string{"12:00 - 18:00"}, out.Days[0].Windows)
	})

	t.Run("weekend only period", func(t *testing.T) {
		res := newTestToolbox(&fakeProvider{}).Execute(context.Background(), "checkAvailability",
			`{"startDateTime":"2025-01-18T09:00:00-03:00","endDateTime":"2025-01-19T18:00:00-03:00"}`)
		require.True(t, res.OK, res.JSON())
		out := res.Output.(*AvailabilityOutput)
		assert.Empty(t, out.Days)
		assert.Contains(t, res.JSON(), `"days":[]`)
	})

	t.Run("inverted range", func(t *testing.T) {
		out := failureOf(t, newTestToolbox(&fakeProvider{}).Execute(context.Background(), "checkAvailability",
			`{"startDateTime":"2025-01-14T18:00:00-03:00","endDateTime":"2025-01-14T09:00:00-03:00"}`))
		assert.Contains(t, out.Message, "before")
	})

	t.Run("span too long", func(t *testing.T) {
		out := failureOf(t, newTestToolbox(&fakeProvider{}).Execute(context.Background(), "checkAvailability",
			`{"startDateTime":"2025-01-14T09:00:00-03:00","endDateTime":"2025-03-14T09:00:00-03:00"}`))
		assert.Contains(t, out.Message, "31 days")
	})

	t.Run("malformed date", func(t *testing.T) {
		out := failureOf(t, newTestToolbox(&fakeProvider{}).Execute(context.Background(), "checkAvailability",
			`{"startDateTime":"next tuesday","endDateTime":"2025-01-14T09:00:00-03:00"}`))
		assert.Contains(t, out.Message, "startDateTime")
	})

	t.Run("missing field", func(t *testing.T) {
		out := failureOf(t, newTestToolbox(&fakeProvider{}).Execute(context.Background(), "checkAvailability",
			`{"startDateTime":"2025-01-14T09:00:00-03:00"}`))
		assert.Contains(t, out.Message, "endDateTime is required")
	})

	t.Run("backend failure", func(t *testing.T) {
		p := &fakeProvider{freeBusyErr: errors.New("googleapi: Error 503")}
		out := failureOf(t, newTestToolbox(p).Execute(context.Background(), "checkAvailability",
			`{"startDateTime":"2025-01-14T09:00:00-03:00","endDateTime":"2025-01-14T18:00:00-03:00"}`))
		assert.Contains(t, out.Message, "contato@kodano.com.br")
		assert.Contains(t, out.Error, "503")
	})
}

func TestToolbox_BookMeeting(t *testing.T) {
	args := func(start, end string) string {
		return mustJSON(t, map[string]string{
			"title":         "Website redesign",
			"description":   "Scope call",
			"startDateTime": start,
			"endDateTime":   end,
			"attendees":     "Contato@Kodano.com.br, ana@example.com",
		})
	}

	t.Run("success", func(t *testing.T) {
		p := &fakeProvider{}
		res := newTestToolbox(p).Execute(context.Background(), "bookMeeting",
			args("2025-01-14T10:00:00-03:00", "2025-01-14T11:00:00-03:00"))
		require.True(t, res.OK, res.JSON())

		out := res.Output.(*BookingOutput)
		assert.True(t, out.Success)
		assert.Equal(t, "evt-42", out.EventID)
		assert.Equal(t, "https://meet.example/abc", out.MeetLink)
		require.Len(t, p.created, 1)
		assert.Equal(t, []string{"contato@kodano.com.br", "ana@example.com"}, p.created[0].Attendees)
	})

	t.Run("conflict is reported distinctly", func(t *testing.T) {
		p := &fakeProvider{events: []calendar.Event{
			{ID: "x", Status: "confirmed", Start: at(14, 10, 30), End: at(14, 11, 30)},
		}}
		out := failureOf(t, newTestToolbox(p).Execute(context.Background(), "bookMeeting",
			args("2025-01-14T10:00:00-03:00", "2025-01-14T11:00:00-03:00")))
		assert.True(t, out.Conflict)
		assert.Empty(t, p.created)
	})

	t.Run("outside business hours", func(t *testing.T) {
		p := &fakeProvider{}
		out := failureOf(t, newTestToolbox(p).Execute(context.Background(), "bookMeeting",
			args("2025-01-14T17:30:00-03:00", "2025-01-14T18:30:00-03:00")))
		assert.Contains(t, out.Message, "between 09:00 and 18:00")
		assert.Empty(t, p.created)
	})

	t.Run("spans two days", func(t *testing.T) {
		out := failureOf(t, newTestToolbox(&fakeProvider{}).Execute(context.Background(), "bookMeeting",
			args("2025-01-14T17:00:00-03:00", "2025-01-15T10:00:00-03:00")))
		assert.False(t, out.Conflict)
		assert.NotEmpty(t, out.Message)
	})

	t.Run("weekend", func(t *testing.T) {
		out := failureOf(t, newTestToolbox(&fakeProvider{}).Execute(context.Background(), "bookMeeting",
			args("2025-01-18T10:00:00-03:00", "2025-01-18T11:00:00-03:00")))
		assert.Contains(t, out.Message, "Saturday")
	})

	t.Run("invalid attendee", func(t *testing.T) {
		out := failureOf(t, newTestToolbox(&fakeProvider{}).Execute(context.Background(), "bookMeeting",
			`{"title":"x","description":"","startDateTime":"2025-01-14T10:00:00-03:00","endDateTime":"2025-01-14T11:00:00-03:00","attendees":"bob"}`))
		assert.Contains(t, out.Message, "bob")
	})

	t.Run("cancelled context never commits", func(t *testing.T) {
		p := &fakeProvider{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		out := failureOf(t, newTestToolbox(p).Execute(ctx, "bookMeeting",
			args("2025-01-14T10:00:00-03:00", "2025-01-14T11:00:00-03:00")))
		assert.Contains(t, out.Message, "cancelled")
		assert.Empty(t, p.created)
	})
}

func TestToolbox_GetWeekdayDate(t *testing.T) {
	tb := newTestToolbox(&fakeProvider{})
	cases := []struct {
		args string
		date string
		seq  int
	}{
		{`{"weekday":"friday"}`, "2025-01-17", 1},
		{`{"weekday":"Segunda-feira","sequence":1}`, "2025-01-20", 1},
		{`{"weekday":"fri","sequence":2}`, "2025-01-24", 2},
		{`{"weekday":"terça"}`, "2025-01-14", 1},
	}
	for _, tc := range cases {
		res := tb.Execute(context.Background(), "getWeekdayDate", tc.args)
		require.True(t, res.OK, res.JSON())
		out := res.Output.(*WeekdayOutput)
		assert.Equal(t, tc.date, out.Date, tc.args)
		assert.Equal(t, tc.seq, out.Sequence, tc.args)
	}

	out := failureOf(t, tb.Execute(context.Background(), "getWeekdayDate", `{"weekday":"friday","sequence":0}`))
	assert.Contains(t, out.Message, "sequence must be at least 1")

	out = failureOf(t, tb.Execute(context.Background(), "getWeekdayDate", `{"weekday":"blursday"}`))
	assert.Contains(t, out.Message, "blursday")

	out = failureOf(t, tb.Execute(context.Background(), "getWeekdayDate", `{"weekday":"friday","when":"soon"}`))
	assert.Contains(t, out.Message, "unknown field")
}

func TestToolbox_GetNextAvailability(t *testing.T) {
	t.Run("first free slot", func(t *testing.T) {
		p := &fakeProvider{busy: []scheduling.BusySlot{busySlot(at(14, 9, 0), at(14, 10, 30))}}
		res := newTestToolbox(p).Execute(context.Background(), "getNextAvailability", "")
		require.True(t, res.OK, res.JSON())

		out := res.Output.(*NextAvailabilityOutput)
		assert.True(t, out.Success)
		assert.Equal(t, "2025-01-14T10:30:00-03:00", out.Availability.Start)
		assert.Equal(t, "2025-01-14T11:30:00-03:00", out.Availability.End)
		assert.Contains(t, out.Message, "Tuesday")
		assert.True(t, testNow.Add(7*24*time.Hour+time.Hour).Equal(p.queriedMax))
	})

	t.Run("fully booked week", func(t *testing.T) {
		p := &fakeProvider{busy: []scheduling.BusySlot{busySlot(testNow, testNow.Add(30*24*time.Hour))}}
		res := newTestToolbox(p).Execute(context.Background(), "getNextAvailability", "{}")
		require.True(t, res.OK, res.JSON())

		out := res.Output.(*NextAvailabilityOutput)
		assert.False(t, out.Success)
		assert.Nil(t, out.Availability)
		assert.Contains(t, out.Message, "No availability found in the next 7 days")
	})

	t.Run("rejects arguments", func(t *testing.T) {
		failureOf(t, newTestToolbox(&fakeProvider{}).Execute(context.Background(), "getNextAvailability", `{"days":3}`))
	})
}

func TestToolbox_NotConfigured(t *testing.T) {
	tb := newTestToolbox(nil)
	calls := map[string]string{
		"checkAvailability":   `{"startDateTime":"2025-01-14T09:00:00-03:00","endDateTime":"2025-01-14T18:00:00-03:00"}`,
		"bookMeeting":         `{"title":"x","description":"y","startDateTime":"2025-01-14T10:00:00-03:00","endDateTime":"2025-01-14T11:00:00-03:00"}`,
		"getNextAvailability": `{}`,
	}
	for name, args := range calls {
		out := failureOf(t, tb.Execute(context.Background(), name, args))
		assert.Contains(t, out.Message, "contact us directly at contato@kodano.com.br", name)
	}

	res := tb.Execute(context.Background(), "getWeekdayDate", `{"weekday":"friday"}`)
	assert.True(t, res.OK)
}

func TestToolbox_RecoversPanics(t *testing.T) {
	res := newTestToolbox(&fakeProvider{panics: true}).Execute(context.Background(), "getNextAvailability", "{}")
	out := failureOf(t, res)
	assert.Contains(t, out.Error, "backend exploded")
	assert.Contains(t, res.JSON(), `"success":false`)
}
