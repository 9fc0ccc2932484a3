package scheduling

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var brt = time.FixedZone("BRT", -3*60*60)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.January, day, hour, minute, 0, 0, brt)
}

func rng(t *testing.T, start, end time.Time) TimeRange {
	t.Helper()
	r, err := NewTimeRange(start, end)
	require.NoError(t, err)
	return r
}

func TestNewTimeRange(t *testing.T) {
	_, err := NewTimeRange(at(14, 10, 0), at(14, 10, 0))
	assert.True(t, errors.Is(err, ErrInvalidRange))

	r, err := NewTimeRange(at(14, 10, 0), at(14, 11, 0))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, r.Start.Location())
	assert.Equal(t, time.Hour, r.Duration())
}

func TestTimeRange_Overlaps(t *testing.T) {
	a := rng(t, at(14, 10, 0), at(14, 11, 0))

	assert.True(t, a.Overlaps(rng(t, at(14, 10, 30), at(14, 11, 30))))
	assert.True(t, a.Overlaps(rng(t, at(14, 9, 0), at(14, 12, 0))))
	assert.False(t, a.Overlaps(rng(t, at(14, 11, 0), at(14, 12, 0))), "touching ranges do not overlap")
	assert.False(t, a.Overlaps(rng(t, at(14, 8, 0), at(14, 10, 0))))
}

func TestBusinessHours_Validate(t *testing.T) {
	h := DefaultBusinessHours(brt)

	tests := []struct {
		name    string
		start   time.Time
		end     time.Time
		wantErr error
	}{
		{"inside", at(14, 10, 0), at(14, 11, 0), nil},
		{"full day", at(14, 9, 0), at(14, 18, 0), nil},
		{"ends at close", at(14, 17, 0), at(14, 18, 0), nil},
		{"starts before open", at(14, 8, 30), at(14, 9, 30), ErrOutsideBusinessHours},
		{"ends after close", at(14, 17, 30), at(14, 18, 30), ErrOutsideBusinessHours},
		{"saturday", at(11, 10, 0), at(11, 11, 0), ErrOutsideBusinessHours},
		{"sunday", at(12, 10, 0), at(12, 11, 0), ErrOutsideBusinessHours},
		{"two days", at(14, 17, 0), at(15, 10, 0), ErrSpansMultipleDays},
		{"inverted", at(14, 11, 0), at(14, 10, 0), ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Validate(TimeRange{Start: tt.start.UTC(), End: tt.end.UTC()})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestBusinessHours_Clamp(t *testing.T) {
	h := DefaultBusinessHours(brt)

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"inside stays", at(14, 10, 15), at(14, 10, 15)},
		{"before open", at(14, 7, 0), at(14, 9, 0)},
		{"at close", at(14, 18, 0), at(15, 9, 0)},
		{"evening", at(14, 21, 0), at(15, 9, 0)},
		{"friday evening skips weekend", at(10, 19, 0), at(13, 9, 0)},
		{"saturday", at(11, 12, 0), at(13, 9, 0)},
		{"sunday early", at(12, 1, 0), at(13, 9, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := h.Clamp(tt.in)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestNewBusinessHours(t *testing.T) {
	_, err := NewBusinessHours(brt, 18, 9)
	assert.Error(t, err)
	_, err = NewBusinessHours(nil, 9, 18)
	assert.Error(t, err)
	h, err := NewBusinessHours(brt, 8, 17)
	require.NoError(t, err)
	assert.Equal(t, 8, h.OpenHour)
}

func TestFreeWindows_TuesdayScenario(t *testing.T) {
	h := DefaultBusinessHours(brt)
	window := rng(t, at(14, 0, 0), at(14, 23, 59))
	busy := []BusySlot{
		rng(t, at(14, 14, 0), at(14, 14, 30)),
		rng(t, at(14, 10, 0), at(14, 11, 0)),
	}

	days := FreeWindows(h, window, busy, MinFreeWindow)
	require.Len(t, days, 1)
	assert.Equal(t, "2025-01-14", days[0].Date)
	assert.Equal(t, "Tuesday", days[0].DayName)
	assert.Equal(t, []string{"09:00 - 10:00", "11:00 - 14:00", "14:30 - 18:00"}, days[0].Windows)
}

func TestFreeWindows_EmptyBusy(t *testing.T) {
	h := DefaultBusinessHours(brt)
	// Monday 13th through Friday 17th.
	days := FreeWindows(h, rng(t, at(13, 0, 0), at(17, 23, 0)), nil, MinFreeWindow)
	require.Len(t, days, 5)
	for _, d := range days {
		require.Len(t, d.Free, 1)
		assert.Equal(t, []string{"09:00 - 18:00"}, d.Windows)
		assert.Equal(t, 9*time.Hour, d.Free[0].Duration())
	}
}

func TestFreeWindows_ClipsFirstAndLastDay(t *testing.T) {
	h := DefaultBusinessHours(brt)
	days := FreeWindows(h, rng(t, at(14, 13, 0), at(15, 11, 0)), nil, MinFreeWindow)
	require.Len(t, days, 2)
	assert.Equal(t, []string{"13:00 - 18:00"}, days[0].Windows)
	assert.Equal(t, []string{"09:00 - 11:00"}, days[1].Windows)
}

func TestFreeWindows_MidnightDSTTransition(t *testing.T) {
	// Santiago skips 2025-09-07 00:00, so that day starts at 01:00.
	scl, err := time.LoadLocation("America/Santiago")
	require.NoError(t, err)
	h := DefaultBusinessHours(scl)

	window := rng(t,
		time.Date(2025, time.September, 6, 0, 0, 0, 0, scl),
		time.Date(2025, time.September, 12, 18, 0, 0, 0, scl))
	days := FreeWindows(h, window, nil, MinFreeWindow)

	require.Len(t, days, 5)
	assert.Equal(t, "2025-09-08", days[0].Date)
	assert.Equal(t, "2025-09-12", days[4].Date)
	assert.Equal(t, "Friday", days[4].DayName)
	assert.Equal(t, []string{"09:00 - 18:00"}, days[4].Windows)
}

func TestFreeWindows_Weekend(t *testing.T) {
	h := DefaultBusinessHours(brt)
	days := FreeWindows(h, rng(t, at(11, 0, 0), at(12, 23, 0)), nil, MinFreeWindow)
	assert.Empty(t, days)
}

func TestFreeWindows_DropsShortGapsAndFullDays(t *testing.T) {
	h := DefaultBusinessHours(brt)
	busy := []BusySlot{
		// Tuesday: only a 20 minute gap remains.
		rng(t, at(14, 9, 0), at(14, 12, 0)),
		rng(t, at(14, 12, 20), at(14, 18, 0)),
		// Wednesday fully booked by overlapping slots.
		rng(t, at(15, 8, 0), at(15, 13, 0)),
		rng(t, at(15, 12, 0), at(15, 19, 0)),
	}
	days := FreeWindows(h, rng(t, at(14, 0, 0), at(15, 23, 0)), busy, MinFreeWindow)
	assert.Empty(t, days)
}

func TestFreeRanges_PartitionsEffectiveWindow(t *testing.T) {
	h := DefaultBusinessHours(brt)
	effective := h.Day(at(14, 12, 0))
	busy := SortBusy([]BusySlot{
		rng(t, at(14, 15, 0), at(14, 16, 30)),
		rng(t, at(14, 9, 30), at(14, 10, 0)),
		rng(t, at(14, 12, 0), at(14, 13, 0)),
	})

	free := FreeRanges(effective, busy, MinFreeWindow)

	total := time.Duration(0)
	for _, f := range free {
		total += f.Duration()
		for _, b := range busy {
			assert.False(t, f.Overlaps(b))
		}
	}
	for _, b := range busy {
		total += b.Duration()
	}
	assert.Equal(t, effective.Duration(), total)
}

func TestNextSlot(t *testing.T) {
	h := DefaultBusinessHours(brt)
	q := DefaultSlotQuery()

	t.Run("tomorrow morning when free", func(t *testing.T) {
		got, err := NextSlot(h, at(14, 15, 0), nil, q)
		require.NoError(t, err)
		assert.True(t, at(15, 9, 0).Equal(got.Start))
		assert.True(t, at(15, 10, 0).Equal(got.End))
	})

	t.Run("skips weekend", func(t *testing.T) {
		got, err := NextSlot(h, at(10, 12, 0), nil, q)
		require.NoError(t, err)
		assert.True(t, at(13, 9, 0).Equal(got.Start))
	})

	t.Run("steps around busy slots", func(t *testing.T) {
		busy := []BusySlot{
			rng(t, at(15, 9, 0), at(15, 10, 0)),
			rng(t, at(15, 10, 30), at(15, 11, 0)),
		}
		got, err := NextSlot(h, at(14, 15, 0), busy, q)
		require.NoError(t, err)
		assert.True(t, at(15, 11, 0).Equal(got.Start), "got %s", got.Start.In(brt))
	})

	t.Run("moves to next day when the day is full", func(t *testing.T) {
		busy := []BusySlot{rng(t, at(15, 9, 0), at(15, 17, 30))}
		got, err := NextSlot(h, at(14, 15, 0), busy, q)
		require.NoError(t, err)
		assert.True(t, at(16, 9, 0).Equal(got.Start))
	})

	t.Run("no availability inside horizon", func(t *testing.T) {
		busy := []BusySlot{rng(t, at(1, 0, 0), at(31, 0, 0))}
		_, err := NextSlot(h, at(14, 15, 0), busy, q)
		assert.True(t, errors.Is(err, ErrNoAvailability))
	})

	t.Run("never overlaps and stays inside business hours", func(t *testing.T) {
		busy := []BusySlot{
			rng(t, at(15, 9, 0), at(15, 12, 0)),
			rng(t, at(15, 11, 45), at(15, 17, 15)),
			rng(t, at(16, 9, 30), at(16, 10, 15)),
		}
		got, err := NextSlot(h, at(14, 15, 0), busy, q)
		require.NoError(t, err)
		assert.True(t, h.Contains(got))
		for _, b := range busy {
			assert.False(t, got.Overlaps(b))
		}
	})
}

func TestWeekdayDate(t *testing.T) {
	wednesday := at(15, 10, 0)

	got, err := WeekdayDate(wednesday, time.Monday, 1)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-20", got.Format(DateLayout))

	got, err = WeekdayDate(wednesday, time.Monday, 2)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-27", got.Format(DateLayout))

	got, err = WeekdayDate(wednesday, time.Wednesday, 1)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-22", got.Format(DateLayout))

	_, err = WeekdayDate(wednesday, time.Monday, 0)
	assert.Error(t, err)
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"monday":       time.Monday,
		" Monday ":     time.Monday,
		"Terça":        time.Tuesday,
		"terça-feira":  time.Tuesday,
		"SÁBADO":       time.Saturday,
		"fri":          time.Friday,
		"quinta-feira": time.Thursday,
	} {
		got, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseWeekday("someday")
	assert.Error(t, err)
}
