package scheduling

import (
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday, "domingo": time.Sunday, "dom": time.Sunday,
	"monday": time.Monday, "mon": time.Monday, "segunda": time.Monday, "segunda-feira": time.Monday, "seg": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday, "terca": time.Tuesday, "terca-feira": time.Tuesday, "ter": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "quarta": time.Wednesday, "quarta-feira": time.Wednesday, "qua": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday, "quinta": time.Thursday, "quinta-feira": time.Thursday, "qui": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "sexta": time.Friday, "sexta-feira": time.Friday, "sex": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "sabado": time.Saturday, "sab": time.Saturday,
}

// ParseWeekday accepts English and Portuguese weekday names and common
// abbreviations, ignoring case and accents.
func ParseWeekday(name string) (time.Weekday, error) {
	key := strings.ToLower(strings.TrimSpace(stripAccents(name)))
	if wd, ok := weekdayNames[key]; ok {
		return wd, nil
	}
	return 0, errors.Errorf("unknown weekday %q", name)
}

// WeekdayDate returns local midnight of the sequence-th occurrence of
// weekday strictly after today's date. Asking for today's weekday with
// sequence 1 yields the date one week ahead.
func WeekdayDate(today time.Time, weekday time.Weekday, sequence int) (time.Time, error) {
	if sequence < 1 {
		return time.Time{}, errors.Errorf("sequence must be a positive integer, got %d", sequence)
	}
	ahead := (int(weekday) - int(today.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	ahead += 7 * (sequence - 1)
	return time.Date(today.Year(), today.Month(), today.Day()+ahead, 0, 0, 0, 0, today.Location()), nil
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
