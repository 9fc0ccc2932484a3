package booking

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// ErrInvalidAttendee is returned for attendee entries that are not e-mail addresses.
var ErrInvalidAttendee = errors.New("invalid attendee e-mail")

var validate = validator.New()

// MergeAttendees combines the default attendees with a caller supplied
// list separated by commas, semicolons or whitespace. Addresses are
// compared case-insensitively and each appears once, defaults first,
// keeping the spelling of its first occurrence.
func MergeAttendees(defaults []string, supplied string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string

	add := func(email string) error {
		email = strings.TrimSpace(email)
		if email == "" {
			return nil
		}
		if err := validate.Var(email, "email"); err != nil {
			return errors.Wrapf(ErrInvalidAttendee, "%q", email)
		}
		key := strings.ToLower(email)
		if _, ok := seen[key]; ok {
			return nil
		}
		seen[key] = struct{}{}
		out = append(out, email)
		return nil
	}

	for _, email := range defaults {
		if err := add(email); err != nil {
			return nil, err
		}
	}
	for _, email := range strings.FieldsFunc(supplied, isSeparator) {
		if err := add(email); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func isSeparator(r rune) bool {
	switch r {
	case ',', ';', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
