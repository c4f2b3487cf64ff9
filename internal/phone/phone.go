// Package phone validates and canonicalizes customer phone numbers.
// Numbers without a country code are read as US numbers.
package phone

import (
	"github.com/nyaruka/phonenumbers"
)

const DefaultRegion = "US"

// Validate reports whether raw parses to a valid number.
func Validate(raw string) bool {
	num, err := phonenumbers.Parse(raw, DefaultRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(num)
}

// Normalize returns the E.164 form of raw, or raw unchanged when it does not
// parse to a valid number.
func Normalize(raw string) string {
	return formatAs(raw, phonenumbers.E164)
}

// Format returns the national display form, e.g. (212) 867-5309.
func Format(raw string) string {
	return formatAs(raw, phonenumbers.NATIONAL)
}

func formatAs(raw string, f phonenumbers.PhoneNumberFormat) string {
	num, err := phonenumbers.Parse(raw, DefaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return raw
	}
	return phonenumbers.Format(num, f)
}

// Mask hides everything but the last four digits.
func Mask(p string) string {
	if len(p) < 4 {
		return p
	}
	return "***-***-" + p[len(p)-4:]
}
