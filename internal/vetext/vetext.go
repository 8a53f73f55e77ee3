// Package vetext holds Venezuelan phone, cedula and RIF text helpers plus
// the Spanish salutation rules used across skills.
package vetext

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Venezuela has no DST; the offset is fixed at UTC-4.
var venezuelaTZ = time.FixedZone("VET", -4*60*60)

var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhone canonicalizes a Venezuelan mobile number to the
// "+58 XXX XXXXXXX" form. Accepted inputs after stripping non-digits are
// 58 + 10 digits, 0 + 10 digits, or a bare 10 digits. The function is
// idempotent on its own output.
func NormalizePhone(raw string) (string, error) {
	digits := nonDigits.ReplaceAllString(raw, "")
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "58"):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	case len(digits) == 10:
		// already the national significant number
	default:
		return "", fmt.Errorf("unrecognized phone number %q", raw)
	}
	return fmt.Sprintf("+58 %s %s", digits[:3], digits[3:]), nil
}

// SamePhone reports whether two raw numbers normalize to the same canonical
// form. Unparseable inputs never match anything.
func SamePhone(a, b string) bool {
	na, errA := NormalizePhone(a)
	nb, errB := NormalizePhone(b)
	return errA == nil && errB == nil && na == nb
}

// NormalizeCedula uppercases and strips spaces, dots and dashes from a
// cedula number, e.g. "v 15.128.008" becomes "V15128008".
func NormalizeCedula(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	return strings.NewReplacer(" ", "", ".", "", "-", "").Replace(s)
}

var rifPattern = regexp.MustCompile(`^([VEJGPC])-?(\d{8})-?(\d)?$`)

// NormalizeRIF canonicalizes a RIF to "<letter>-<8 digits>" plus an optional
// "-<check digit>". Valid prefixes are V, E, J, G, P and C.
func NormalizeRIF(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "", ".", "").Replace(s)
	m := rifPattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("unrecognized RIF %q", raw)
	}
	if m[3] == "" {
		return fmt.Sprintf("%s-%s", m[1], m[2]), nil
	}
	return fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3]), nil
}

// ParseCedulaExpiry turns an "MM/YYYY" expiry into the last day of that
// month, which is how the cedula itself states validity.
func ParseCedulaExpiry(raw string) (time.Time, error) {
	t, err := time.Parse("01/2006", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("cedula expiry %q: want MM/YYYY", raw)
	}
	// First day of the next month minus one day.
	return t.AddDate(0, 1, -1), nil
}

// FirstName returns the leading word of a full name, title-cased.
func FirstName(full string) string {
	fields := strings.Fields(strings.TrimSpace(full))
	if len(fields) == 0 {
		return ""
	}
	r := []rune(strings.ToLower(fields[0]))
	return strings.ToUpper(string(r[0])) + string(r[1:])
}

// Greeting returns the Venezuelan time-of-day salutation for t.
func Greeting(t time.Time) string {
	switch h := t.In(venezuelaTZ).Hour(); {
	case h >= 6 && h < 12:
		return "Buenos días"
	case h >= 12 && h < 18:
		return "Buenas tardes"
	default:
		return "Buenas noches"
	}
}
