// Package privacy masks personal data before shopper text reaches logs.
package privacy

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
)

// Redact masks email addresses, card numbers and phone numbers. Cards are
// masked before phones so long digit runs are labelled as cards.
func Redact(input string) (string, bool) {
	out := input
	changed := false
	for _, r := range []struct {
		re   *regexp.Regexp
		mask string
	}{
		{emailPattern, "[REDACTED_EMAIL]"},
		{cardPattern, "[REDACTED_CARD]"},
		{phonePattern, "[REDACTED_PHONE]"},
	} {
		next := r.re.ReplaceAllString(out, r.mask)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// String is Redact without the changed flag, for log attributes.
func String(input string) string {
	out, _ := Redact(input)
	return out
}
