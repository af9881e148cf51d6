package event

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName folds an entrant or competition name into its canonical
// comparison form: diacritics stripped, upper-cased, internal whitespace
// collapsed. Two names normalizing equal denote the same participant.
func NormalizeName(name string) string {
	stripped, _, err := transform.String(diacriticStripper, name)
	if err != nil {
		stripped = name
	}
	return strings.Join(strings.Fields(strings.ToUpper(stripped)), " ")
}

// SplitCombinedName breaks a "/"-separated participant field into the
// individual names it packs together. Pairs competitions (golf fourballs,
// doubles rotations) often arrive from listings as one combined field.
func SplitCombinedName(name string) []string {
	parts := strings.Split(name, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
