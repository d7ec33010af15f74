package lexicon

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tokenize lower-cases text, folds diacritics and splits it into word tokens.
// Apostrophes inside a word are kept ("don't"), everything else that is not a
// letter or digit separates tokens.
func Tokenize(text string) []string {
	// transform.Chain carries state; build it per call.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, strings.ToLower(text))
	if err != nil {
		folded = strings.ToLower(text)
	}
	folded = strings.ReplaceAll(folded, "’", "'")

	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// normalizeTerm turns one lexicon line into its canonical token form.
func normalizeTerm(line string) string {
	return strings.Join(Tokenize(line), " ")
}
