package caption

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// normalizePunctuation is the fixed set of characters replaced by a space
// before comparing caption text.
const normalizePunctuation = `.,!?;:'"-`

var punctuationReplacer = func() *strings.Replacer {
	pairs := make([]string, 0, 2*len(normalizePunctuation))
	for _, r := range normalizePunctuation {
		pairs = append(pairs, string(r), " ")
	}
	return strings.NewReplacer(pairs...)
}()

// Normalize returns the comparison form of caption text: lowercased, with the
// punctuation set . , ! ? ; : ' " - replaced by spaces, whitespace runs
// collapsed to one space and the ends trimmed. It is only used for equality
// checks and is never displayed.
func Normalize(text string) string {
	lowered := cases.Lower(language.Und).String(text)
	return strings.Join(strings.Fields(punctuationReplacer.Replace(lowered)), " ")
}
