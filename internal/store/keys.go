package store

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold is the comparison key for names the store treats as equal: surrounding
// whitespace is trimmed, the text is NFC-normalized, then Unicode case-folded.
// SQLite's lower() only folds ASCII, so warranty and product keys are
// computed here and stored alongside the display text.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern is a LIKE pattern matching s anywhere, with s's own
// wildcards taken literally. Use it with ESCAPE '\'.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
