package metrics

import (
	"strings"
	"unicode"
)

// Normalize maps an answer string to its canonical comparison form: trimmed,
// case-folded, punctuation stripped. Correctness compares Normalize(answer)
// against Normalize(target), so the transformation is applied symmetrically.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPunct(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

// AnswersMatch reports whether a predicted answer matches the target under
// the documented normalization.
func AnswersMatch(answer, target string) bool {
	return Normalize(answer) == Normalize(target)
}
