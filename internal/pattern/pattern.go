// Package pattern matches free-form text patterns against goal text and
// resolves which named entities or goal templates apply to a goal.
//
// Matching rules: the pattern and the goal's name and description are case
// folded and have whitespace runs collapsed to a single space. The name and
// description are joined by a newline, so a pattern can never match across the
// field boundary. A goal matches when the normalized pattern is a substring of
// that text. Empty patterns never match.
package pattern

import (
	"strings"

	"golang.org/x/text/cases"
)

// Spec is a normalized pattern.
type Spec string

// A Caser is stateful, so each call gets its own.
func normalizeField(text string) string {
	return strings.Join(strings.Fields(cases.Fold().String(text)), " ")
}

// Normalize case folds text and collapses whitespace.
func Normalize(text string) Spec {
	return Spec(normalizeField(text))
}

// Empty reports whether the spec can never match.
func (s Spec) Empty() bool { return s == "" }

// CandidateText builds the text a goal is matched against.
func CandidateText(name, description string) string {
	return normalizeField(name) + "\n" + normalizeField(description)
}

// Matches reports whether spec occurs in candidate. candidate must come from
// CandidateText.
func Matches(spec Spec, candidate string) bool {
	if spec.Empty() {
		return false
	}
	return strings.Contains(candidate, string(spec))
}
