package resolve

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize lowercases s and collapses every run of whitespace to a single
// space, trimming both ends. It is idempotent.
func Normalize(s string) string {
	// Casers keep state between calls, so each call gets its own.
	lower := cases.Lower(language.Und).String(s)
	return strings.Join(strings.Fields(lower), " ")
}

// TokenSet is the set of words of a normalized phrase.
type TokenSet map[string]struct{}

// Tokenize normalizes s and returns its words as a set.
// Empty input yields an empty set.
func Tokenize(s string) TokenSet {
	fields := strings.Fields(Normalize(s))
	set := make(TokenSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// Has reports whether word is in the set.
func (t TokenSet) Has(word string) bool {
	_, ok := t[word]
	return ok
}

// Overlap returns the number of words present in both sets.
func (t TokenSet) Overlap(other TokenSet) int {
	small, large := t, other
	if len(small) > len(large) {
		small, large = large, small
	}
	n := 0
	for w := range small {
		if large.Has(w) {
			n++
		}
	}
	return n
}

// SubsetOf reports whether every word of t is in other.
func (t TokenSet) SubsetOf(other TokenSet) bool {
	for w := range t {
		if !other.Has(w) {
			return false
		}
	}
	return true
}

// HasAny reports whether t contains at least one word of other.
func (t TokenSet) HasAny(other TokenSet) bool {
	return t.Overlap(other) > 0
}
