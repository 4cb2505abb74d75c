package matcher

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// TokenSet is a set of normalized words.
type TokenSet map[string]struct{}

// Tokenize normalizes text into a set of words.
//
// The text is composed to NFC and lower-cased, every rune that is not a
// letter, a digit, an underscore or whitespace is removed, and the remainder
// is split on whitespace. Punctuation is dropped rather than turned into a
// separator, so "company's" becomes "companys" and "e-mail" becomes "email".
//
// Composing first differs from stripping rune by rune: in "Cafe\u0301" the
// accent is a separate combining mark that per-rune stripping would drop,
// giving "cafe", while here it composes into the letter and yields "café".
// Precomposed and decomposed spellings of a word therefore match each other.
func Tokenize(text string) TokenSet {
	// cases.Caser keeps state and must not be shared between goroutines.
	lowered := cases.Lower(language.Und).String(norm.NFC.String(text))

	cleaned := strings.Map(func(r rune) rune {
		if isWordRune(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, lowered)

	fields := strings.Fields(cleaned)
	set := make(TokenSet, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// Contains reports whether token is in the set.
func (s TokenSet) Contains(token string) bool {
	_, ok := s[token]
	return ok
}

// Intersect returns the words present in both sets.
func (s TokenSet) Intersect(other TokenSet) TokenSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(TokenSet)
	for t := range small {
		if large.Contains(t) {
			out[t] = struct{}{}
		}
	}
	return out
}

// Sorted returns the words in lexical order. It never returns nil.
func (s TokenSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
