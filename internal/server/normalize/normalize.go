// Package normalize derives search keys from display names. Normalized text
// is what the catalog indexes and matches against; display text is stored
// untouched.
package normalize

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalizer converts display text into a normalized search key for a given
// language.
type Normalizer interface {
	Normalize(text, lang string) string
}

// TextNormalizer applies Unicode NFKC normalization, language-aware
// lowercasing and whitespace collapsing.
type TextNormalizer struct{}

func NewTextNormalizer() *TextNormalizer {
	return &TextNormalizer{}
}

func (n *TextNormalizer) Normalize(text, lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.Und
	}
	s := norm.NFKC.String(text)
	s = cases.Lower(tag).String(s)
	return strings.Join(strings.Fields(s), " ")
}
