// Package normalizer canonicalises raw annotation label text before it is
// used as a vocabulary key.
package normalizer

import "strings"

var controlWhitespace = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ")

// Normalize trims s, turns carriage returns, newlines and tabs into spaces and
// collapses every run of whitespace into a single space. Trimming drops every
// ASCII control character and space at either end; whitespace inside the
// label is the ASCII set space, \t, \n, \v, \f and \r. Other Unicode spaces
// such as U+00A0 are kept as label text.
func Normalize(s string) string {
	s = strings.TrimFunc(s, isTrimmable)
	if s == "" {
		return ""
	}
	s = controlWhitespace.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isSpace(c) {
			if !inSpace {
				b.WriteByte(' ')
				inSpace = true
			}
			continue
		}
		inSpace = false
		b.WriteByte(c)
	}
	return b.String()
}

func isTrimmable(r rune) bool {
	return r <= ' '
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// Fold is Normalize followed by lower-casing, so that "Cat" and "cat" share
// one vocabulary entry.
func Fold(s string) string {
	return strings.ToLower(Normalize(s))
}
