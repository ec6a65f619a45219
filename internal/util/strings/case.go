// Package strings derives wire names from Go identifiers.
package strings

import (
	"strings"
	"unicode"
)

// ToSnakeCase returns the words of a Go identifier joined by underscores:
// LicenseEndDate is license_end_date, HTTPRequest is http_request and ISO2 is
// iso_2.
func ToSnakeCase(s string) string {
	return strings.Join(Words(s), "_")
}

// Words splits a Go identifier into lowercase words. An acronym stays one word
// and a run of digits after a letter is a word of its own. Underscores only
// separate.
func Words(s string) []string {
	runes := []rune(s)
	words := make([]string, 0, 4)
	start := -1
	for i, r := range runes {
		if r == '_' {
			if start >= 0 {
				words = append(words, strings.ToLower(string(runes[start:i])))
			}
			start = -1
			continue
		}
		if start < 0 {
			start = i
			continue
		}
		if startsWord(runes, i) {
			words = append(words, strings.ToLower(string(runes[start:i])))
			start = i
		}
	}
	if start >= 0 {
		words = append(words, strings.ToLower(string(runes[start:])))
	}
	return words
}

// startsWord reports whether runes[i] begins a word. runes[i-1] is not an
// underscore.
func startsWord(runes []rune, i int) bool {
	prev, r := runes[i-1], runes[i]
	switch {
	case unicode.IsUpper(r):
		if !unicode.IsUpper(prev) {
			return true
		}
		// Last capital of an acronym: the R of HTTPRequest.
		return i+1 < len(runes) && unicode.IsLower(runes[i+1])
	case unicode.IsDigit(r):
		return unicode.IsLetter(prev)
	}
	return false
}
