package source

import (
	"strings"
	"unicode/utf8"
)

// MaxDirectChars is the limit on pasted text.
const MaxDirectChars = 10000

// DirectText validates text typed or pasted by the user.
func DirectText(text string) (string, error) {
	if utf8.RuneCountInString(text) > MaxDirectChars {
		return "", ErrTooLong
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	return text, nil
}
