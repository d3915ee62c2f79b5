package services

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

var emailCaser = cases.Lower(language.Und)

// NormalizeMessage prepares user text for storage and relay:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two,
//   - trims surrounding whitespace,
//   - composes to Unicode NFC so visually equal Persian text compares equal.
func NormalizeMessage(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return norm.NFC.String(strings.TrimSpace(s))
}

// validateMessage normalizes and checks the message against maxRunes
// (0 disables the cap).
func validateMessage(raw string, maxRunes int) (string, error) {
	msg := NormalizeMessage(raw)
	if msg == "" {
		return "", ErrEmptyMessage
	}
	if maxRunes > 0 && utf8.RuneCountInString(msg) > maxRunes {
		return "", ErrTooLong
	}
	return msg, nil
}

// NormalizeEmail trims and lower-cases an address. It does not validate.
func NormalizeEmail(raw string) string {
	return emailCaser.String(strings.TrimSpace(raw))
}

// parseEmail normalizes raw and requires a bare addr-spec (no display name).
func parseEmail(raw string) (string, error) {
	email := NormalizeEmail(raw)
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	return email, nil
}
