package internal

import (
	"net/mail"
	"regexp"
)

// Phone numbers are validated for shape only (optional +, separators,
// 7 to 15 digits); real routing validation belongs to the SMS backend.
var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 ().-]{5,18}[0-9]$`)

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

// ValidEmail reports whether s parses as a single RFC 5322 address.
func ValidEmail(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// ValidPhone reports whether s looks like a dialable phone number.
func ValidPhone(s string) bool {
	if !phonePattern.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 7 && digits <= 15
}

// ValidPIN reports whether s is all digits within the configured length
// bounds.
func ValidPIN(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	return digitsOnly.MatchString(s)
}
