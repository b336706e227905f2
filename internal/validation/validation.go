// Package validation holds the field policies applied to incoming request
// bodies before any collaborator is contacted.
package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Practical RFC 5322 subset. Quoted local parts and bracketed IP domains are
// not accepted; TLD must be at least two characters.
var emailRe = regexp.MustCompile(
	`^[a-zA-Z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+(?:\.[a-zA-Z0-9!#$%&'*+/=?^_` + "`" + `{|}~-]+)*` +
		`@(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?\.)+[a-zA-Z0-9][a-zA-Z0-9](?:[a-zA-Z0-9-]*[a-zA-Z0-9])?$`)

// Human names in any script, up to three space-separated parts. Japanese
// names commonly omit the space, so a single long part is fine.
var userNameRe = regexp.MustCompile(`^\p{L}[\p{L}'.-]*(?:[ ]\p{L}[\p{L}'.-]*){0,2}$`)

// ValidEmail reports whether s is an acceptable email address.
func ValidEmail(s string) bool {
	if s == "" || len(s) > 254 {
		return false
	}
	return emailRe.MatchString(s)
}

// ValidUserName reports whether s is an acceptable display name: 1-50 runes,
// unicode letters plus '/./- punctuation, no doubled spaces or punctuation,
// and no part starting or ending on punctuation.
func ValidUserName(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < 1 || n > 50 {
		return false
	}
	if strings.TrimSpace(s) != s || s == "" {
		return false
	}
	if strings.Contains(s, "  ") ||
		strings.Contains(s, "--") ||
		strings.Contains(s, "''") ||
		strings.Contains(s, "..") {
		return false
	}
	if !userNameRe.MatchString(s) {
		return false
	}
	for _, part := range strings.Fields(s) {
		if strings.HasPrefix(part, "-") || strings.HasPrefix(part, "'") || strings.HasPrefix(part, ".") {
			return false
		}
		if strings.HasSuffix(part, "-") || strings.HasSuffix(part, "'") {
			return false
		}
	}
	return true
}

// ValidPassword reports whether s satisfies the provider's password policy:
// at least 8 characters with an upper-case letter, a lower-case letter and
// a digit.
func ValidPassword(s string) bool {
	if utf8.RuneCountInString(s) < 8 || len(s) > 256 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// ValidOrganizationName reports whether s is an acceptable organization
// name: 2-100 runes, no leading or trailing whitespace.
func ValidOrganizationName(s string) bool {
	n := utf8.RuneCountInString(s)
	if n < 2 || n > 100 {
		return false
	}
	return strings.TrimSpace(s) == s
}
