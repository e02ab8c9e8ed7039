package identity

import (
	"crypto/rand"
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"
)

// MinPasswordLength is the shortest password accepted
const MinPasswordLength = 12

var passwordClasses = []*regexp.Regexp{
	regexp.MustCompile(`[A-Z]`),
	regexp.MustCompile(`[a-z]`),
	regexp.MustCompile(`[0-9]`),
	regexp.MustCompile(`[@$!#%*?&]`),
}

// ValidatePassword reports whether password is long enough and contains an
// upper-case letter, a lower-case letter, a digit and one of @$!#%*?&.
func ValidatePassword(password string) bool {
	if len(password) < MinPasswordLength {
		return false
	}
	for _, rx := range passwordClasses {
		if !rx.MatchString(password) {
			return false
		}
	}
	return true
}

// NormalizeUsername trims and lower-cases a username and reports whether the
// result is a bare email address.
func NormalizeUsername(raw string) (string, bool) {
	username := strings.ToLower(strings.TrimSpace(raw))
	if username == "" || strings.HasSuffix(username, ".") {
		return username, false
	}
	addr, err := mail.ParseAddress(username)
	if err != nil {
		return username, false
	}
	return username, addr.Address == username
}

// randomPassword returns a password nobody knows, for invited users who set
// their own through the invitation code.
func randomPassword() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "Aa1!" + base64.RawURLEncoding.EncodeToString(b), nil
}
