package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/soultalk/internal/common"
)

const (
	minPasswordBytes = 8
	// bcrypt only looks at the first 72 bytes.
	maxPasswordBytes = 72
	maxNameRunes     = 100
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_.]{3,30}$`)

func validateEmail(email string) (string, error) {
	email = common.NormalizeEmail(email)
	if !common.IsValidEmail(email) {
		return "", common.ErrInvalidEmail
	}
	return email, nil
}

func validatePassword(password string) error {
	if n := len(password); n < minPasswordBytes || n > maxPasswordBytes {
		return common.ErrWeakPassword
	}
	return nil
}

func validName(s string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= 1 && n <= maxNameRunes
}

// normalizeUsername lowercases the candidate and checks its shape.
func normalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(username) {
		return "", common.ErrInvalidUsername
	}
	return username, nil
}
