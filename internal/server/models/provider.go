package models

import (
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Provider string

const (
	ProviderEmail    Provider = "email"
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

// ParseProvider accepts a provider name case-insensitively.
func ParseProvider(s string) (Provider, bool) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderEmail, ProviderGoogle, ProviderFacebook:
		return p, true
	default:
		return "", false
	}
}

// IsSocial reports whether p is an external identity provider.
func (p Provider) IsSocial() bool {
	return p == ProviderGoogle || p == ProviderFacebook
}

// Title is the human-facing name, e.g. "Google". Casers are stateful, so
// one is built per call.
func (p Provider) Title() string {
	return cases.Title(language.English).String(string(p))
}

// LinkedProvider binds an external (or email) identity to a user.
// (Provider, ProviderUserID) is globally unique.
type LinkedProvider struct {
	ID             string
	UserID         string
	Provider       Provider
	ProviderUserID string
	ProviderEmail  *string
	ProfileData    json.RawMessage
	CreatedAt      time.Time
}

// Identity is the normalized result of verifying a provider token.
type Identity struct {
	Provider       Provider
	ProviderUserID string
	Email          string
	EmailVerified  bool
	FirstName      string
	LastName       string
	Profile        map[string]any
}
