// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account. A nil PasswordHash marks a social-only account.
type User struct {
	ID               string
	Email            string
	PasswordHash     *string
	FirstName        string
	LastName         string
	DisplayFirstName string
	Username         *string
	Bio              *string
	Pronoun          *string
	EmailVerified    bool
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastLoginAt      *time.Time
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// GreetingName is the name used in outgoing emails.
func (u *User) GreetingName() string {
	if u.DisplayFirstName != "" {
		return u.DisplayFirstName
	}
	return u.FirstName
}

// ProfilePatch carries a partial profile update; nil fields are left as is.
type ProfilePatch struct {
	FirstName        *string
	LastName         *string
	DisplayFirstName *string
	Username         *string
	Bio              *string
	Pronoun          *string
}

func (p *ProfilePatch) Empty() bool {
	return p == nil || (p.FirstName == nil && p.LastName == nil && p.DisplayFirstName == nil &&
		p.Username == nil && p.Bio == nil && p.Pronoun == nil)
}

// ClientInfo describes the device a session was opened from.
type ClientInfo struct {
	DeviceInfo string
	IPAddress  string
}
