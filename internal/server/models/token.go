package models

import "time"

// RefreshSession is one issued refresh token. Rotation revokes it; rows are
// never deleted by the auth flows.
type RefreshSession struct {
	ID         string
	UserID     string
	TokenHash  string
	DeviceInfo *string
	IPAddress  *string
	ExpiresAt  time.Time
	IsRevoked  bool
	CreatedAt  time.Time
}

func (s *RefreshSession) Valid(now time.Time) bool {
	return !s.IsRevoked && !now.After(s.ExpiresAt)
}

type VerificationKind string

const (
	VerificationEmail         VerificationKind = "email_verification"
	VerificationPasswordReset VerificationKind = "password_reset"
)

// VerificationRecord is a single-use secret: an OTP code for email
// verification or an opaque token for password reset.
type VerificationRecord struct {
	ID        string
	UserID    string
	TokenHash string
	Kind      VerificationKind
	ExpiresAt time.Time
	IsUsed    bool
	CreatedAt time.Time
}

func (r *VerificationRecord) Valid(now time.Time) bool {
	return !r.IsUsed && !now.After(r.ExpiresAt)
}
