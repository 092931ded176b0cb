// Package common defines shared constants and sentinel errors used across
// client and server layers of SoulTalk. Callers should use errors.Is to
// match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal  = errors.New("internal error")
	ErrForbidden   = errors.New("forbidden")
	ErrValidation  = errors.New("validation error")
	ErrRateLimited = errors.New("too many requests")

	// Credential and token errors.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidOrExpired   = errors.New("invalid or expired code")
	ErrInvalidIdentity    = errors.New("invalid identity token")
)

// PolicyError is a business-rule rejection. It unwraps to one of the base
// kinds above, so errors.Is(err, ErrForbidden) keeps working, while Code
// identifies the exact rule for clients and tests.
type PolicyError struct {
	Kind error
	Code string
	Msg  string
}

func (e *PolicyError) Error() string { return e.Msg }

func (e *PolicyError) Unwrap() error { return e.Kind }

// Is matches another PolicyError with the same code, regardless of message.
func (e *PolicyError) Is(target error) bool {
	t, ok := target.(*PolicyError)
	return ok && t.Code == e.Code
}

// Withf returns a copy of e carrying a more specific message.
func (e *PolicyError) Withf(format string, args ...any) *PolicyError {
	cp := *e
	cp.Msg = fmt.Sprintf(format, args...)
	return &cp
}

func newPolicy(kind error, code, msg string) *PolicyError {
	return &PolicyError{Kind: kind, Code: code, Msg: msg}
}

var (
	ErrAlreadyVerified    = newPolicy(ErrForbidden, "email_already_verified", "email already verified")
	ErrNoPasswordSet      = newPolicy(ErrForbidden, "no_password_set", "no password is set for this account")
	ErrAlreadyHasPassword = newPolicy(ErrForbidden, "password_already_set", "account already has a password")
	ErrDeactivated        = newPolicy(ErrForbidden, "account_deactivated", "account is deactivated")

	ErrInvalidEmail      = newPolicy(ErrValidation, "invalid_email", "invalid email address")
	ErrWeakPassword      = newPolicy(ErrValidation, "invalid_password", "password must be 8 to 72 bytes long")
	ErrInvalidName       = newPolicy(ErrValidation, "invalid_name", "first and last name must be 1 to 100 characters")
	ErrInvalidUsername   = newPolicy(ErrValidation, "invalid_username", "username must be 3 to 30 characters: a-z, 0-9, '_' or '.'")
	ErrInvalidProvider   = newPolicy(ErrValidation, "invalid_provider", "invalid provider")
	ErrMissingEmail      = newPolicy(ErrValidation, "email_not_provided", "email not provided by provider")
	ErrNothingToUpdate   = newPolicy(ErrValidation, "nothing_to_update", "no fields to update")
	ErrCannotUnlinkEmail = newPolicy(ErrForbidden, "cannot_unlink_email", "cannot unlink email provider")
	ErrLastLoginMethod   = newPolicy(ErrForbidden, "last_login_method", "cannot unlink the only authentication method")
	ErrPasswordRequired  = newPolicy(ErrForbidden, "password_required", "set a password before unlinking social accounts")

	ErrEmailTaken            = newPolicy(ErrConflict, "email_taken", "email already registered")
	ErrUsernameTaken         = newPolicy(ErrConflict, "username_taken", "username already taken")
	ErrProviderLinkedToYou   = newPolicy(ErrConflict, "provider_linked_to_you", "account is already linked to your account")
	ErrProviderLinkedToOther = newPolicy(ErrConflict, "provider_linked_to_other", "account is linked to another user")
	ErrProviderKindLinked    = newPolicy(ErrConflict, "provider_kind_linked", "a different account of this provider is already linked")
)
