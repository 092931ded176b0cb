// Package limiter throttles brute-force prone auth flows. Budgets are
// per scope (login, verify_email, ...) and counted per key, usually the
// normalized email address.
package limiter

import (
	"context"
	"errors"
	"time"
)

// Scopes used by the auth service.
const (
	ScopeLogin              = "login"
	ScopeVerifyEmail        = "verify_email"
	ScopeResendVerification = "resend_verification"
	ScopePasswordReset      = "password_reset"
)

// ErrUnavailable means the limiter backend could not be consulted.
// Callers decide whether to fail open.
var ErrUnavailable = errors.New("rate limiter unavailable")

// Policy allows Limit attempts per Window. A zero Limit disables the scope.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Policies maps a scope to its budget. Unknown scopes are unlimited.
type Policies map[string]Policy

func (p Policies) lookup(scope string) (Policy, bool) {
	pol, ok := p[scope]
	if !ok || pol.Limit <= 0 || pol.Window <= 0 {
		return Policy{}, false
	}
	return pol, true
}

// Limiter records one attempt for key within scope. It returns
// common.ErrRateLimited once the budget is spent and ErrUnavailable when
// the backend fails.
type Limiter interface {
	Allow(ctx context.Context, scope, key string) error
}

// Noop never limits.
type Noop struct{}

func (Noop) Allow(context.Context, string, string) error { return nil }

var _ Limiter = Noop{}
