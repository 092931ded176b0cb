// Package notify delivers the transactional emails of the auth flows:
// verification codes and password reset links.
//
// Gateway is what the auth service talks to. Mailer renders and sends
// synchronously over a Transport; Dispatcher wraps any Gateway with a
// bounded queue so requests never wait on a mail server.
package notify

import (
	"context"
	"time"
)

// Notification kinds, used as metric and log labels.
const (
	KindVerification  = "verification"
	KindPasswordReset = "password_reset"
)

// Gateway sends auth emails. firstName is used for the greeting; expiry is
// the lifetime of the code or link, shown to the recipient.
type Gateway interface {
	SendVerification(ctx context.Context, to, firstName, code string, expiry time.Duration) error
	SendPasswordReset(ctx context.Context, to, firstName, token string, expiry time.Duration) error
}

// Noop drops every notification.
type Noop struct{}

func (Noop) SendVerification(context.Context, string, string, string, time.Duration) error {
	return nil
}

func (Noop) SendPasswordReset(context.Context, string, string, string, time.Duration) error {
	return nil
}

var _ Gateway = Noop{}
