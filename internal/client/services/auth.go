// Package services holds the command-line client's account workflow. It
// drives the API client and keeps the local session row in step with the
// token pair the client holds.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/soultalk/internal/client/client"
	"github.com/dmitrijs2005/soultalk/internal/client/repositories/session"
)

type AuthService interface {
	// Restore resumes the stored session, if any, and returns it.
	Restore(ctx context.Context) (*session.Session, error)
	Current() *session.Session
	Ping(ctx context.Context) error

	Register(ctx context.Context, r client.Registration) (string, error)
	VerifyEmail(ctx context.Context, email, code string) (*client.User, bool, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*session.Session, error)
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) (int64, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, current, next string) error
	Profile(ctx context.Context) (*client.Profile, error)
}

type authService struct {
	client   client.Client
	sessions session.Repository
	now      func() time.Time

	current *session.Session
}

func NewAuthService(c client.Client, sessions session.Repository) AuthService {
	return &authService{client: c, sessions: sessions, now: time.Now}
}

func (a *authService) Current() *session.Session { return a.current }

func (a *authService) Ping(ctx context.Context) error { return a.client.Ping(ctx) }

func (a *authService) Restore(ctx context.Context) (*session.Session, error) {
	s, err := a.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	a.current = s
	if s != nil {
		a.client.SetTokens(&client.Tokens{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken})
	}
	return s, nil
}

// persist mirrors the client's token pair into the session row. A cleared
// pair removes the row.
func (a *authService) persist(ctx context.Context) error {
	t := a.client.Tokens()
	if t == nil || a.current == nil {
		a.current = nil
		return a.sessions.Clear(ctx)
	}
	if t.AccessToken == a.current.AccessToken && t.RefreshToken == a.current.RefreshToken {
		return nil
	}

	next := *a.current
	next.AccessToken, next.RefreshToken, next.SavedAt = t.AccessToken, t.RefreshToken, a.now()
	if err := a.sessions.Save(ctx, &next); err != nil {
		return err
	}
	a.current = &next
	return nil
}

// begin records a fresh sign-in for the account.
func (a *authService) begin(ctx context.Context, userID, email string) (*session.Session, error) {
	t := a.client.Tokens()
	s := &session.Session{
		UserID:       userID,
		Email:        email,
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		SavedAt:      a.now(),
	}
	if err := a.sessions.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	a.current = s
	return s, nil
}

func (a *authService) Register(ctx context.Context, r client.Registration) (string, error) {
	return a.client.Register(ctx, r)
}

// VerifyEmail reports whether the confirmation also signed the account in.
func (a *authService) VerifyEmail(ctx context.Context, email, code string) (*client.User, bool, error) {
	u, tokens, err := a.client.VerifyEmail(ctx, email, code)
	if err != nil {
		return nil, false, err
	}
	if tokens == nil {
		return u, false, nil
	}
	if _, err := a.begin(ctx, u.ID, u.Email); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (a *authService) ResendVerification(ctx context.Context, email string) error {
	return a.client.ResendVerification(ctx, email)
}

func (a *authService) Login(ctx context.Context, email, password string) (*session.Session, error) {
	if _, err := a.client.Login(ctx, email, password); err != nil {
		return nil, err
	}
	p, err := a.client.Profile(ctx)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return a.begin(ctx, p.ID, p.Email)
}

// Logout forgets the local session even when the server could not be told.
func (a *authService) Logout(ctx context.Context) error {
	err := a.client.Logout(ctx)
	if perr := a.persist(ctx); perr != nil {
		return perr
	}
	return err
}

func (a *authService) LogoutAll(ctx context.Context) (int64, error) {
	n, err := a.client.LogoutAll(ctx)
	if perr := a.persist(ctx); perr != nil {
		return 0, perr
	}
	return n, err
}

func (a *authService) ForgotPassword(ctx context.Context, email string) error {
	return a.client.ForgotPassword(ctx, email)
}

func (a *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	return a.client.ResetPassword(ctx, token, newPassword)
}

func (a *authService) ChangePassword(ctx context.Context, current, next string) error {
	err := a.client.ChangePassword(ctx, current, next)
	if perr := a.persist(ctx); perr != nil {
		return perr
	}
	return err
}

func (a *authService) Profile(ctx context.Context) (*client.Profile, error) {
	p, err := a.client.Profile(ctx)
	if perr := a.persist(ctx); perr != nil {
		return nil, perr
	}
	return p, err
}
