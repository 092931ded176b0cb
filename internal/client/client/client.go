package client

import (
	"context"
	"time"
)

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	DisplayFirstName string     `json:"display_first_name"`
	Username         *string    `json:"username"`
	EmailVerified    bool       `json:"email_verified"`
	HasPassword      bool       `json:"has_password"`
	CreatedAt        time.Time  `json:"created_at"`
	LastLoginAt      *time.Time `json:"last_login_at"`
}

type LinkedAccount struct {
	Provider      string    `json:"provider"`
	ProviderEmail *string   `json:"provider_email"`
	LinkedAt      time.Time `json:"linked_at"`
}

type Profile struct {
	User
	LinkedAccounts []LinkedAccount `json:"linked_accounts"`
	ActiveSessions int64           `json:"active_sessions"`
}

type Registration struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Client is the subset of the auth API the command-line client uses.
type Client interface {
	Ping(ctx context.Context) error
	Register(ctx context.Context, r Registration) (string, error)
	VerifyEmail(ctx context.Context, email, code string) (*User, *Tokens, error)
	ResendVerification(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (*Tokens, error)
	Refresh(ctx context.Context) (*Tokens, error)
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) (int64, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ChangePassword(ctx context.Context, current, next string) error
	Profile(ctx context.Context) (*Profile, error)

	SetTokens(t *Tokens)
	Tokens() *Tokens
}
