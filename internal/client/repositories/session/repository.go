// Package session persists the signed-in account's tokens between client
// runs. At most one session is stored.
package session

import (
	"context"
	"time"
)

type Session struct {
	UserID       string
	Email        string
	AccessToken  string
	RefreshToken string
	SavedAt      time.Time
}

type Repository interface {
	// Load returns (nil, nil) when nobody is signed in.
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Clear(ctx context.Context) error
}
