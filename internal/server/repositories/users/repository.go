// Package users declares the account store: user rows keyed by id and by
// lowercased email.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/soultalk/internal/server/models"
)

// Repository defines persistence operations for user accounts.
// Missing rows yield common.ErrorNotFound; unique violations yield
// common.ErrConflict.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByEmail matches case-insensitively.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// IsUsernameAvailable reports whether no user other than exceptUserID
	// holds username. Pass "" to check against everyone.
	IsUsernameAvailable(ctx context.Context, username, exceptUserID string) (bool, error)
	// UpdateProfile applies the non-nil fields of patch and returns the
	// updated row. An empty patch yields common.ErrNothingToUpdate.
	UpdateProfile(ctx context.Context, id string, patch *models.ProfilePatch) (*models.User, error)
	SetPassword(ctx context.Context, id, passwordHash string) error
	MarkEmailVerified(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}
