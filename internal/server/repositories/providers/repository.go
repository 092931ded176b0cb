// Package providers stores the identities linked to each user: email and
// the social providers. (provider, provider_user_id) is globally unique.
package providers

import (
	"context"

	"github.com/dmitrijs2005/soultalk/internal/server/models"
)

type Repository interface {
	// Link inserts a new link; a taken (provider, provider_user_id) pair
	// yields common.ErrConflict.
	Link(ctx context.Context, link *models.LinkedProvider) (*models.LinkedProvider, error)
	GetByProvider(ctx context.Context, provider models.Provider, providerUserID string) (*models.LinkedProvider, error)
	ListByUser(ctx context.Context, userID string) ([]*models.LinkedProvider, error)
	// Unlink removes the user's link of the given kind and reports whether
	// anything was deleted.
	Unlink(ctx context.Context, userID string, provider models.Provider) (bool, error)
}
