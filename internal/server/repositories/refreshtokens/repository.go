// Package refreshtokens declares the session ledger: one row per issued
// refresh token, stored by digest and revoked rather than deleted.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/soultalk/internal/server/models"
)

// Repository defines operations for issuing, looking up and revoking
// refresh sessions.
type Repository interface {
	Create(ctx context.Context, session *models.RefreshSession) error

	// FindByHash returns common.ErrorNotFound when no session has the digest.
	FindByHash(ctx context.Context, tokenHash string) (*models.RefreshSession, error)

	// Revoke flips is_revoked only if it is still false and reports whether
	// this call did it. Concurrent callers racing on one session see at
	// most one true.
	Revoke(ctx context.Context, id string) (bool, error)

	// RevokeByHash is Revoke keyed by digest.
	RevokeByHash(ctx context.Context, tokenHash string) (bool, error)

	// RevokeAllForUser revokes every live session of the user and returns
	// how many were revoked.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)

	// CountActive counts unrevoked, unexpired sessions.
	CountActive(ctx context.Context, userID string) (int64, error)
}
