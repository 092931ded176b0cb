// Package verifications stores single-use secrets: email OTP codes and
// password-reset tokens, both by digest.
package verifications

import (
	"context"

	"github.com/dmitrijs2005/soultalk/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, record *models.VerificationRecord) error
	// FindForUser looks up a record of the given kind issued to userID.
	// Codes are short, so lookups by code are always scoped to a user.
	FindForUser(ctx context.Context, userID string, kind models.VerificationKind, tokenHash string) (*models.VerificationRecord, error)
	// FindByHash looks up a record by digest alone; only long tokens
	// (password reset) are looked up this way.
	FindByHash(ctx context.Context, kind models.VerificationKind, tokenHash string) (*models.VerificationRecord, error)
	// MarkUsed consumes the record if it is still unused and reports
	// whether this call consumed it.
	MarkUsed(ctx context.Context, id string) (bool, error)
	// InvalidateAll consumes every unused record of kind for the user.
	InvalidateAll(ctx context.Context, userID string, kind models.VerificationKind) (int64, error)
}
