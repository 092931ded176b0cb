package verifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/dbx"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.VerificationRecord) error {
	query :=
		`INSERT INTO email_verification_tokens (user_id, token_hash, token_type, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, rec.UserID, rec.TokenHash, string(rec.Kind), rec.ExpiresAt).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const recordColumns = `id, user_id, token_hash, token_type, expires_at, is_used, created_at`

func (r *PostgresRepository) find(ctx context.Context, query string, args ...any) (*models.VerificationRecord, error) {
	var (
		rec  models.VerificationRecord
		kind string
	)
	err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&rec.ID, &rec.UserID, &rec.TokenHash, &kind, &rec.ExpiresAt, &rec.IsUsed, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	rec.Kind = models.VerificationKind(kind)
	return &rec, nil
}

// FindForUser prefers an unused record when the same code was issued twice.
func (r *PostgresRepository) FindForUser(ctx context.Context, userID string, kind models.VerificationKind, tokenHash string) (*models.VerificationRecord, error) {
	query := `SELECT ` + recordColumns + `
		 FROM email_verification_tokens
		 WHERE user_id = $1 AND token_type = $2 AND token_hash = $3
		 ORDER BY is_used, created_at DESC
		 LIMIT 1`
	return r.find(ctx, query, userID, string(kind), tokenHash)
}

func (r *PostgresRepository) FindByHash(ctx context.Context, kind models.VerificationKind, tokenHash string) (*models.VerificationRecord, error) {
	query := `SELECT ` + recordColumns + `
		 FROM email_verification_tokens
		 WHERE token_type = $1 AND token_hash = $2
		 ORDER BY is_used, created_at DESC
		 LIMIT 1`
	return r.find(ctx, query, string(kind), tokenHash)
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE email_verification_tokens SET is_used = TRUE WHERE id = $1 AND is_used = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res) == 1, nil
}

func (r *PostgresRepository) InvalidateAll(ctx context.Context, userID string, kind models.VerificationKind) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE email_verification_tokens SET is_used = TRUE
		 WHERE user_id = $1 AND token_type = $2 AND is_used = FALSE`, userID, string(kind))
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}
