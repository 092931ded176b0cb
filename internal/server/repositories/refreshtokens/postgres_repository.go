package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/dbx"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.RefreshSession) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, device_info, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, s.UserID, s.TokenHash, s.DeviceInfo, s.IPAddress, s.ExpiresAt).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", common.ErrConflict, err)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshSession, error) {
	query := `
		SELECT id, user_id, token_hash, device_info, ip_address, expires_at, is_revoked, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	s := &models.RefreshSession{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).
		Scan(&s.ID, &s.UserID, &s.TokenHash, &s.DeviceInfo, &s.IPAddress, &s.ExpiresAt, &s.IsRevoked, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) revoke(ctx context.Context, query string, arg any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, arg)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res), nil
}

func (r *PostgresRepository) Revoke(ctx context.Context, id string) (bool, error) {
	n, err := r.revoke(ctx, `
		UPDATE refresh_tokens SET is_revoked = TRUE
		WHERE id = $1 AND is_revoked = FALSE
	`, id)
	return n == 1, err
}

func (r *PostgresRepository) RevokeByHash(ctx context.Context, tokenHash string) (bool, error) {
	n, err := r.revoke(ctx, `
		UPDATE refresh_tokens SET is_revoked = TRUE
		WHERE token_hash = $1 AND is_revoked = FALSE
	`, tokenHash)
	return n == 1, err
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	return r.revoke(ctx, `
		UPDATE refresh_tokens SET is_revoked = TRUE
		WHERE user_id = $1 AND is_revoked = FALSE
	`, userID)
}

func (r *PostgresRepository) CountActive(ctx context.Context, userID string) (int64, error) {
	query := `
		SELECT COUNT(*) FROM refresh_tokens
		WHERE user_id = $1 AND is_revoked = FALSE AND expires_at >= NOW()
	`
	var n int64
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
