package providers

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

func profileArg(p []byte) any {
	if len(p) == 0 {
		return nil
	}
	return p
}

func (r *PostgresRepository) Link(ctx context.Context, link *models.LinkedProvider) (*models.LinkedProvider, error) {
	query :=
		`INSERT INTO social_accounts (user_id, provider, provider_user_id, provider_email, profile_data)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		link.UserID, string(link.Provider), link.ProviderUserID, link.ProviderEmail, profileArg(link.ProfileData),
	).Scan(&link.ID, &link.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %v", common.ErrConflict, err)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return link, nil
}

func scanLink(row interface{ Scan(...any) error }) (*models.LinkedProvider, error) {
	var (
		l        models.LinkedProvider
		provider string
		profile  []byte
	)
	if err := row.Scan(&l.ID, &l.UserID, &provider, &l.ProviderUserID, &l.ProviderEmail, &profile, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.Provider = models.Provider(provider)
	l.ProfileData = profile
	return &l, nil
}

func (r *PostgresRepository) GetByProvider(ctx context.Context, provider models.Provider, providerUserID string) (*models.LinkedProvider, error) {
	query :=
		`SELECT id, user_id, provider, provider_user_id, provider_email, profile_data, created_at
		 FROM social_accounts
		 WHERE provider = $1 AND provider_user_id = $2`

	link, err := scanLink(r.db.QueryRowContext(ctx, query, string(provider), providerUserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return link, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.LinkedProvider, error) {
	query :=
		`SELECT id, user_id, provider, provider_user_id, provider_email, profile_data, created_at
		 FROM social_accounts
		 WHERE user_id = $1
		 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.LinkedProvider
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Unlink(ctx context.Context, userID string, provider models.Provider) (bool, error) {
	query := `DELETE FROM social_accounts WHERE user_id = $1 AND provider = $2`

	res, err := r.db.ExecContext(ctx, query, userID, string(provider))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return dbx.RowsAffected(res) > 0, nil
}
