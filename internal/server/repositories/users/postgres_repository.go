package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/dbx"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
)

const userColumns = `id, email, password_hash, first_name, last_name, display_first_name,
		username, bio, pronoun, email_verified, is_active, created_at, updated_at, last_login_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.DisplayFirstName,
		&u.Username, &u.Bio, &u.Pronoun, &u.EmailVerified, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

func wrapWriteErr(err error) error {
	if dbx.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", common.ErrConflict, err)
	}
	return fmt.Errorf("db error: %w", err)
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query :=
		`INSERT INTO users (email, password_hash, first_name, last_name, display_first_name, email_verified, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		common.NormalizeEmail(user.Email), user.PasswordHash, user.FirstName, user.LastName,
		user.DisplayFirstName, user.EmailVerified, user.IsActive,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, wrapWriteErr(err)
	}

	user.Email = common.NormalizeEmail(user.Email)
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, common.NormalizeEmail(email)))
}

func (r *PostgresRepository) IsUsernameAvailable(ctx context.Context, username, exceptUserID string) (bool, error) {
	query :=
		`SELECT EXISTS (
		   SELECT 1 FROM users WHERE username = $1 AND ($2 = '' OR id::text <> $2)
		 )`

	var taken bool
	if err := r.db.QueryRowContext(ctx, query, username, exceptUserID).Scan(&taken); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return !taken, nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id string, patch *models.ProfilePatch) (*models.User, error) {
	if patch.Empty() {
		return nil, common.ErrNothingToUpdate
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("first_name", patch.FirstName)
	add("last_name", patch.LastName)
	add("display_first_name", patch.DisplayFirstName)
	add("username", patch.Username)
	add("bio", patch.Bio)
	add("pronoun", patch.Pronoun)

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s, updated_at = NOW() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userColumns)

	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil && dbx.IsUniqueViolation(err) {
		return nil, common.ErrUsernameTaken
	}
	return u, err
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) SetPassword(ctx context.Context, id, passwordHash string) error {
	return r.exec(ctx,
		`UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		passwordHash, id)
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.exec(ctx,
		`UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1`,
		id)
}

func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx,
		`UPDATE users SET last_login_at = $1, updated_at = NOW() WHERE id = $2`,
		at, id)
}
