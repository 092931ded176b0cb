package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/dbx"
	"github.com/dmitrijs2005/soultalk/internal/server/limiter"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
)

// ResetOutcome says what RequestPasswordReset actually did. Callers must
// answer every outcome with the same message.
type ResetOutcome int

const (
	ResetUnknown ResetOutcome = iota
	ResetSocialOnly
	ResetIssued
)

func (o ResetOutcome) String() string {
	switch o {
	case ResetSocialOnly:
		return "social_only"
	case ResetIssued:
		return "issued"
	default:
		return "unknown"
	}
}

// RequestPasswordReset issues a reset token and mails it, but only to
// accounts that have a password.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (ResetOutcome, error) {
	email = common.NormalizeEmail(email)
	if err := s.throttle(ctx, limiter.ScopePasswordReset, email); err != nil {
		return ResetUnknown, err
	}

	var (
		user    *models.User
		token   string
		outcome = ResetUnknown
	)
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		user, err = s.repomanager.Users(tx).GetByEmail(ctx, email)
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !user.HasPassword() {
			outcome = ResetSocialOnly
			return nil
		}

		raw, digest, err := s.codec.MintResetToken()
		if err != nil {
			return err
		}
		err = s.repomanager.Verifications(tx).Create(ctx, &models.VerificationRecord{
			UserID:    user.ID,
			TokenHash: digest,
			Kind:      models.VerificationPasswordReset,
			ExpiresAt: s.now().Add(s.resetValidityDuration),
		})
		if err != nil {
			return err
		}
		token, outcome = raw, ResetIssued
		return nil
	})
	s.record(ctx, "password_reset_request", err)
	if err != nil {
		return ResetUnknown, s.fail(ctx, "password_reset_request", err)
	}

	s.logger.Debug(ctx, "password reset requested", "outcome", outcome.String())
	if outcome == ResetIssued {
		s.sendPasswordReset(ctx, user, token)
	}
	return outcome, nil
}

// ConfirmPasswordReset consumes a reset token, sets the new password and
// signs the user out everywhere.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) (*models.User, error) {
	if err := validatePassword(newPassword); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, common.ErrInvalidOrExpired
	}
	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, s.fail(ctx, "password_reset_confirm", err)
	}

	var user *models.User
	err = s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		ledger := s.repomanager.Verifications(tx)

		record, err := ledger.FindByHash(ctx, models.VerificationPasswordReset, s.codec.HashOpaqueSecret(token))
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpired
		}
		if err != nil {
			return err
		}
		if !record.Valid(s.now()) {
			return common.ErrInvalidOrExpired
		}
		used, err := ledger.MarkUsed(ctx, record.ID)
		if err != nil {
			return err
		}
		if !used {
			return common.ErrInvalidOrExpired
		}

		user, err = s.repomanager.Users(tx).GetByID(ctx, record.UserID)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpired
		}
		if err != nil {
			return err
		}

		return s.replacePassword(ctx, tx, user, digest)
	})
	s.record(ctx, "password_reset_confirm", err)
	if err != nil {
		return nil, s.fail(ctx, "password_reset_confirm", err)
	}

	s.logger.Info(ctx, "password reset", "user_id", user.ID)
	return user, nil
}

// ChangePassword replaces the password of a signed-in user after checking
// the current one. All sessions are revoked.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.fail(ctx, "change_password", err)
	}

	err = s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if !user.HasPassword() {
			return common.ErrNoPasswordSet
		}
		if !s.hasher.Verify(currentPassword, *user.PasswordHash) {
			return common.ErrInvalidCredentials
		}
		return s.replacePassword(ctx, tx, user, digest)
	})
	s.record(ctx, "change_password", err)
	if err != nil {
		return s.fail(ctx, "change_password", err)
	}
	return nil
}

// SetPasswordForSocialUser gives a social-only account a password and an
// email login link.
func (s *AuthService) SetPasswordForSocialUser(ctx context.Context, userID, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return s.fail(ctx, "set_password", err)
	}

	err = s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.HasPassword() {
			return common.ErrAlreadyHasPassword
		}
		if err := s.repomanager.Users(tx).SetPassword(ctx, user.ID, digest); err != nil {
			return err
		}

		links, err := s.repomanager.Providers(tx).ListByUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if findLink(links, models.ProviderEmail) != nil {
			return nil
		}
		_, err = s.repomanager.Providers(tx).Link(ctx, emailLink(user))
		return err
	})
	s.record(ctx, "set_password", err)
	if err != nil {
		return s.fail(ctx, "set_password", err)
	}
	return nil
}

func (s *AuthService) replacePassword(ctx context.Context, tx dbx.DBTX, user *models.User, digest string) error {
	if err := s.repomanager.Users(tx).SetPassword(ctx, user.ID, digest); err != nil {
		return err
	}
	user.PasswordHash = &digest
	_, err := s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, user.ID)
	return err
}

func findLink(links []*models.LinkedProvider, p models.Provider) *models.LinkedProvider {
	for _, l := range links {
		if l.Provider == p {
			return l
		}
	}
	return nil
}
