package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/dbx"
	"github.com/dmitrijs2005/soultalk/internal/server/limiter"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
)

// VerifyEmail consumes a verification code and marks the address as
// verified. An active account is signed in right away.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string, client models.ClientInfo) (*models.User, *TokenPair, error) {
	email = common.NormalizeEmail(email)
	if err := s.throttle(ctx, limiter.ScopeVerifyEmail, email); err != nil {
		return nil, nil, err
	}

	var (
		user *models.User
		pair *TokenPair
	)
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		usersRepo := s.repomanager.Users(tx)
		ledger := s.repomanager.Verifications(tx)

		var err error
		user, err = usersRepo.GetByEmail(ctx, email)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidOrExpired
		}
		if err != nil {
			return err
		}

		record, err := ledger.FindForUser(ctx, user.ID, models.VerificationEmail, s.codec.HashOpaqueSecret(code))
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

		if err := usersRepo.MarkEmailVerified(ctx, user.ID); err != nil {
			return err
		}
		user.EmailVerified = true

		if !user.IsActive {
			return nil
		}
		pair, err = s.signIn(ctx, tx, user, client)
		return err
	})
	s.record(ctx, "verify_email", err)
	if err != nil {
		return nil, nil, s.fail(ctx, "verify_email", err)
	}

	s.logger.Info(ctx, "email verified", "user_id", user.ID)
	return user, pair, nil
}

// ResendVerification replaces any outstanding codes with a fresh one. It
// reports false when no account has the email.
func (s *AuthService) ResendVerification(ctx context.Context, email string) (bool, error) {
	email = common.NormalizeEmail(email)
	if err := s.throttle(ctx, limiter.ScopeResendVerification, email); err != nil {
		return false, err
	}

	var (
		user *models.User
		code string
	)
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		user, err = s.repomanager.Users(tx).GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if user.EmailVerified {
			return common.ErrAlreadyVerified
		}

		if _, err := s.repomanager.Verifications(tx).InvalidateAll(ctx, user.ID, models.VerificationEmail); err != nil {
			return err
		}
		code, err = s.issueOTP(ctx, tx, user.ID)
		return err
	})
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	s.record(ctx, "resend_verification", err)
	if err != nil {
		return false, s.fail(ctx, "resend_verification", err)
	}

	s.sendVerification(ctx, user, code)
	return true, nil
}
