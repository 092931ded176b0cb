package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/dbx"
	"github.com/dmitrijs2005/soultalk/internal/server/auth"
	"github.com/dmitrijs2005/soultalk/internal/server/limiter"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
)

// Register creates an unverified password account, links the email
// provider and mails a verification code.
func (s *AuthService) Register(ctx context.Context, email, password, firstName, lastName string) (*models.User, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if !validName(firstName) || !validName(lastName) {
		return nil, common.ErrInvalidName
	}
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, s.fail(ctx, "register", err)
	}

	var (
		user *models.User
		code string
	)
	err = s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		usersRepo := s.repomanager.Users(tx)

		_, err := usersRepo.GetByEmail(ctx, email)
		if err == nil {
			return common.ErrEmailTaken
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		user, err = usersRepo.Create(ctx, &models.User{
			Email:            email,
			PasswordHash:     &digest,
			FirstName:        firstName,
			LastName:         lastName,
			DisplayFirstName: firstName,
			IsActive:         true,
		})
		if errors.Is(err, common.ErrConflict) {
			return common.ErrEmailTaken
		}
		if err != nil {
			return err
		}

		if _, err := s.repomanager.Providers(tx).Link(ctx, emailLink(user)); err != nil {
			return err
		}

		code, err = s.issueOTP(ctx, tx, user.ID)
		return err
	})
	s.record(ctx, "register", err)
	if err != nil {
		return nil, s.fail(ctx, "register", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	s.sendVerification(ctx, user, code)
	return user, nil
}

func emailLink(user *models.User) *models.LinkedProvider {
	email := user.Email
	return &models.LinkedProvider{
		UserID:         user.ID,
		Provider:       models.ProviderEmail,
		ProviderUserID: email,
		ProviderEmail:  &email,
	}
}

// Login checks email and password and opens a session. Unknown email,
// inactive account, social-only account and wrong password are reported
// the same way.
func (s *AuthService) Login(ctx context.Context, email, password string, client models.ClientInfo) (*TokenPair, error) {
	email = common.NormalizeEmail(email)
	if err := s.throttle(ctx, limiter.ScopeLogin, email); err != nil {
		return nil, err
	}

	var pair *TokenPair
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		user, err := s.repomanager.Users(tx).GetByEmail(ctx, email)
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyDigest)
			return common.ErrInvalidCredentials
		}
		if err != nil {
			return err
		}

		if !user.IsActive || !user.HasPassword() {
			s.hasher.Verify(password, s.dummyDigest)
			return common.ErrInvalidCredentials
		}
		if !s.hasher.Verify(password, *user.PasswordHash) {
			return common.ErrInvalidCredentials
		}
		if !user.EmailVerified {
			return common.ErrEmailNotVerified
		}

		pair, err = s.signIn(ctx, tx, user, client)
		return err
	})
	s.record(ctx, "login", err)
	if err != nil {
		return nil, s.fail(ctx, "login", err)
	}
	return pair, nil
}

// RefreshTokens rotates a refresh token: the presented one is revoked and
// a new pair is issued. Losing a concurrent rotation of the same token is
// an invalid token.
func (s *AuthService) RefreshTokens(ctx context.Context, raw string, client models.ClientInfo) (*TokenPair, error) {
	if raw == "" {
		return nil, common.ErrInvalidToken
	}
	digest := s.codec.HashOpaqueSecret(raw)

	var pair *TokenPair
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		sessions := s.repomanager.RefreshTokens(tx)

		session, err := sessions.FindByHash(ctx, digest)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		if err != nil {
			return err
		}
		if !session.Valid(s.now()) {
			return common.ErrInvalidToken
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, session.UserID)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		if err != nil {
			return err
		}
		if !user.IsActive {
			return common.ErrInvalidToken
		}

		revoked, err := sessions.Revoke(ctx, session.ID)
		if err != nil {
			return err
		}
		if !revoked {
			return common.ErrInvalidToken
		}

		pair, err = s.issueSession(ctx, tx, user, client)
		return err
	})
	s.record(ctx, "refresh", err)
	if err != nil {
		return nil, s.fail(ctx, "refresh", err)
	}
	return pair, nil
}

// Logout revokes one refresh token. It reports whether a live session was
// revoked; repeating it is harmless.
func (s *AuthService) Logout(ctx context.Context, raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}

	var revoked bool
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		revoked, err = s.repomanager.RefreshTokens(tx).RevokeByHash(ctx, s.codec.HashOpaqueSecret(raw))
		return err
	})
	if err != nil {
		return false, s.fail(ctx, "logout", err)
	}
	return revoked, nil
}

// LogoutAllDevices revokes every live session of the user.
func (s *AuthService) LogoutAllDevices(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		n, err = s.repomanager.RefreshTokens(tx).RevokeAllForUser(ctx, userID)
		return err
	})
	if err != nil {
		return 0, s.fail(ctx, "logout_all", err)
	}
	s.logger.Info(ctx, "sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

// Introspect verifies an access token without touching storage.
func (s *AuthService) Introspect(token string) (*auth.AccessClaims, error) {
	return s.codec.VerifyAccessToken(token)
}

// Authenticate resolves an access token to its active owner.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.codec.VerifyAccessToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, claims.UserID())
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrInvalidToken
	}
	if err != nil {
		return nil, s.fail(ctx, "authenticate", err)
	}
	if !user.IsActive {
		return nil, common.ErrInvalidToken
	}
	return user, nil
}
