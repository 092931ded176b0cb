// Package services holds the auth orchestrator: the flows that tie the
// account store, the session and verification ledgers, the token codec
// and outbound notifications together.
//
// Every mutating flow runs in exactly one database transaction. Emails
// are handed to the notification gateway only after commit, and a failed
// hand-off never fails the flow.
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/soultalk/internal/common"
	"github.com/dmitrijs2005/soultalk/internal/cryptox"
	"github.com/dmitrijs2005/soultalk/internal/dbx"
	"github.com/dmitrijs2005/soultalk/internal/logging"
	"github.com/dmitrijs2005/soultalk/internal/server/auth"
	"github.com/dmitrijs2005/soultalk/internal/server/config"
	"github.com/dmitrijs2005/soultalk/internal/server/limiter"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
	"github.com/dmitrijs2005/soultalk/internal/server/notify"
	"github.com/dmitrijs2005/soultalk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/soultalk/internal/server/telemetry"
)

// TokenPair is what a successful sign-in hands to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int
}

// AuthService implements the authentication and session flows.
type AuthService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	hasher      cryptox.Hasher
	notifier    notify.Gateway
	limiter     limiter.Limiter
	metrics     *telemetry.Metrics
	logger      logging.Logger
	now         func() time.Time

	// dummyDigest is verified against when there is no stored digest, so
	// a rejected login costs the same whether or not the account exists.
	dummyDigest string

	otpDigits             int
	otpValidityDuration   time.Duration
	resetValidityDuration time.Duration
}

type Option func(*AuthService)

func WithNotifier(g notify.Gateway) Option { return func(s *AuthService) { s.notifier = g } }
func WithLimiter(l limiter.Limiter) Option { return func(s *AuthService) { s.limiter = l } }
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *AuthService) { s.metrics = m }
}
func WithLogger(l logging.Logger) Option  { return func(s *AuthService) { s.logger = l } }
func WithHasher(h cryptox.Hasher) Option  { return func(s *AuthService) { s.hasher = h } }
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, opts ...Option) *AuthService {
	s := &AuthService{
		db:                    db,
		repomanager:           m,
		hasher:                cryptox.NewBcryptHasher(cfg.BcryptCost),
		notifier:              notify.Noop{},
		limiter:               limiter.Noop{},
		logger:                logging.Nop(),
		now:                   time.Now,
		otpDigits:             cfg.OTPLength,
		otpValidityDuration:   cfg.OTPValidityDuration,
		resetValidityDuration: cfg.ResetTokenValidityDuration,
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "auth")
	if d, err := s.hasher.Hash("soultalk/login-dummy"); err == nil {
		s.dummyDigest = d
	}
	s.codec = auth.NewCodec(cfg.SecretKey, cfg.AccessTokenValidityDuration, cfg.RefreshTokenValidityDuration).
		WithClock(s.now)
	return s
}

// Codec exposes the token codec, e.g. for transport middleware.
func (s *AuthService) Codec() *auth.Codec { return s.codec }

func (s *AuthService) withTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, s.db, nil, fn)
}

// fail passes domain errors through and turns anything else into
// common.ErrorInternal after logging it.
func (s *AuthService) fail(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *common.PolicyError
	switch {
	case errors.As(err, &pe),
		errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrConflict),
		errors.Is(err, common.ErrForbidden),
		errors.Is(err, common.ErrValidation),
		errors.Is(err, common.ErrRateLimited),
		errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrEmailNotVerified),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrInvalidOrExpired),
		errors.Is(err, common.ErrInvalidIdentity),
		errors.Is(err, common.ErrorInternal):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	s.logger.Error(ctx, "auth flow failed", "op", op, "error", err)
	return common.ErrorInternal
}

// throttle consults the limiter. An unavailable limiter lets the request
// through.
func (s *AuthService) throttle(ctx context.Context, scope, key string) error {
	err := s.limiter.Allow(ctx, scope, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrRateLimited):
		s.metrics.RecordAuth(ctx, scope, telemetry.OutcomeLimited)
		return err
	default:
		s.logger.Warn(ctx, "rate limiter unavailable, allowing request", "scope", scope, "error", err)
		return nil
	}
}

func (s *AuthService) record(ctx context.Context, event string, err error) {
	outcome := telemetry.OutcomeSuccess
	if err != nil {
		outcome = telemetry.OutcomeFailure
	}
	s.metrics.RecordAuth(ctx, event, outcome)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// issueSession mints an access/refresh pair and records the refresh
// session within tx.
func (s *AuthService) issueSession(ctx context.Context, tx dbx.DBTX, user *models.User, client models.ClientInfo) (*TokenPair, error) {
	access, expiresIn, err := s.codec.MintAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	raw, digest, expiresAt, err := s.codec.MintRefreshToken()
	if err != nil {
		return nil, err
	}

	err = s.repomanager.RefreshTokens(tx).Create(ctx, &models.RefreshSession{
		UserID:     user.ID,
		TokenHash:  digest,
		DeviceInfo: optional(client.DeviceInfo),
		IPAddress:  optional(client.IPAddress),
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: raw, TokenType: "bearer", ExpiresIn: expiresIn}, nil
}

// signIn stamps the login time and opens a session.
func (s *AuthService) signIn(ctx context.Context, tx dbx.DBTX, user *models.User, client models.ClientInfo) (*TokenPair, error) {
	now := s.now()
	if err := s.repomanager.Users(tx).UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now
	return s.issueSession(ctx, tx, user, client)
}

// issueOTP stores a fresh email verification code for the user and
// returns the raw code.
func (s *AuthService) issueOTP(ctx context.Context, tx dbx.DBTX, userID string) (string, error) {
	code, digest, err := s.codec.MintOTPCode(s.otpDigits)
	if err != nil {
		return "", err
	}
	err = s.repomanager.Verifications(tx).Create(ctx, &models.VerificationRecord{
		UserID:    userID,
		TokenHash: digest,
		Kind:      models.VerificationEmail,
		ExpiresAt: s.now().Add(s.otpValidityDuration),
	})
	if err != nil {
		return "", err
	}
	return code, nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User, code string) {
	if err := s.notifier.SendVerification(ctx, user.Email, user.GreetingName(), code, s.otpValidityDuration); err != nil {
		s.logger.Warn(ctx, "verification email not sent", "user_id", user.ID, "error", err)
	}
}

func (s *AuthService) sendPasswordReset(ctx context.Context, user *models.User, token string) {
	if err := s.notifier.SendPasswordReset(ctx, user.Email, user.GreetingName(), token, s.resetValidityDuration); err != nil {
		s.logger.Warn(ctx, "password reset email not sent", "user_id", user.ID, "error", err)
	}
}
