// Package httpapi exposes the auth flows over JSON/HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/soultalk/internal/logging"
	"github.com/dmitrijs2005/soultalk/internal/server/auth"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
	"github.com/dmitrijs2005/soultalk/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// AuthService is the subset of services.AuthService the handlers use.
type AuthService interface {
	Register(ctx context.Context, email, password, firstName, lastName string) (*models.User, error)
	Login(ctx context.Context, email, password string, client models.ClientInfo) (*services.TokenPair, error)
	RefreshTokens(ctx context.Context, raw string, client models.ClientInfo) (*services.TokenPair, error)
	Logout(ctx context.Context, raw string) (bool, error)
	LogoutAllDevices(ctx context.Context, userID string) (int64, error)
	VerifyEmail(ctx context.Context, email, code string, client models.ClientInfo) (*models.User, *services.TokenPair, error)
	ResendVerification(ctx context.Context, email string) (bool, error)
	RequestPasswordReset(ctx context.Context, email string) (services.ResetOutcome, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	SetPasswordForSocialUser(ctx context.Context, userID, password string) error
	SocialSignIn(ctx context.Context, id *models.Identity, client models.ClientInfo) (*models.User, *services.TokenPair, error)
	LinkProvider(ctx context.Context, userID string, id *models.Identity) (*models.LinkedProvider, error)
	UnlinkProvider(ctx context.Context, userID, providerName string) error
	GetProfile(ctx context.Context, userID string) (*services.Profile, error)
	UpdateProfile(ctx context.Context, userID string, patch *models.ProfilePatch) (*models.User, error)
	IsUsernameAvailable(ctx context.Context, username, userID string) (bool, error)
	ListLinkedAccounts(ctx context.Context, userID string) ([]*models.LinkedProvider, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	Introspect(token string) (*auth.AccessClaims, error)
}

// IdentityVerifier turns a provider token into a verified identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, p models.Provider, rawToken string) (*models.Identity, error)
}

type Options struct {
	Address        string
	AllowedOrigins []string
	// AppResetURL is the deep link the reset email link redirects to.
	AppResetURL string
}

type Server struct {
	opts       Options
	auth       AuthService
	identities IdentityVerifier
	logger     logging.Logger
	handler    http.Handler
}

func NewServer(opts Options, a AuthService, v IdentityVerifier, l logging.Logger) *Server {
	s := &Server{
		opts:       opts,
		auth:       a,
		identities: v,
		logger:     l.With("module", "http_server"),
	}
	s.handler = s.routes()
	return s
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.recoverer)
	r.Use(s.tracing)
	r.Use(s.accessLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Post("/refresh", s.refresh)
		r.Post("/logout", s.logout)
		r.Post("/verify-email", s.verifyEmail)
		r.Post("/resend-verification", s.resendVerification)
		r.Post("/forgot-password", s.forgotPassword)
		r.Post("/reset-password", s.resetPassword)
		r.Get("/reset-password/{token}/open", s.openResetLink)

		r.Post("/google", s.socialSignIn(models.ProviderGoogle))
		r.Post("/facebook", s.socialSignIn(models.ProviderFacebook))

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)
			r.Get("/me", s.me)
			r.Get("/verify-token", s.verifyToken)
			r.Post("/logout-all", s.logoutAll)
			r.Post("/change-password", s.changePassword)
			r.Post("/set-password", s.setPassword)
			r.Get("/linked-accounts", s.linkedAccounts)
			r.Post("/link/{provider}", s.linkProvider)
			r.Delete("/link/{provider}", s.unlinkProvider)
		})
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(s.requireUser)
		r.Get("/me", s.me)
		r.Patch("/me", s.updateProfile)
		r.Get("/username-available", s.usernameAvailable)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
