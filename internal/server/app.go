// Package server wires the auth service together: storage, rate limiting,
// mail delivery, identity verification and telemetry. It runs the HTTP API
// and the gRPC health endpoint until a signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/soultalk/internal/logging"
	"github.com/dmitrijs2005/soultalk/internal/server/config"
	gs "github.com/dmitrijs2005/soultalk/internal/server/grpc"
	"github.com/dmitrijs2005/soultalk/internal/server/httpapi"
	"github.com/dmitrijs2005/soultalk/internal/server/identity"
	"github.com/dmitrijs2005/soultalk/internal/server/limiter"
	"github.com/dmitrijs2005/soultalk/internal/server/models"
	"github.com/dmitrijs2005/soultalk/internal/server/notify"
	"github.com/dmitrijs2005/soultalk/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/soultalk/internal/server/services"
	"github.com/dmitrijs2005/soultalk/internal/server/telemetry"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	redis       *redis.Client
	dispatcher  *notify.Dispatcher
	metrics     *telemetry.Metrics
	repos       repomanager.RepositoryManager
	identities  *identity.Registry
	authService *services.AuthService

	shutdownTracing func(context.Context) error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{
		config: c,
		logger: logging.New(os.Stdout, c.LogLevel, c.LogFormat),
		repos:  repomanager.NewPostgresRepositoryManager(),
	}

	shutdown, err := telemetry.SetupTracing(ctx, c.ServiceName, c.OTELEndpoint)
	if err != nil {
		return nil, fmt.Errorf("tracing init error: %w", err)
	}
	app.shutdownTracing = shutdown

	app.metrics, err = telemetry.NewMetrics(otel.Meter(c.ServiceName))
	if err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("metrics init error: %w", err)
	}

	if err := app.openDatabase(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}

	lim, err := app.newLimiter(ctx)
	if err != nil {
		app.close(ctx)
		return nil, err
	}

	mailer, err := app.newMailer(ctx)
	if err != nil {
		app.close(ctx)
		return nil, err
	}
	app.dispatcher = notify.NewDispatcher(mailer, notify.DispatcherConfig{
		QueueSize:   c.MailQueueSize,
		Workers:     c.MailWorkers,
		SendTimeout: 30 * time.Second,
	}, app.logger, app.metrics)
	if err := app.metrics.ObserveQueue(app.dispatcher); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("metrics init error: %w", err)
	}

	app.identities = identity.NewRegistry()
	if len(c.GoogleClientIDs) > 0 {
		google, err := identity.NewGoogleVerifier(ctx, c.GoogleClientIDs, identity.GoogleCertsURL)
		if err != nil {
			app.close(ctx)
			return nil, err
		}
		app.identities.Register(models.ProviderGoogle, google)
	}
	if c.FacebookAppID != "" {
		app.identities.Register(models.ProviderFacebook, identity.NewFacebookVerifier(c.FacebookAppID, c.FacebookAppSecret, nil))
	}

	app.authService = services.NewAuthService(app.db, app.repos, c,
		services.WithNotifier(app.dispatcher),
		services.WithLimiter(lim),
		services.WithMetrics(app.metrics),
		services.WithLogger(app.logger),
	)

	return app, nil
}

func (app *App) openDatabase(ctx context.Context) error {
	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping error: %w", err)
	}
	if err := app.repos.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("db migration error: %w", err)
	}
	return nil
}

func (app *App) policies() limiter.Policies {
	c := app.config
	return limiter.Policies{
		limiter.ScopeLogin:              {Limit: c.LoginLimit.Attempts, Window: c.LoginLimit.Window},
		limiter.ScopeVerifyEmail:        {Limit: c.VerifyEmailLimit.Attempts, Window: c.VerifyEmailLimit.Window},
		limiter.ScopeResendVerification: {Limit: c.ResendLimit.Attempts, Window: c.ResendLimit.Window},
		limiter.ScopePasswordReset:      {Limit: c.PasswordResetLimit.Attempts, Window: c.PasswordResetLimit.Window},
	}
}

// newLimiter prefers the shared Redis window and falls back to
// per-process buckets while Redis is unreachable.
func (app *App) newLimiter(ctx context.Context) (limiter.Limiter, error) {
	local := limiter.NewLocal(app.policies())
	if app.config.RedisURL == "" {
		app.logger.Info(ctx, "rate limiting is per process")
		return local, nil
	}

	opts, err := redis.ParseURL(app.config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}
	app.redis = redis.NewClient(opts)
	if err := app.redis.Ping(ctx).Err(); err != nil {
		app.logger.Warn(ctx, "redis unreachable at startup", "error", err)
	}
	return limiter.NewFallback(limiter.NewRedis(app.redis, app.policies()), local, app.logger), nil
}

func (app *App) newMailer(ctx context.Context) (*notify.Mailer, error) {
	c := app.config

	var transport notify.Transport
	switch c.MailTransport {
	case "smtp":
		smtp, err := notify.NewSMTPTransport(notify.SMTPSettings{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("smtp init error: %w", err)
		}
		transport = smtp
	case "s3":
		client, err := notify.NewS3Client(ctx, notify.S3Settings{
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		transport = notify.NewS3Transport(client, c.S3Bucket)
	default:
		transport = notify.NewLogTransport(app.logger)
	}

	m, err := notify.NewMailer(transport, c.MailFrom, c.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("mailer init error: %w", err)
	}
	return m, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(httpapi.Options{
		Address:        app.config.EndpointAddrHTTP,
		AllowedOrigins: app.config.AllowedOrigins,
		AppResetURL:    app.config.AppResetURL,
	}, app.authService, app.identities, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.EndpointAddrGRPC, app.db, app.config.HealthCheckInterval, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.close(context.WithoutCancel(ctx))
	app.logger.Info(ctx, "Stopped")
}

// close releases resources in reverse order of acquisition. Queued mail
// is delivered before the database goes away.
func (app *App) close(ctx context.Context) {
	if app.dispatcher != nil {
		app.dispatcher.Close()
	}
	if app.metrics != nil {
		_ = app.metrics.Close()
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
	if app.shutdownTracing != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := app.shutdownTracing(shutdownCtx); err != nil {
			app.logger.Warn(ctx, "tracing shutdown", "error", err)
		}
	}
}
