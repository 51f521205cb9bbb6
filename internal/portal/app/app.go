package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	httpapi "github.com/tramita/portal/internal/portal/http"
	"github.com/tramita/portal/internal/portal/service"
	"github.com/tramita/portal/internal/portal/store"
	"github.com/tramita/portal/internal/portal/store/drivers/sqlite"
	"github.com/tramita/portal/pkg/httpx"
	"github.com/tramita/portal/pkg/limitx"
	"github.com/tramita/portal/pkg/slogx"
	"github.com/tramita/portal/pkg/tokenx"
	"github.com/tramita/portal/pkg/totpx"
)

// BuildVersion should be set at build time via ldflags. Later problem
const BuildVersion = "v0.1.0"

// Route treatment for the auth gate. Everything not listed requires a
// verified session.
var (
	publicRoutes = []string{
		"/auth/login",
		"/auth/2fa/verify",
		"/auth/register",
		"/auth/verify-email",
		"/auth/reset-password",
		"/livez",
		"/readyz",
	}
	unverifiedRoutes = []string{
		"/auth/logout",
		"/me",
	}
	adminRoutes = []string{
		"/admin",
	}
)

// Application wires the portal's auth subsystem together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      store.Store
	keys    *tokenx.KeySet
	tokens  *tokenx.Service
	limiter *limitx.Limiter

	authService      *service.AuthService
	twoFactorService *service.TwoFactorService
	resetService     *service.ResetService
	accountService   *service.AccountService
	directoryService *service.DirectoryService
	housekeeping     *service.HousekeepingService

	server *http.Server
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "portal-auth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initTokens(); err != nil {
		return nil, err
	}
	app.initLimiter()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("portal auth starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains the server, stops the sweeper, and closes the store.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down portal auth...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("portal auth stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	app.db = db
	return nil
}

func (app *Application) initTokens() error {
	var (
		signer tokenx.Signer
		err    error
	)
	if app.cfg.SigningKeyFile != "" {
		pemKey, readErr := os.ReadFile(app.cfg.SigningKeyFile)
		if readErr != nil {
			return fmt.Errorf("failed to read signing key: %w", readErr)
		}
		signer, err = tokenx.NewSignerFromPEM(app.cfg.SigningKeyID, pemKey)
	} else {
		// Ephemeral key: every session dies with a restart, which is
		// the accepted default for single-instance deployments.
		signer, err = tokenx.GenerateSigner(app.cfg.SigningKeyID)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize signing key: %w", err)
	}

	app.keys = tokenx.NewKeySet()
	app.keys.AddSigner(signer)

	app.tokens = &tokenx.Service{
		Signer:      signer,
		Verifier:    tokenx.NewVerifier(app.keys, app.cfg.Issuer),
		Revocations: store.NewRevocationAdapter(app.db),
		Issuer:      app.cfg.Issuer,
		Lifetime:    app.cfg.TokenLifetime,
		FailOpen:    app.cfg.TokenFailOpen,
		Logger:      app.logger,
	}
	return nil
}

func (app *Application) initLimiter() {
	var buckets limitx.BucketStore
	if app.cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: app.cfg.RedisAddr})
		buckets = limitx.NewRedisStore(client)
		app.logger.Info("rate limit buckets in redis", "addr", app.cfg.RedisAddr)
	} else {
		buckets = limitx.NewMemoryStore()
	}

	app.limiter = limitx.New(buckets)
	app.limiter.Logger = app.logger
	if app.cfg.LimiterFailClosed {
		app.limiter.Policy = limitx.FailClosed
	}
}

func (app *Application) initServices() {
	totpEngine := totpx.NewEngine(app.cfg.TOTPIssuer)
	mailer := &service.LogMailer{Logger: app.logger}

	app.authService = &service.AuthService{
		Store:   app.db,
		Tokens:  app.tokens,
		Limiter: app.limiter,
		TOTP:    totpEngine,
	}
	app.twoFactorService = &service.TwoFactorService{
		Store: app.db,
		TOTP:  totpEngine,
	}
	app.resetService = &service.ResetService{
		Store:   app.db,
		Limiter: app.limiter,
		Mailer:  mailer,
	}
	app.accountService = &service.AccountService{
		Store:  app.db,
		Mailer: mailer,
	}
	app.directoryService = &service.DirectoryService{Store: app.db}

	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.limiter,
		app.tokens.Revocations,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	gate := httpx.NewGate(app.tokens, httpx.GateConfig{
		Public:           publicRoutes,
		Unverified:       unverifiedRoutes,
		Admin:            adminRoutes,
		VerifyEmailPath:  app.cfg.VerifyEmailPath,
		RefreshThreshold: app.cfg.RefreshThreshold,
		CookieMaxAge:     app.cfg.TokenLifetime,
		CookieSecure:     app.cfg.CookieSecure,
	})
	gate.Logger = app.logger

	router := &httpapi.Router{
		Logger:   app.logger,
		Store:    app.db,
		Keys:     app.keys,
		Gate:     gate,
		Throttle: httpx.ThrottleConfig{
			RequestsPerWindow: app.cfg.ThrottleRequests,
			Window:            app.cfg.ThrottleWindow,
			Burst:             app.cfg.ThrottleRequests,
		},

		Auth:      app.authService,
		TwoFactor: app.twoFactorService,
		Reset:     app.resetService,
		Accounts:  app.accountService,
		Directory: app.directoryService,
		Limiter:   app.limiter,

		CORSOrigins:  app.cfg.CORSOrigins,
		Version:      BuildVersion,
		CookieMaxAge: app.cfg.TokenLifetime,
		CookieSecure: app.cfg.CookieSecure,
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
