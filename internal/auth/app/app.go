package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	httpapi "github.com/tabsession/sessiond/internal/auth/http"
	"github.com/tabsession/sessiond/internal/auth/service"
	redisdriver "github.com/tabsession/sessiond/internal/auth/store/drivers/redis"
	"github.com/tabsession/sessiond/internal/auth/store/drivers/sqlite"
	"github.com/tabsession/sessiond/pkg/jwtx"
	"github.com/tabsession/sessiond/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the session service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	users  *sqlite.Store
	rdb    *goredis.Client
	tokens *redisdriver.Store

	sessionService      *service.SessionService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "sessiond",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initStores(); err != nil {
		return nil, err
	}
	if err := app.initServices(); err != nil {
		_ = app.users.Close()
		_ = app.rdb.Close()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("sessiond starting", "port", app.cfg.Port, "version", BuildVersion)

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

// Shutdown stops the server, the housekeeping worker, and both stores.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down sessiond...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.rdb.Close(); err != nil {
		app.logger.Error("error closing token store client", "error", err)
	}
	if err := app.users.Close(); err != nil {
		app.logger.Error("error closing user database", "error", err)
		return err
	}

	app.logger.Info("sessiond stopped")
	return nil
}

// initStores opens the SQLite user store, applies migrations, and connects
// the Redis refresh-token store.
func (app *Application) initStores() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	users, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to open user database: %w", err)
	}
	if err := users.ApplyMigrations(); err != nil {
		_ = users.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	app.users = users
	app.logger.Info("database migrations applied successfully")

	app.rdb = goredis.NewClient(&goredis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
	})
	app.tokens = redisdriver.NewStore(app.rdb, app.cfg.StoreTimeout)

	// Fail fast on an unreachable token store rather than on the first
	// login.
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.StoreTimeout)
	defer cancel()
	if err := app.tokens.Ping(ctx); err != nil {
		_ = app.users.Close()
		_ = app.rdb.Close()
		return fmt.Errorf("refresh-token store unreachable at %s: %w", app.cfg.RedisAddr, err)
	}

	return nil
}

func (app *Application) initServices() error {
	accessCodec, err := jwtx.NewCodec([]byte(app.cfg.AccessSecret), app.cfg.Issuer, app.cfg.AccessTTL)
	if err != nil {
		return fmt.Errorf("access codec: %w", err)
	}
	refreshCodec, err := jwtx.NewCodec([]byte(app.cfg.RefreshSecret), app.cfg.Issuer, app.cfg.RefreshTTL)
	if err != nil {
		return fmt.Errorf("refresh codec: %w", err)
	}

	app.sessionService, err = service.NewSessionService(
		app.users,
		app.tokens,
		accessCodec,
		refreshCodec,
		app.cfg.RevocationPolicy,
		app.cfg.MaxActiveSessions,
	)
	if err != nil {
		return err
	}

	app.userService = &service.UserService{Users: app.users}

	app.housekeepingService = service.NewHousekeepingService(
		app.tokens,
		app.logger,
		app.cfg.HousekeepingInterval,
	)

	app.logger.Info("revocation policy active",
		"policy", string(app.cfg.RevocationPolicy),
		"max_active_sessions", app.cfg.MaxActiveSessions,
	)
	return nil
}

func (app *Application) initHTTP() {
	accessCodec := app.sessionService.AccessCodec
	router := httpapi.NewRouter(
		accessCodec,
		app.cfg.Env == "prod",
		app.users,
		app.tokens,
		app.logger,
	)
	router.SessionService = app.sessionService
	router.UserService = app.userService
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: router,
	}
}
