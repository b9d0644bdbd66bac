// Package server initializes and runs the sync backend: database,
// services, HTTP router and graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/wassertech/fieldsync/internal/common"
	"github.com/wassertech/fieldsync/internal/logging"
	"github.com/wassertech/fieldsync/internal/server/config"
	"github.com/wassertech/fieldsync/internal/server/httpapi"
	"github.com/wassertech/fieldsync/internal/server/services"
	"github.com/wassertech/fieldsync/internal/server/store"
)

// App is the assembled backend.
type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	router http.Handler
}

// NewApp connects to the database, runs migrations and wires the services.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewDefault()

	db, err := store.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	userService := services.NewUserService(store.NewUsers(db), cfg)
	syncService := services.NewSyncService(db, logger)
	reportService := services.NewReportService(db, cfg)

	app := &App{
		config: cfg,
		logger: logger,
		db:     db,
		router: httpapi.NewRouter(userService, syncService, reportService, []byte(cfg.SecretKey), logger),
	}

	if err := app.ensureAdmin(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

// ensureAdmin creates the bootstrap admin account when ADMIN_EMAIL and
// ADMIN_PASSWORD are set and the account does not exist yet.
func (app *App) ensureAdmin(ctx context.Context) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	users := store.NewUsers(app.db)
	_, err := users.GetByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	hash, err := services.HashPassword(password)
	if err != nil {
		return err
	}
	if err := users.Create(ctx, &store.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         "ADMIN",
	}); err != nil {
		return err
	}

	app.logger.Info(ctx, "bootstrap admin created", "email", email)
	return nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (app *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.router,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "server listening", "addr", app.config.EndpointAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return app.db.Close()
}
