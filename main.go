// Generic Database Role Provider
// Copyright (c) 2024 Generic Database Role Provider
// Licensed under the MIT License. See LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"generic-role-provider/internal/adapters/driven/persistence/policy"
	"generic-role-provider/internal/adapters/driven/persistence/rolestore"
	"generic-role-provider/internal/adapters/driven/persistence/sqlexec"
	"generic-role-provider/internal/adapters/driving/httpapi"
	"generic-role-provider/internal/config"
	"generic-role-provider/internal/core/services"
	"generic-role-provider/internal/logger"
)

// application holds the wired role provider and the pool it owns.
type application struct {
	db      *gorm.DB
	store   *rolestore.Store
	handler http.Handler
}

// newApplication opens the configured connection, verifies the role tables
// and wires the services behind the HTTP API.
func newApplication(ctx context.Context, cfg *config.Config, log *zap.Logger) (*application, error) {
	conn, err := cfg.Connection()
	if err != nil {
		return nil, err
	}

	db, err := conn.Open(&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, err
	}
	app := &application{db: db}

	opts := []rolestore.Option{rolestore.WithLogger(log)}
	if cfg.ScopedTransactions {
		opts = append(opts, rolestore.WithScopedTransactions())
	}
	if cfg.UUIDRoleIDs {
		opts = append(opts, rolestore.WithUUIDRoleIDs())
	}

	store, err := rolestore.NewFromDB(db, cfg.Mapping, opts...)
	if err != nil {
		app.Close()
		return nil, err
	}
	if err := store.CheckSchema(ctx); err != nil {
		app.Close()
		return nil, err
	}
	app.store = store

	perms, err := policy.NewPermissionRepository(db, cfg.PermissionTable)
	if err != nil {
		app.Close()
		return nil, err
	}

	handler := httpapi.NewHandler(
		services.NewRoleServiceImpl(store, perms, log),
		services.NewPermissionEnforcerImpl(store, perms, log),
		store,
		log,
		httpapi.WithAllowedOrigins(cfg.AllowedOrigins...),
	)
	app.handler = handler.Router()

	log.Info("role provider ready",
		zap.String("connection", conn.Name),
		zap.String("provider", conn.ProviderName),
		zap.Bool("scoped_transactions", cfg.ScopedTransactions),
	)
	return app, nil
}

// Close releases the connection pool.
func (a *application) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func run(ctx context.Context, log *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize role provider: %w", err)
	}
	defer app.Close()

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      app.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting role provider", zap.String("addr", cfg.Addr), zap.Strings("providers", sqlexec.Providers()))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

// main initializes and starts the role provider
func main() {
	log, err := logger.New(os.Getenv(config.Prefix + "_LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil {
		log.Fatal("role provider stopped", zap.Error(err))
	}
}
