package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ce-fello/bugbash-service/src/internal/api"
	"github.com/ce-fello/bugbash-service/src/internal/config"
	"github.com/ce-fello/bugbash-service/src/internal/service"
	"github.com/ce-fello/bugbash-service/src/internal/store"
	"github.com/ce-fello/bugbash-service/src/internal/workitems"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", getenv("CONFIG_FILE", ""), "path to a YAML config file")
	migDir := flag.String("migrations", "", "migrations directory, overrides the config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)
	sugar := logger.Sugar()

	if *migDir != "" {
		cfg.Database.MigrationsDir = *migDir
	}

	startCtx, stopStart := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	db, err := store.Open(startCtx, store.OpenOptions{
		URL:          cfg.DatabaseURL,
		Attempts:     cfg.Database.ConnectAttempts,
		Delay:        cfg.Database.ConnectDelay,
		MaxOpenConns: cfg.Database.MaxOpenConns,
	}, logger)
	stopStart()
	if err != nil {
		sugar.Fatalf("document store unavailable: %v", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			sugar.Errorf("failed to close document store: %v", err)
		}
	}(db)

	if _, err := store.Migrate(db, cfg.Database.MigrationsDir, logger); err != nil {
		sugar.Fatalf("schema migration failed: %v", err)
	}

	repos := store.NewRepositories(db, logger)
	wit := workitems.NewHTTPClient(cfg.WorkItems.BaseURL, cfg.WorkItems.ProjectID, cfg.WorkItems.APIVersion,
		cfg.WorkItems.Token, cfg.WorkItems.Timeout, logger)
	session := service.NewSession(repos, wit, service.StaticIdentity(cfg.Identity()), cfg.WorkItems.Type, logger)
	h := api.NewHandler(session, logger)

	r := chi.NewRouter()
	r.Use(api.RequestIDMiddleware, api.LoggerMiddleware(logger), api.Recoverer(logger))
	api.RegisterRoutes(r, h)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 40 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sugar.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	sugar.Infof("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		sugar.Errorf("server forced to shutdown: %v", err)
	}
	sugar.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return cfg.Build()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

