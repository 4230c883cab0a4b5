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

	"github.com/timmy/grievo/internal/api"
	"github.com/timmy/grievo/internal/api/middleware"
	"github.com/timmy/grievo/internal/app"
	"github.com/timmy/grievo/internal/config"
	"github.com/timmy/grievo/internal/logger"
	"github.com/timmy/grievo/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	startedAt := time.Now()

	appLogger := logger.NewFromEnv(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	// Support CONFIG_PATH environment variable for production deployments
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize application")
	}
	defer application.Close()

	// Until seeding succeeds health reports degraded and classification answers 503;
	// the rest of the API is served meanwhile.
	seedDone := make(chan struct{})
	go func() {
		defer close(seedDone)
		seedCtx := logger.SetComponent(ctx, "startup")
		err := application.Classifier.KeepSeeding(seedCtx, service.SeedBackoff{
			Initial: cfg.Classifier.SeedRetryInitial,
			Max:     cfg.Classifier.SeedRetryMax,
		})
		if err != nil {
			logger.FromContext(seedCtx).WithError(err).Warn("Category seeding abandoned")
		}
	}()

	if cfg.Escalation.Enabled {
		if err := application.Scheduler.Start(ctx); err != nil {
			appLogger.WithError(err).Fatal("Failed to start escalation scheduler")
		}
	}

	router := api.SetupRouter(api.Services{
		Complaints:  application.Complaints,
		Attachments: application.Attachments,
		Dashboard:   application.Dashboard,
		Auth:        application.Auth,
		Classifier:  application.Classifier,
	}, api.RouterConfig{
		Mode: cfg.Server.Mode,
		CORS: middleware.CORSConfig{
			AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
			AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
		},
		Logger:    appLogger,
		StartedAt: startedAt,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if cfg.Server.RequestTimeout > 0 {
		srv.ReadTimeout = cfg.Server.RequestTimeout
		srv.WriteTimeout = cfg.Server.RequestTimeout
	}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.WithFields(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		appLogger.WithError(err).Error("Server stopped unexpectedly")
	}

	appLogger.Info("Shutting down server...")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Scheduler.Stop(shutdownCtx); err != nil {
		appLogger.WithError(err).Warn("Escalation sweep did not finish before shutdown")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Server forced to shutdown")
	}
	select {
	case <-seedDone:
	case <-shutdownCtx.Done():
	}

	appLogger.Info("Server exited")
}
