package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	handler "websites-content-system/api"
	"websites-content-system/pkg/config"
	"websites-content-system/pkg/database"
	"websites-content-system/pkg/logger"
	"websites-content-system/pkg/sites"
)

func main() {
	cfg := config.GetCached()
	log := logger.Must(cfg)
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	app, err := handler.Build(cfg)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WatchRepositories {
		watcher := watchRepositories(ctx, cfg, app)
		if watcher != nil {
			defer watcher.Stop()
		}
	}

	scheduler := app.Scheduler(cfg)
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		_ = scheduler.Run(ctx)
	}()

	go func() {
		log.Info("server listening",
			zap.String("addr", addr),
			zap.String("environment", cfg.Environment),
			zap.Strings("projects", cfg.Projects))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
	<-schedulerDone
	if err := database.ResetPool(); err != nil {
		log.Warn("closing database", zap.Error(err))
	}
	log.Info("bye")
}

// watchRepositories starts a template watcher over every configured project
// that has a checkout.
func watchRepositories(ctx context.Context, cfg *config.Config, app *handler.App) *sites.Watcher {
	watcher, err := sites.NewWatcher(app.Repo, app.Logger)
	if err != nil {
		app.Logger.Warn("template watcher unavailable", zap.Error(err))
		return nil
	}
	for _, project := range cfg.Projects {
		if err := watcher.Add(project); err != nil {
			app.Logger.Warn("not watching project", zap.String("project", project), zap.Error(err))
		}
	}
	watcher.Start(ctx)
	app.Logger.Info("watching templates", zap.Strings("projects", watcher.Projects()))
	return watcher
}
