package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"itemstore/internal/app"
	"itemstore/internal/config"
	"itemstore/internal/pkg/auth"
	"itemstore/internal/pkg/logger"
	"itemstore/internal/pkg/metrics"
	"itemstore/internal/service"
	"itemstore/internal/storage"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	l, err := logger.CreateLogger(config.LogLevel)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer l.Sync()

	m := metrics.NewMetrics()
	store := storage.NewFileStorage(config.DataPath, config.SerializeWrites, l, m)
	if err := store.EnsureExists(); err != nil {
		l.Fatal("failed to prepare data file", zap.String("path", config.DataPath), zap.Error(err))
	}

	users := storage.NewUserStore(config.BcryptCost)
	if err := users.Seed(storage.DemoUsers); err != nil {
		l.Fatal("failed to seed users", zap.Error(err))
	}

	app := app.NewApp(store, users, auth.NewTokenManager(config.SecretKey), l)
	service := service.NewService(app, config.ServerRunAddress, config.CORSOrigins, m, l)
	server := service.Server()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if config.WatchDataFile {
		watcher, err := storage.NewWatcher(store)
		if err != nil {
			l.Fatal("failed to watch data file", zap.Error(err))
		}
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	g.Go(func() error {
		l.Info("listening", zap.String("address", config.ServerRunAddress), zap.String("data", config.DataPath))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		const shutdownTimeout = 30 * time.Second
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		l.Fatal("server stopped", zap.Error(err))
	}
}
