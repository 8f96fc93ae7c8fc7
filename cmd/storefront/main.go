// Package main запускает HTTP-представление клиента витрины.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/storefront/internal/apiclient"
	"github.com/mmeshcher/storefront/internal/config"
	"github.com/mmeshcher/storefront/internal/credentials"
	"github.com/mmeshcher/storefront/internal/guard"
	"github.com/mmeshcher/storefront/internal/handler"
	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/service"
	"github.com/mmeshcher/storefront/internal/state"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	// .env необязателен: переменные окружения процесса имеют приоритет
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		sugar.Warnw("dotenv load error", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	var durable credentials.Store = credentials.NewMemoryStore()
	if cfg.TokenFile != "" {
		durable = credentials.NewFileStore(cfg.TokenFile)
	}
	creds := credentials.NewChain(durable, credentials.NewMemoryStore(), logger)

	client := apiclient.NewClient(apiclient.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.RequestTimeout,
		RetryMax:  cfg.RetryMax,
		RateLimit: cfg.RateLimit,
		Logger:    logger,
	}, creds)

	store := state.NewStore(logger)
	svc := service.NewService(client, store, creds, logger, service.WithSessionTTL(cfg.SessionTTL))

	if svc.RestoreSession() {
		sugar.Infow("session restored from stored token")
	}

	routeGuard := middleware.NewRouteGuard(guard.New(logger), creds, logger)
	h := handler.NewHandler(svc, logger, routeGuard)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Начальная загрузка каталога, корзины и заказов
	g.Go(func() error {
		if err := svc.Refresh(ctx); err != nil {
			sugar.Warnw("initial refresh failed", "error", err.Error())
		}
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting storefront", "addr", cfg.RunAddress, "api", client.BaseURL())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
