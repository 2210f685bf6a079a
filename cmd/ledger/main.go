// Package main запускает HTTP-сервер кошелька, покупок курсов и прогресса просмотра.
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

	"github.com/mmeshcher/eduhive-ledger/internal/catalog"
	"github.com/mmeshcher/eduhive-ledger/internal/config"
	"github.com/mmeshcher/eduhive-ledger/internal/handler"
	"github.com/mmeshcher/eduhive-ledger/internal/metrics"
	"github.com/mmeshcher/eduhive-ledger/internal/middleware"
	"github.com/mmeshcher/eduhive-ledger/internal/repository"
	"github.com/mmeshcher/eduhive-ledger/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	// .env необязателен, переменные окружения процесса не перезаписываются
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		sugar.Warnw("failed to load .env file", "error", err.Error())
	}

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	if cfg.JWTSecret == "" {
		sugar.Warn("JWT_SECRET is not set, access tokens from the identity service will be rejected")
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var source catalog.Source = repo
	if cfg.CatalogAddress != "" {
		source = catalog.NewClient(cfg.CatalogAddress)
		sugar.Infow("using remote course catalog", "addr", cfg.CatalogAddress)
	}

	if cfg.RedisURL != "" {
		rdb, err := catalog.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer rdb.Close()
		source = catalog.NewCache(source, rdb, cfg.CatalogCacheTTL, logger)
	}

	m := metrics.New()

	svc := service.NewService(repo, source, m, logger)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret)
	h := handler.NewHandler(svc, logger, authMiddleware, m, repo)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Периодическая сверка балансов с журналом
	g.Go(func() error {
		svc.StartLedgerAudit(ctx, cfg.AuditInterval)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting ledger server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
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
