// Package main запускает HTTP-сервер витрины.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/storefront/internal/assistant"
	"github.com/mmeshcher/storefront/internal/config"
	"github.com/mmeshcher/storefront/internal/content"
	"github.com/mmeshcher/storefront/internal/handler"
	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/payment"
	"github.com/mmeshcher/storefront/internal/ratelimit"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/service"
	"github.com/mmeshcher/storefront/internal/settings"
)

const assistantWindow = time.Minute

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	seed, err := config.LoadStoreSettings(cfg.StoreSettingsFile)
	if err != nil {
		sugar.Fatalw("store settings file error", "error", err.Error())
	}
	storeSettings, err := service.LoadSettings(ctx, repo, seed)
	if err != nil {
		sugar.Fatalw("store settings initialization error", "error", err.Error())
	}
	holder := settings.NewHolder(storeSettings)

	if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
		sugar.Warn("stripe is not fully configured, checkout or webhooks will be rejected")
	}
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	svc := service.NewService(repo, gateway, holder, logger, service.Options{
		ClientURL:  cfg.ClientURL,
		Currency:   cfg.Currency,
		AdminEmail: cfg.AdminEmail,
	})
	defer svc.Close()

	var completer assistant.Completer
	if cfg.AssistantAPIURL != "" && cfg.AssistantAPIKey != "" {
		completer = assistant.NewClient(cfg.AssistantAPIURL, cfg.AssistantAPIKey, cfg.AssistantModel)
	} else {
		sugar.Info("assistant is not configured")
	}
	assistantSvc := assistant.NewService(completer, repo, holder, logger)

	store, closeStore := newContentStore(ctx, cfg, sugar)
	defer closeStore()

	limiter, closeLimiter := newLimiter(ctx, cfg, sugar)
	defer closeLimiter()

	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is empty, sessions will not survive a restart")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, assistantSvc, store, limiter, logger, authMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Повторное выполнение заказов, не завершённых при обработке вебхука
	g.Go(func() error {
		svc.StartFulfillmentRetries(ctx, cfg.RetryInterval)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting storefront server", "addr", cfg.RunAddress)
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

func newContentStore(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (content.Store, func()) {
	if cfg.MongoURI == "" {
		sugar.Info("MONGO_URI is empty, homepage content is kept in memory")
		return content.NewMemoryStore(), func() {}
	}

	store, err := content.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		sugar.Fatalw("mongo initialization error", "error", err.Error())
	}
	return store, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			sugar.Warnw("mongo disconnect error", "error", err.Error())
		}
	}
}

func newLimiter(ctx context.Context, cfg *config.Config, sugar *zap.SugaredLogger) (ratelimit.Limiter, func()) {
	if cfg.RedisURL == "" {
		l := ratelimit.NewMemoryLimiter(cfg.AssistantRateLimit, assistantWindow)
		l.StartCleanup(ctx, assistantWindow)
		return l, func() {}
	}

	l, err := ratelimit.NewRedisLimiter(ctx, cfg.RedisURL, cfg.AssistantRateLimit, assistantWindow)
	if err != nil {
		sugar.Fatalw("redis initialization error", "error", err.Error())
	}
	return l, func() { _ = l.Close() }
}
