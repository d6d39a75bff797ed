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

	"billing_chat_backend/internal/billing"
	"billing_chat_backend/internal/events"
	"billing_chat_backend/internal/hibot"
	apphttp "billing_chat_backend/internal/http"
	"billing_chat_backend/internal/http/router"
	"billing_chat_backend/internal/messaging"
	messagingservice "billing_chat_backend/internal/messaging/service"
	"billing_chat_backend/internal/scheduler"
	"billing_chat_backend/platform/config"
	"billing_chat_backend/platform/logger"
	"billing_chat_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	dispatcher, closeDispatcher := initDispatcher(cfg, log)
	if closeDispatcher != nil {
		defer closeDispatcher()
	}

	// ========================================================================
	// Domain Modules
	// ========================================================================

	billingModule := billing.NewModule(cfg, eventBus, val, log)

	if err := withRetry(ctx, log, "billing api reachability", 3, 2*time.Second, func() error {
		return billingModule.Service().Ping(ctx)
	}); err != nil {
		// The API may come up later; /api/health reports it until then.
		log.Warn("billing api not reachable at startup", "error", err)
	}

	messagingSvc := messagingservice.New(dispatcher, billingModule.Service(), cfg.GetStickerURL(), log)
	messagingModule := messaging.NewModule(messagingSvc, val)
	messagingModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   billingModule.Service(),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			billingModule,
			messagingModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initDispatcher queues messages on Redis when REDIS_URL is set and sends them
// inline otherwise. It returns nil when Hibot is not configured either.
func initDispatcher(cfg *config.Config, log *logger.Logger) (messagingservice.Dispatcher, func()) {
	if cfg.GetRedisURL() != "" {
		queueClient, err := scheduler.NewClient(cfg)
		if err == nil {
			log.Info("outbound messages are queued", "queue", cfg.GetAsynqQueueName())
			return messagingservice.NewQueuedDispatcher(queueClient), func() {
				_ = queueClient.Close()
			}
		}
		log.Error("failed to initialize message queue client, sending inline", "error", err)
	}

	hibotClient := hibot.NewClient(cfg, log)
	if hibotClient == nil {
		log.Warn("HIBOT credentials not configured; outbound messaging disabled")
		return nil, nil
	}
	return messagingservice.NewDirectDispatcher(hibotClient, hibot.MediaKind(cfg.GetStickerMediaType())), nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
