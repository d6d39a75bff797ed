package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"billing_chat_backend/internal/hibot"
	messagingservice "billing_chat_backend/internal/messaging/service"
	"billing_chat_backend/internal/scheduler"
	"billing_chat_backend/platform/config"
	"billing_chat_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hibotClient := hibot.NewClient(cfg, log)
	if hibotClient == nil {
		log.Error("HIBOT credentials not configured")
		panic("scheduler requires HIBOT_APP_ID, HIBOT_APP_SECRET and HIBOT_CHANNEL_ID")
	}

	worker, err := scheduler.NewWorker(cfg, messagingservice.NewDirectDispatcher(hibotClient, hibot.MediaKind(cfg.GetStickerMediaType())), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}
