package scheduler

import (
	"context"
	"fmt"

	msgdomain "billing_chat_backend/internal/messaging/domain"
	"billing_chat_backend/platform/config"
	"billing_chat_backend/platform/logger"
	"billing_chat_backend/platform/phone"

	"github.com/hibiken/asynq"
)

// MessageDeliverer sends a message to the messaging provider right away.
type MessageDeliverer interface {
	Deliver(ctx context.Context, message msgdomain.OutboundMessage) error
}

type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	deliverer MessageDeliverer
	log       *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, deliverer MessageDeliverer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		deliverer: deliverer,
		log:       log,
	}

	mux.HandleFunc(TaskSendMessage, w.handleSendMessage)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleSendMessage(ctx context.Context, task *asynq.Task) error {
	message, err := ParseSendMessagePayload(task)
	if err != nil {
		// Malformed payloads are archived without retries.
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	if err := w.deliverer.Deliver(ctx, message); err != nil {
		w.log.Warn("queued message delivery failed", "messageId", message.ID, "kind", message.Kind, "error", err)
		return err
	}

	w.log.MessageDispatched(phone.Display(message.Destination), string(message.Kind), true)
	return nil
}
