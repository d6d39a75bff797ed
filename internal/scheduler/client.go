// Package scheduler queues outbound chat messages on Redis through asynq and
// runs the worker that delivers them.
package scheduler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	msgdomain "billing_chat_backend/internal/messaging/domain"
	"billing_chat_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	sendMessageMaxRetry = 5
	sendMessageTimeout  = 30 * time.Second
	// sendMessageRetention keeps completed task ids around so a duplicate
	// enqueue of the same message is rejected.
	sendMessageRetention = time.Hour
)

type Client struct {
	client *asynq.Client
	queue  string
}

// MessageQueue enqueues outbound messages for background delivery.
type MessageQueue interface {
	EnqueueMessage(ctx context.Context, message msgdomain.OutboundMessage) error
}

func NewClient(cfg config.SchedulerConfig) (*Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queueName(cfg),
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueMessage queues a message. The message id doubles as the task id, so
// enqueuing the same message twice is a no-op.
func (c *Client) EnqueueMessage(ctx context.Context, message msgdomain.OutboundMessage) error {
	if c == nil || c.client == nil {
		return nil
	}

	task, err := NewSendMessageTask(message)
	if err != nil {
		return err
	}

	opts := []asynq.Option{
		asynq.Queue(c.queue),
		asynq.MaxRetry(sendMessageMaxRetry),
		asynq.Timeout(sendMessageTimeout),
		asynq.Retention(sendMessageRetention),
	}
	if message.ID != "" {
		opts = append(opts, asynq.TaskID(message.ID))
	}

	_, err = c.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

func queueName(cfg config.SchedulerConfig) string {
	if queue := cfg.GetAsynqQueueName(); queue != "" {
		return queue
	}
	return "default"
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
