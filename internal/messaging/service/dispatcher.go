package service

import (
	"context"
	"fmt"

	"billing_chat_backend/internal/hibot"
	"billing_chat_backend/internal/messaging/domain"
	"billing_chat_backend/internal/scheduler"
)

// Dispatcher hands an outbound message off for delivery. queued reports
// whether delivery happens later on the background worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, message domain.OutboundMessage) (queued bool, err error)
}

// Sender is the provider surface used for inline delivery.
type Sender interface {
	SendText(ctx context.Context, destination string, text string) error
	SendMedia(ctx context.Context, destination string, mediaURL string, kind hibot.MediaKind) error
}

// DirectDispatcher sends messages inline. It also serves as the delivery
// step of the queue worker.
type DirectDispatcher struct {
	sender      Sender
	stickerKind hibot.MediaKind
}

// NewDirectDispatcher sends stickers as stickerKind; anything but
// hibot.MediaSticker means image.
func NewDirectDispatcher(sender Sender, stickerKind hibot.MediaKind) *DirectDispatcher {
	if stickerKind != hibot.MediaSticker {
		stickerKind = hibot.MediaImage
	}
	return &DirectDispatcher{sender: sender, stickerKind: stickerKind}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, message domain.OutboundMessage) (bool, error) {
	return false, d.Deliver(ctx, message)
}

func (d *DirectDispatcher) Deliver(ctx context.Context, message domain.OutboundMessage) error {
	switch message.Kind {
	case domain.KindText:
		return d.sender.SendText(ctx, message.Destination, message.Text)
	case domain.KindSticker:
		return d.sender.SendMedia(ctx, message.Destination, message.MediaURL, d.stickerKind)
	case domain.KindImage:
		return d.sender.SendMedia(ctx, message.Destination, message.MediaURL, hibot.MediaImage)
	default:
		return fmt.Errorf("unsupported message kind %q", message.Kind)
	}
}

// QueuedDispatcher pushes messages onto the asynq queue.
type QueuedDispatcher struct {
	queue scheduler.MessageQueue
}

func NewQueuedDispatcher(queue scheduler.MessageQueue) *QueuedDispatcher {
	return &QueuedDispatcher{queue: queue}
}

func (q *QueuedDispatcher) Dispatch(ctx context.Context, message domain.OutboundMessage) (bool, error) {
	if err := q.queue.EnqueueMessage(ctx, message); err != nil {
		return true, fmt.Errorf("enqueue message %s: %w", message.ID, err)
	}
	return true, nil
}
