package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	billingdomain "billing_chat_backend/internal/billing/domain"
	"billing_chat_backend/internal/events"
	"billing_chat_backend/internal/hibot"
	"billing_chat_backend/internal/messaging/domain"
	"billing_chat_backend/platform/apperr"
	"billing_chat_backend/platform/config"
	"billing_chat_backend/platform/logger"
)

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []domain.OutboundMessage
	queued   bool
	err      error
}

func (r *recordingDispatcher) Dispatch(_ context.Context, message domain.OutboundMessage) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	return r.queued, r.err
}

type stubEvaluator struct {
	result billingdomain.EvaluationResult
	err    error
	calls  int
}

func (s *stubEvaluator) EvaluateStatus(context.Context, string) (billingdomain.EvaluationResult, error) {
	s.calls++
	return s.result, s.err
}

type recordingSender struct {
	texts []string
	media []hibot.MediaKind
}

func (r *recordingSender) SendText(_ context.Context, destination string, text string) error {
	r.texts = append(r.texts, destination+":"+text)
	return nil
}

func (r *recordingSender) SendMedia(_ context.Context, _ string, _ string, kind hibot.MediaKind) error {
	r.media = append(r.media, kind)
	return nil
}

type recordingQueue struct {
	messages []domain.OutboundMessage
	err      error
}

func (r *recordingQueue) EnqueueMessage(_ context.Context, message domain.OutboundMessage) error {
	r.messages = append(r.messages, message)
	return r.err
}

func TestSendTextNormalizesDestination(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	svc := New(dispatcher, nil, "", logger.Nop())

	receipt, err := svc.SendText(context.Background(), "0986365165", "hola")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.Destination != "593986365165" || receipt.MessageID == "" || receipt.Queued {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if got := dispatcher.messages[0]; got.ID != receipt.MessageID || got.Kind != domain.KindText || got.Text != "hola" {
		t.Fatalf("unexpected dispatched message %+v", got)
	}
}

func TestSendRejectsInvalidPhone(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	svc := New(dispatcher, nil, "", logger.Nop())

	_, err := svc.SendText(context.Background(), "12345", "hola")
	if !apperr.HasCode(err, apperr.CodeInvalidPhone) {
		t.Fatalf("expected INVALID_PHONE, got %v", err)
	}
	if len(dispatcher.messages) != 0 {
		t.Fatalf("expected nothing dispatched")
	}
}

func TestSendWithoutDispatcher(t *testing.T) {
	svc := New(nil, nil, "", logger.Nop())

	_, err := svc.SendText(context.Background(), "0986365165", "hola")
	if !apperr.HasCode(err, apperr.CodeMessagingDisabled) {
		t.Fatalf("expected MESSAGING_DISABLED, got %v", err)
	}
}

func TestSendDispatchFailureIsUpstream(t *testing.T) {
	svc := New(&recordingDispatcher{err: errors.New("timeout")}, nil, "", logger.Nop())

	_, err := svc.SendText(context.Background(), "0986365165", "hola")
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestSendStickerDefaultsToConfiguredURL(t *testing.T) {
	dispatcher := &recordingDispatcher{queued: true}
	svc := New(dispatcher, nil, "https://cdn.example/sticker.webp", logger.Nop())

	receipt, err := svc.SendSticker(context.Background(), "+593 98 636 5165", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !receipt.Queued || dispatcher.messages[0].MediaURL != "https://cdn.example/sticker.webp" {
		t.Fatalf("unexpected sticker dispatch %+v / %+v", receipt, dispatcher.messages[0])
	}

	bare := New(dispatcher, nil, "", logger.Nop())
	if _, err := bare.SendSticker(context.Background(), "0986365165", ""); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error without a sticker, got %v", err)
	}
}

func TestSendStatusSendsNarrative(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	evaluator := &stubEvaluator{result: billingdomain.EvaluationResult{
		Kind:      billingdomain.ResultSingle,
		Narrative: "Su servicio Fibra 50 está activo.",
	}}
	svc := New(dispatcher, evaluator, "", logger.Nop())

	result, receipt, err := svc.SendStatus(context.Background(), "0912345678", "0986365165")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Kind != billingdomain.ResultSingle || receipt.Kind != domain.KindText {
		t.Fatalf("unexpected result %+v / %+v", result, receipt)
	}
	if dispatcher.messages[0].Text != "Su servicio Fibra 50 está activo." {
		t.Fatalf("expected narrative to be sent, got %q", dispatcher.messages[0].Text)
	}
}

func TestSendStatusNotFoundText(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	evaluator := &stubEvaluator{result: billingdomain.EvaluationResult{Kind: billingdomain.ResultNotFound}}
	svc := New(dispatcher, evaluator, "", logger.Nop())

	if _, _, err := svc.SendStatus(context.Background(), "0912345678", "0986365165"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dispatcher.messages[0].Text != statusNotFoundText {
		t.Fatalf("expected not-found text, got %q", dispatcher.messages[0].Text)
	}
}

func TestSendStatusChecksPhoneBeforeLookup(t *testing.T) {
	evaluator := &stubEvaluator{}
	svc := New(&recordingDispatcher{}, evaluator, "", logger.Nop())

	_, _, err := svc.SendStatus(context.Background(), "0912345678", "abc")
	if !apperr.HasCode(err, apperr.CodeInvalidPhone) || evaluator.calls != 0 {
		t.Fatalf("expected INVALID_PHONE without lookup, got %v (calls=%d)", err, evaluator.calls)
	}

	evaluator.err = apperr.Upstream("down", errors.New("boom"))
	if _, _, err := svc.SendStatus(context.Background(), "0912345678", "0986365165"); !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestHandlePromiseCreated(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	svc := New(dispatcher, nil, "", logger.Nop())

	accepted := events.PaymentPromiseCreated{
		ServiceName: "Fibra 50",
		Deadline:    time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC),
		Accepted:    true,
		Phone:       "593986365165",
	}
	if err := svc.Handle(context.Background(), accepted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dispatcher.messages) != 1 || !strings.Contains(dispatcher.messages[0].Text, "28/02/2024") {
		t.Fatalf("unexpected confirmation %+v", dispatcher.messages)
	}

	accepted.Phone = ""
	if err := svc.Handle(context.Background(), accepted); err != nil || len(dispatcher.messages) != 1 {
		t.Fatalf("expected events without phone to be ignored")
	}
}

func TestPromiseConfirmationTextRejected(t *testing.T) {
	text := PromiseConfirmationText(events.PaymentPromiseCreated{ServiceName: "Fibra 50", Message: "La factura ya tiene una promesa"})
	if !strings.HasPrefix(text, "No fue posible") || !strings.HasSuffix(text, "La factura ya tiene una promesa") {
		t.Fatalf("unexpected rejection text %q", text)
	}
}

func TestHandleWithoutDispatcherIsSkipped(t *testing.T) {
	svc := New(nil, nil, "", logger.Nop())
	if err := svc.Handle(context.Background(), events.PaymentPromiseCreated{Phone: "593986365165"}); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
}

func TestDirectDispatcherRoutesByKind(t *testing.T) {
	sender := &recordingSender{}
	d := NewDirectDispatcher(sender, "")

	for _, message := range []domain.OutboundMessage{
		{Destination: "593986365165", Kind: domain.KindText, Text: "hola"},
		{Destination: "593986365165", Kind: domain.KindSticker, MediaURL: "https://cdn/s.webp"},
		{Destination: "593986365165", Kind: domain.KindImage, MediaURL: "https://cdn/i.png"},
	} {
		queued, err := d.Dispatch(context.Background(), message)
		if err != nil || queued {
			t.Fatalf("unexpected dispatch result queued=%v err=%v", queued, err)
		}
	}
	if len(sender.texts) != 1 || sender.texts[0] != "593986365165:hola" {
		t.Fatalf("unexpected texts %v", sender.texts)
	}
	if len(sender.media) != 2 || sender.media[0] != hibot.MediaImage || sender.media[1] != hibot.MediaImage {
		t.Fatalf("expected stickers to go out as images by default, got %v", sender.media)
	}

	stickers := &recordingSender{}
	_, _ = NewDirectDispatcher(stickers, hibot.MediaSticker).Dispatch(context.Background(),
		domain.OutboundMessage{Destination: "593986365165", Kind: domain.KindSticker, MediaURL: "https://cdn/s.webp"})
	if len(stickers.media) != 1 || stickers.media[0] != hibot.MediaSticker {
		t.Fatalf("expected configured sticker type, got %v", stickers.media)
	}

	if err := d.Deliver(context.Background(), domain.OutboundMessage{Kind: "audio"}); err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
}

func TestStickerReachesHibotAsImage(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := hibot.NewClient(&config.Config{
		HibotURL:       srv.URL,
		HibotAppID:     "app",
		HibotAppSecret: "shh",
		HibotChannelID: "chan-1",
	}, logger.Nop())
	svc := New(NewDirectDispatcher(client, "image"), nil, "https://cdn.example/sticker.webp", logger.Nop())

	if _, err := svc.SendSticker(context.Background(), "0986365165", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload["type"] != "image" || payload["sticker"] != nil {
		t.Fatalf("expected image payload, got %v", payload)
	}
	image, _ := payload["image"].(map[string]any)
	if image["url"] != "https://cdn.example/sticker.webp" || payload["to"] != "593986365165" {
		t.Fatalf("unexpected image payload %v", payload)
	}
}

func TestQueuedDispatcher(t *testing.T) {
	queue := &recordingQueue{}
	d := NewQueuedDispatcher(queue)

	queued, err := d.Dispatch(context.Background(), domain.OutboundMessage{ID: "m-1"})
	if err != nil || !queued || len(queue.messages) != 1 {
		t.Fatalf("expected message to be queued, got queued=%v err=%v", queued, err)
	}

	queue.err = errors.New("redis down")
	if _, err := d.Dispatch(context.Background(), domain.OutboundMessage{ID: "m-2"}); err == nil {
		t.Fatalf("expected enqueue error")
	}
}
