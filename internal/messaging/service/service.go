// Package service sends chat messages to subscribers: free text, stickers,
// billing status narratives and payment promise confirmations.
package service

import (
	"context"
	"errors"
	"fmt"

	billingdomain "billing_chat_backend/internal/billing/domain"
	"billing_chat_backend/internal/events"
	"billing_chat_backend/internal/messaging/domain"
	"billing_chat_backend/platform/apperr"
	"billing_chat_backend/platform/logger"
	"billing_chat_backend/platform/phone"

	"github.com/google/uuid"
)

const (
	statusNotFoundText = "No encontramos servicios activos o suspendidos registrados con la cédula indicada."

	promiseAcceptedText = "Su promesa de pago para %s quedó registrada hasta el %s. Gracias por mantenerse al día."
	promiseRejectedText = "No fue posible registrar su promesa de pago para %s."
)

// StatusEvaluator evaluates the billing status of a subscriber.
type StatusEvaluator interface {
	EvaluateStatus(ctx context.Context, nationalID string) (billingdomain.EvaluationResult, error)
}

// Service builds outbound messages and hands them to a Dispatcher.
type Service struct {
	dispatcher Dispatcher
	status     StatusEvaluator
	stickerURL string
	log        *logger.Logger
}

// New creates the messaging service. A nil dispatcher means messaging is not
// configured: sends fail and promise confirmations are skipped.
func New(dispatcher Dispatcher, status StatusEvaluator, stickerURL string, log *logger.Logger) *Service {
	return &Service{
		dispatcher: dispatcher,
		status:     status,
		stickerURL: stickerURL,
		log:        log,
	}
}

// Enabled reports whether a dispatcher is configured.
func (s *Service) Enabled() bool {
	return s.dispatcher != nil
}

// SendText sends a plain text message.
func (s *Service) SendText(ctx context.Context, rawPhone string, text string) (domain.Receipt, error) {
	if text == "" {
		return domain.Receipt{}, apperr.Validation("el texto es obligatorio")
	}
	return s.send(ctx, rawPhone, domain.OutboundMessage{Kind: domain.KindText, Text: text})
}

// SendSticker sends a sticker. An empty mediaURL uses the configured default.
func (s *Service) SendSticker(ctx context.Context, rawPhone string, mediaURL string) (domain.Receipt, error) {
	if mediaURL == "" {
		mediaURL = s.stickerURL
	}
	if mediaURL == "" {
		return domain.Receipt{}, apperr.Validation("no hay sticker configurado")
	}
	return s.send(ctx, rawPhone, domain.OutboundMessage{Kind: domain.KindSticker, MediaURL: mediaURL})
}

// SendStatus evaluates the subscriber's billing status and sends its
// narrative. The phone is checked before the billing lookup.
func (s *Service) SendStatus(ctx context.Context, nationalID string, rawPhone string) (billingdomain.EvaluationResult, domain.Receipt, error) {
	if _, ok := phone.Normalize(rawPhone); !ok {
		return billingdomain.EvaluationResult{}, domain.Receipt{}, invalidPhone()
	}

	result, err := s.status.EvaluateStatus(ctx, nationalID)
	if err != nil {
		return billingdomain.EvaluationResult{}, domain.Receipt{}, err
	}

	text := result.Narrative
	if result.Kind == billingdomain.ResultNotFound || text == "" {
		text = statusNotFoundText
	}

	receipt, err := s.send(ctx, rawPhone, domain.OutboundMessage{Kind: domain.KindText, Text: text})
	if err != nil {
		return result, domain.Receipt{}, err
	}
	return result, receipt, nil
}

// Handle sends the promise confirmation for PaymentPromiseCreated events that
// carry a phone. Other events are ignored.
func (s *Service) Handle(ctx context.Context, event events.Event) error {
	created, ok := event.(events.PaymentPromiseCreated)
	if !ok || created.Phone == "" {
		return nil
	}
	if !s.Enabled() {
		s.log.Info("promise confirmation skipped, messaging disabled", "promiseId", created.PromiseID)
		return nil
	}

	_, err := s.send(ctx, created.Phone, domain.OutboundMessage{
		Kind: domain.KindText,
		Text: PromiseConfirmationText(created),
	})
	if err != nil {
		return fmt.Errorf("send promise confirmation %s: %w", created.PromiseID, err)
	}
	return nil
}

// PromiseConfirmationText is the message sent after a promise request.
func PromiseConfirmationText(event events.PaymentPromiseCreated) string {
	if !event.Accepted {
		text := fmt.Sprintf(promiseRejectedText, event.ServiceName)
		if event.Message != "" {
			text += " " + event.Message
		}
		return text
	}
	return fmt.Sprintf(promiseAcceptedText, event.ServiceName, event.Deadline.Format(billingdomain.DisplayDateLayout))
}

func (s *Service) send(ctx context.Context, rawPhone string, message domain.OutboundMessage) (domain.Receipt, error) {
	destination, ok := phone.Normalize(rawPhone)
	if !ok {
		return domain.Receipt{}, invalidPhone()
	}
	if !s.Enabled() {
		return domain.Receipt{}, apperr.Upstream("la mensajería no está configurada", errors.New("no dispatcher")).
			WithCode(apperr.CodeMessagingDisabled)
	}

	message.ID = uuid.NewString()
	message.Destination = destination

	queued, err := s.dispatcher.Dispatch(ctx, message)
	if err != nil {
		s.log.UpstreamError("hibot", string(message.Kind), err)
		return domain.Receipt{}, apperr.Upstream("no se pudo enviar el mensaje", err).WithOp("Dispatch")
	}

	s.log.MessageDispatched(phone.Display(destination), string(message.Kind), queued)
	return domain.Receipt{
		MessageID:   message.ID,
		Destination: destination,
		Kind:        message.Kind,
		Queued:      queued,
	}, nil
}

func invalidPhone() error {
	return apperr.Validation("número de teléfono inválido").WithCode(apperr.CodeInvalidPhone)
}
