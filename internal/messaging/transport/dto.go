// Package transport holds the messaging HTTP request and response shapes.
package transport

import (
	"billing_chat_backend/internal/messaging/domain"
	"billing_chat_backend/platform/phone"
)

// SendTextRequest is the body of POST /messaging/text.
type SendTextRequest struct {
	Phone string `json:"phone" validate:"required,ecphone"`
	Text  string `json:"text" validate:"required,max=4096"`
}

// SendStickerRequest is the body of POST /messaging/sticker.
type SendStickerRequest struct {
	Phone    string `json:"phone" validate:"required,ecphone"`
	MediaURL string `json:"mediaUrl" validate:"omitempty,url,max=2048"`
}

// SendStatusRequest is the body of POST /messaging/status.
type SendStatusRequest struct {
	NationalID string `json:"cedula" validate:"required,max=20"`
	Phone      string `json:"phone" validate:"required,ecphone"`
}

// DeliveryResponse describes a dispatched message.
type DeliveryResponse struct {
	MessageID   string `json:"messageId"`
	Destination string `json:"destination"`
	Kind        string `json:"kind"`
	Queued      bool   `json:"queued"`
}

// StatusDeliveryResponse is the answer of POST /messaging/status.
type StatusDeliveryResponse struct {
	Result         string           `json:"result"`
	Message        string           `json:"message"`
	Recommendation string           `json:"recommendation,omitempty"`
	Delivery       DeliveryResponse `json:"delivery"`
}

func ToDeliveryResponse(receipt domain.Receipt) DeliveryResponse {
	return DeliveryResponse{
		MessageID:   receipt.MessageID,
		Destination: phone.Display(receipt.Destination),
		Kind:        string(receipt.Kind),
		Queued:      receipt.Queued,
	}
}
