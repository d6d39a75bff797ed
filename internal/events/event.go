// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"billing_chat_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Billing Domain Events
// =============================================================================

// PaymentPromiseCreated is published after the billing system answered a
// payment promise request. Phone is the canonical destination for the
// confirmation message and may be empty.
type PaymentPromiseCreated struct {
	BaseEvent
	PromiseID   uuid.UUID `json:"promiseId"`
	NationalID  string    `json:"nationalId"`
	ServiceID   string    `json:"serviceId"`
	ServiceName string    `json:"serviceName"`
	InvoiceID   string    `json:"invoiceId"`
	Deadline    time.Time `json:"deadline"`
	Days        int       `json:"days"`
	Accepted    bool      `json:"accepted"`
	Message     string    `json:"message"`
	Phone       string    `json:"phone,omitempty"`
}

func (e PaymentPromiseCreated) EventName() string { return "billing.promise.created" }
