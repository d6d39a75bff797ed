// Package messaging provides the outbound chat module: Hibot text, stickers,
// status narratives and payment promise confirmations.
package messaging

import (
	"billing_chat_backend/internal/events"
	apphttp "billing_chat_backend/internal/http"
	"billing_chat_backend/internal/messaging/handler"
	"billing_chat_backend/internal/messaging/service"
	"billing_chat_backend/platform/validator"
)

// Module is the messaging module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

func NewModule(svc *service.Service, val *validator.Validator) *Module {
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

func (m *Module) Name() string {
	return "messaging"
}

func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterHandlers subscribes the module to billing events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.PaymentPromiseCreated{}.EventName(), m.service)
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/messaging")
	group.POST("/text", m.handler.SendText)
	group.POST("/sticker", m.handler.SendSticker)
	group.POST("/status", m.handler.SendStatus)
}
