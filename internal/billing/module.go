// Package billing provides the billing bounded context module: subscriber
// status evaluation and payment promises backed by MikroWISP.
package billing

import (
	"billing_chat_backend/internal/billing/handler"
	"billing_chat_backend/internal/billing/service"
	"billing_chat_backend/internal/events"
	apphttp "billing_chat_backend/internal/http"
	"billing_chat_backend/internal/mikrowisp"
	"billing_chat_backend/platform/config"
	"billing_chat_backend/platform/logger"
	"billing_chat_backend/platform/validator"
)

// Module is the billing bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates the billing module on top of the MikroWISP client.
func NewModule(cfg config.BillingConfig, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	return NewModuleWithGateway(mikrowisp.New(cfg, log), cfg, eventBus, val, log)
}

// NewModuleWithGateway creates the billing module on an arbitrary gateway.
func NewModuleWithGateway(gateway service.BillingGateway, cfg config.BillingConfig, eventBus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(gateway, eventBus, cfg, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "billing"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts billing routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/billing")
	group.GET("/status", m.handler.GetStatus)
	group.POST("/promises", m.handler.CreatePromise)
	group.GET("/invoices/:id", m.handler.GetInvoice)

	ctx.API.GET("/cliente", m.handler.GetLegacyStatus)
}
