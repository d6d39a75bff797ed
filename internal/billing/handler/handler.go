package handler

import (
	"net/http"
	"strings"

	"billing_chat_backend/internal/billing/domain"
	"billing_chat_backend/internal/billing/service"
	"billing_chat_backend/internal/billing/transport"
	"billing_chat_backend/platform/apperr"
	"billing_chat_backend/platform/httpkit"
	"billing_chat_backend/platform/phone"
	"billing_chat_backend/platform/sanitize"
	"billing_chat_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for billing status and payment promises.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "solicitud inválida"
	msgValidationFailed = "validación fallida"
	msgMissingCedula    = "Cédula no proporcionada"

	maxDescriptionLength = 200
)

// New creates a new billing handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// GetStatus evaluates the billing status of a subscriber.
// GET /api/v1/billing/status?cedula=
func (h *Handler) GetStatus(c *gin.Context) {
	var req transport.StatusRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.EvaluateStatus(c.Request.Context(), req.NationalID)
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusOK
	if result.Kind == domain.ResultNotFound {
		status = http.StatusNotFound
	}
	httpkit.JSON(c, status, transport.ToStatusResponse(result))
}

// GetLegacyStatus serves the response shape of the first chat integration.
// GET /api/cliente?cedula=
func (h *Handler) GetLegacyStatus(c *gin.Context) {
	var req transport.StatusRequest
	if err := c.ShouldBindQuery(&req); err != nil || req.NationalID == "" {
		httpkit.Error(c, http.StatusBadRequest, msgMissingCedula, nil)
		return
	}

	result, err := h.svc.EvaluateStatus(c.Request.Context(), req.NationalID)
	if err != nil {
		if apperr.Is(err, apperr.KindValidation) {
			httpkit.Error(c, http.StatusBadRequest, msgMissingCedula, nil)
			return
		}
		_ = c.Error(err)
		httpkit.OK(c, transport.LegacyErrorResponse())
		return
	}
	httpkit.OK(c, transport.ToLegacyStatusResponse(result, strings.TrimSpace(req.NationalID)))
}

// CreatePromise registers a payment promise on the subscriber's actionable service.
// POST /api/v1/billing/promises
func (h *Handler) CreatePromise(c *gin.Context) {
	var req transport.CreatePromiseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	result, err := h.svc.CreatePromise(c.Request.Context(), service.PromiseRequest{
		NationalID:  req.NationalID,
		Selection:   req.Selection,
		Days:        string(req.Days),
		Description: sanitize.Line(req.Description, maxDescriptionLength),
		InvoiceID:   req.InvoiceID,
		Phone:       req.Phone,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.PromiseResponse{
		PromiseID:   result.ID.String(),
		ServiceID:   result.Service.ID,
		ServiceName: result.Service.DisplayName(),
		InvoiceID:   result.Plan.InvoiceID,
		Deadline:    result.Plan.Deadline.Format(domain.ISODateLayout),
		Days:        result.Plan.Days,
		Description: result.Plan.Description,
		Accepted:    result.Outcome.Accepted,
		Message:     result.Outcome.Message,
	}
	if result.Phone != "" {
		resp.Phone = phone.Display(result.Phone)
	}

	status := http.StatusOK
	if result.Outcome.Accepted {
		status = http.StatusCreated
	}
	httpkit.JSON(c, status, resp)
}

// GetInvoice returns one invoice.
// GET /api/v1/billing/invoices/:id
func (h *Handler) GetInvoice(c *gin.Context) {
	invoice, err := h.svc.GetInvoice(c.Request.Context(), c.Param("id"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToInvoiceResponse(invoice))
}
