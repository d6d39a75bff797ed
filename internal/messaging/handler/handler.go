package handler

import (
	"net/http"

	"billing_chat_backend/internal/messaging/service"
	"billing_chat_backend/internal/messaging/transport"
	"billing_chat_backend/platform/httpkit"
	"billing_chat_backend/platform/sanitize"
	"billing_chat_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for outbound chat messages.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "solicitud inválida"
	msgValidationFailed = "validación fallida"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// SendText sends a text message.
// POST /api/v1/messaging/text
func (h *Handler) SendText(c *gin.Context) {
	var req transport.SendTextRequest
	if !h.bind(c, &req) {
		return
	}

	receipt, err := h.svc.SendText(c.Request.Context(), req.Phone, sanitize.Text(req.Text))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, transport.ToDeliveryResponse(receipt))
}

// SendSticker sends a sticker, falling back to the configured one.
// POST /api/v1/messaging/sticker
func (h *Handler) SendSticker(c *gin.Context) {
	var req transport.SendStickerRequest
	if !h.bind(c, &req) {
		return
	}

	receipt, err := h.svc.SendSticker(c.Request.Context(), req.Phone, req.MediaURL)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, transport.ToDeliveryResponse(receipt))
}

// SendStatus evaluates a subscriber and sends the narrative by chat.
// POST /api/v1/messaging/status
func (h *Handler) SendStatus(c *gin.Context) {
	var req transport.SendStatusRequest
	if !h.bind(c, &req) {
		return
	}

	result, receipt, err := h.svc.SendStatus(c.Request.Context(), req.NationalID, req.Phone)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, transport.StatusDeliveryResponse{
		Result:         string(result.Kind),
		Message:        result.Narrative,
		Recommendation: string(result.Recommendation),
		Delivery:       transport.ToDeliveryResponse(receipt),
	})
}

func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}
