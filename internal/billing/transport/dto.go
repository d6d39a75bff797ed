// Package transport holds the billing HTTP request and response shapes and
// their mapping from domain values.
package transport

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"billing_chat_backend/internal/billing/domain"

	"github.com/samber/lo"
)

// StatusRequest is the query of GET /billing/status.
type StatusRequest struct {
	NationalID string `form:"cedula" validate:"max=20"`
}

// PromiseDays accepts a JSON number or string; the domain parses it leniently.
type PromiseDays string

func (d *PromiseDays) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = PromiseDays(s)
		return nil
	}
	*d = PromiseDays(string(data))
	return nil
}

// CreatePromiseRequest is the body of POST /billing/promises.
type CreatePromiseRequest struct {
	NationalID  string      `json:"cedula" validate:"max=20"`
	Selection   *int        `json:"selection"`
	Days        PromiseDays `json:"days"`
	Description string      `json:"description" validate:"max=500"`
	InvoiceID   string      `json:"invoiceId" validate:"max=40"`
	Phone       string      `json:"phone" validate:"max=32"`
}

// ServiceSummaryResponse is one evaluated service line.
type ServiceSummaryResponse struct {
	ServiceID          string  `json:"serviceId"`
	Name               string  `json:"name"`
	Status             string  `json:"status"`
	UnpaidInvoiceCount int     `json:"unpaidInvoiceCount"`
	TotalDue           string  `json:"totalDue"`
	Actionable         bool    `json:"actionable"`
	Selection          int     `json:"selection,omitempty"`
	Template           string  `json:"template"`
	Narrative          string  `json:"narrative"`
	DueDate            *string `json:"dueDate,omitempty"`
	CutoffDate         *string `json:"cutoffDate,omitempty"`
}

// StatusResponse is the evaluation result. Service is set for "single",
// Count and Services for "multiple".
type StatusResponse struct {
	Result         string                   `json:"result"`
	Service        *ServiceSummaryResponse  `json:"service,omitempty"`
	Count          int                      `json:"count,omitempty"`
	Services       []ServiceSummaryResponse `json:"services,omitempty"`
	Message        string                   `json:"message"`
	Recommendation string                   `json:"recommendation,omitempty"`
}

// PromiseResponse is the outcome of a payment promise request.
type PromiseResponse struct {
	PromiseID   string `json:"promiseId"`
	ServiceID   string `json:"serviceId"`
	ServiceName string `json:"serviceName"`
	InvoiceID   string `json:"invoiceId"`
	Deadline    string `json:"deadline"`
	Days        int    `json:"days"`
	Description string `json:"description"`
	Accepted    bool   `json:"accepted"`
	Message     string `json:"message,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

// InvoiceResponse is a single invoice.
type InvoiceResponse struct {
	ID          string `json:"id"`
	ServiceID   string `json:"serviceId,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
	TotalAmount string `json:"totalAmount"`
	Status      string `json:"status"`
}

// notFoundMessage is shown when no active or suspended service exists.
const notFoundMessage = "No se encontraron servicios activos o suspendidos para la cédula indicada."

// ToStatusResponse maps an evaluation result onto its response shape.
func ToStatusResponse(result domain.EvaluationResult) StatusResponse {
	resp := StatusResponse{
		Result:         string(result.Kind),
		Message:        result.Narrative,
		Recommendation: string(result.Recommendation),
	}

	switch result.Kind {
	case domain.ResultNotFound:
		resp.Message = notFoundMessage
	case domain.ResultSingle:
		if result.Service != nil {
			summary := ToServiceSummary(*result.Service)
			resp.Service = &summary
		}
	case domain.ResultMultiple:
		resp.Count = result.Count
		resp.Services = lo.Map(result.Summaries, func(s domain.ServiceSummary, _ int) ServiceSummaryResponse {
			return ToServiceSummary(s)
		})
	}
	return resp
}

// ToServiceSummary maps one evaluated service.
func ToServiceSummary(s domain.ServiceSummary) ServiceSummaryResponse {
	return ServiceSummaryResponse{
		ServiceID:          s.Service.ID,
		Name:               s.Service.DisplayName(),
		Status:             string(s.Service.Status),
		UnpaidInvoiceCount: s.Service.Billing.UnpaidInvoiceCount,
		TotalDue:           s.Service.Billing.TotalDue.StringFixed(2),
		Actionable:         s.Actionable,
		Selection:          s.Selection,
		Template:           string(s.Template),
		Narrative:          s.Narrative,
		DueDate:            isoDate(s.DueDate),
		CutoffDate:         isoDate(s.CutoffDate),
	}
}

// ToInvoiceResponse maps an invoice.
func ToInvoiceResponse(invoice domain.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:          invoice.ID,
		ServiceID:   invoice.ServiceID,
		DueDate:     invoice.DueDate,
		TotalAmount: invoice.TotalAmount.StringFixed(2),
		Status:      string(invoice.Status),
	}
}

func isoDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(domain.ISODateLayout)
	return &s
}

// =============================================================================
// Legacy /api/cliente shape
// =============================================================================

// LegacyServiceData is the "datos" object of the legacy response. Estado is
// the billing system's own status word.
type LegacyServiceData struct {
	Nombre            string `json:"nombre"`
	Cedula            string `json:"cedula"`
	Estado            string `json:"estado"`
	FacturasNoPagadas int    `json:"facturas_nopagadas"`
	TotalFacturas     string `json:"total_facturas"`
}

// LegacyStatusResponse mirrors the response of the first chat integration,
// which reads "estado", "mensaje" and "datos". Subscribers with several lines
// also get every line under "servicios"; "datos" is the line a promise would
// target.
type LegacyStatusResponse struct {
	Estado    string              `json:"estado"`
	Mensaje   string              `json:"mensaje"`
	Datos     *LegacyServiceData  `json:"datos,omitempty"`
	Servicios []LegacyServiceData `json:"servicios,omitempty"`
}

const (
	legacyNotFoundMessage = "No existe el cliente con la cédula indicada."
	legacyErrorMessage    = "Error al obtener datos del cliente."
)

// ToLegacyStatusResponse maps an evaluation result onto the legacy shape.
// nationalID fills "cedula" when the billing record omits it.
func ToLegacyStatusResponse(result domain.EvaluationResult, nationalID string) LegacyStatusResponse {
	toData := func(s domain.ServiceSummary, _ int) LegacyServiceData {
		return LegacyServiceData{
			Nombre:            s.Service.DisplayName(),
			Cedula:            lo.CoalesceOrEmpty(strings.TrimSpace(s.Service.NationalID), nationalID),
			Estado:            legacyStatusWord(s.Service),
			FacturasNoPagadas: s.Service.Billing.UnpaidInvoiceCount,
			TotalFacturas:     s.Service.Billing.TotalDue.StringFixed(2),
		}
	}

	switch {
	case result.Kind == domain.ResultSingle && result.Service != nil:
		data := toData(*result.Service, 0)
		return LegacyStatusResponse{Estado: "exito", Mensaje: result.Narrative, Datos: &data}
	case result.Kind == domain.ResultMultiple && len(result.Summaries) > 0:
		primary, ok := lo.Find(result.Summaries, func(s domain.ServiceSummary) bool { return s.Selection == 1 })
		if !ok {
			primary = result.Summaries[0]
		}
		data := toData(primary, 0)
		return LegacyStatusResponse{
			Estado:    "exito",
			Mensaje:   result.Narrative,
			Datos:     &data,
			Servicios: lo.Map(result.Summaries, toData),
		}
	default:
		return LegacyStatusResponse{Estado: "error", Mensaje: legacyNotFoundMessage}
	}
}

func legacyStatusWord(record domain.ServiceRecord) string {
	if raw := strings.TrimSpace(record.RawStatus); raw != "" {
		return raw
	}
	switch record.Status {
	case domain.StatusActive:
		return "activo"
	case domain.StatusSuspended:
		return "suspendido"
	case domain.StatusWithdrawn:
		return "retirado"
	default:
		return ""
	}
}

// LegacyErrorResponse is returned when the billing system could not be read.
func LegacyErrorResponse() LegacyStatusResponse {
	return LegacyStatusResponse{Estado: "error", Mensaje: legacyErrorMessage}
}
