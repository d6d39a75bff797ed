package mikrowisp

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"billing_chat_backend/internal/billing/domain"

	"github.com/shopspring/decimal"
)

// flexString accepts JSON strings, numbers and null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	*f = flexString(string(data))
	return nil
}

// flexInt accepts JSON numbers and numeric strings; anything else is zero.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.Atoi(string(s)); err == nil {
		*f = flexInt(n)
		return nil
	}
	if fl, err := strconv.ParseFloat(string(s), 64); err == nil {
		*f = flexInt(int(fl))
		return nil
	}
	*f = 0
	return nil
}

// flexDecimal accepts JSON numbers and numeric strings; blanks are zero.
type flexDecimal struct {
	decimal.Decimal
}

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	if s == "" {
		f.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(string(s), ",", ""))
	if err != nil {
		return err
	}
	f.Decimal = d
	return nil
}

// apiEnvelope is the common MikroWISP response wrapper.
type apiEnvelope struct {
	Estado   string          `json:"estado"`
	Mensaje  string          `json:"mensaje"`
	Datos    json.RawMessage `json:"datos"`
	Factura  json.RawMessage `json:"factura"`
	Facturas json.RawMessage `json:"facturas"`
}

func (e apiEnvelope) ok() bool {
	return strings.EqualFold(strings.TrimSpace(e.Estado), "exito")
}

// noRecords reports an error envelope that only means "nothing matched".
func (e apiEnvelope) noRecords() bool {
	msg := strings.ToLower(e.Mensaje)
	for _, marker := range []string{"no existe", "no se encontr", "no hay", "sin resultados", "not found"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// apiBilling is the facturacion block of a client record.
type apiBilling struct {
	FacturasNoPagadas flexInt     `json:"facturas_nopagadas"`
	TotalFacturas     flexDecimal `json:"total_facturas"`
	FechaVencimiento  flexString  `json:"fecha_vencimiento"`
	Vencimiento       flexString  `json:"vencimiento"`
	ProximoPago       flexString  `json:"proximo_pago"`
	DiaPago           flexInt     `json:"dia_pago"`
}

// apiClient is one raw client (service line) record from GetClientsDetails.
// The identifier arrives under several spellings depending on the API version.
type apiClient struct {
	ID          flexString  `json:"id"`
	IDCliente   flexString  `json:"idcliente"`
	IDClienteUS flexString  `json:"id_cliente"`
	Nombre      flexString  `json:"nombre"`
	Name        flexString  `json:"name"`
	Estado      flexString  `json:"estado"`
	Cedula      flexString  `json:"cedula"`
	Facturacion *apiBilling `json:"facturacion"`
}

func (a apiClient) toDomain() domain.ServiceRecord {
	record := domain.ServiceRecord{
		ID:         firstNonEmpty(a.ID, a.IDCliente, a.IDClienteUS),
		NationalID: string(a.Cedula),
		Name:       firstNonEmpty(a.Nombre, a.Name),
		Status:     domain.ParseLifecycleStatus(string(a.Estado)),
		RawStatus:  string(a.Estado),
	}
	if a.Facturacion != nil {
		record.Billing = domain.BillingInfo{
			UnpaidInvoiceCount: int(a.Facturacion.FacturasNoPagadas),
			TotalDue:           a.Facturacion.TotalFacturas.Decimal,
			DueDate:            firstNonEmpty(a.Facturacion.FechaVencimiento, a.Facturacion.Vencimiento),
			NextPaymentDate:    string(a.Facturacion.ProximoPago),
			PaymentDayOfMonth:  int(a.Facturacion.DiaPago),
		}
	}
	return record
}

// apiInvoice is one raw invoice from GetInvoices / GetInvoice.
type apiInvoice struct {
	ID          flexString  `json:"id"`
	IDFactura   flexString  `json:"idfactura"`
	IDCliente   flexString  `json:"idcliente"`
	Vencimiento flexString  `json:"vencimiento"`
	Total       flexDecimal `json:"total"`
	Estado      flexString  `json:"estado"`
}

func (a apiInvoice) toDomain() domain.Invoice {
	due := string(a.Vencimiento)
	if parsed, ok := domain.ParseFlexibleDate(due); ok {
		due = parsed.Format(domain.ISODateLayout)
	}
	return domain.Invoice{
		ID:          firstNonEmpty(a.ID, a.IDFactura),
		ServiceID:   string(a.IDCliente),
		DueDate:     due,
		TotalAmount: a.Total.Decimal,
		Status:      domain.ParseInvoiceStatus(string(a.Estado)),
	}
}

func firstNonEmpty(values ...flexString) string {
	for _, v := range values {
		if s := strings.TrimSpace(string(v)); s != "" {
			return s
		}
	}
	return ""
}
