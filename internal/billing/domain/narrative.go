package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TemplateKey identifies a narrative template. The key and its variables are
// the engine's contract; the wording belongs to the Renderer.
type TemplateKey string

const (
	TemplateSuspended      TemplateKey = "suspended"
	TemplateActiveDebt     TemplateKey = "active_debt"
	TemplateActiveNoDebt   TemplateKey = "active_no_debt"
	TemplateMultipleHeader TemplateKey = "multiple_header"
)

// TemplateVars are the values interpolated into a template.
type TemplateVars struct {
	Name               string
	TotalDue           decimal.Decimal
	UnpaidInvoiceCount int
	DueDate            *time.Time
	CutoffDate         *time.Time
	// Count is the number of listed services; only the header uses it.
	Count int
}

// Renderer turns a template key plus variables into customer-facing text.
type Renderer interface {
	Render(key TemplateKey, vars TemplateVars) string
	// Closing is appended to an aggregate narrative when payment is pending.
	Closing(recommendation Recommendation) string
}

// SpanishRenderer is the default renderer for Ecuadorian customers.
type SpanishRenderer struct{}

var _ Renderer = SpanishRenderer{}

// Render implements Renderer.
func (SpanishRenderer) Render(key TemplateKey, vars TemplateVars) string {
	var b strings.Builder
	switch key {
	case TemplateSuspended:
		fmt.Fprintf(&b, "Su servicio %s se encuentra suspendido. Tiene %s por un total de $%s.",
			vars.Name, pluralInvoices(vars.UnpaidInvoiceCount), vars.TotalDue.StringFixed(2))
		writeDateLines(&b, vars)
	case TemplateActiveDebt:
		fmt.Fprintf(&b, "Su servicio %s está activo y ya se le ha generado su factura. Tiene %s por un total de $%s.",
			vars.Name, pluralInvoices(vars.UnpaidInvoiceCount), vars.TotalDue.StringFixed(2))
		writeDateLines(&b, vars)
	case TemplateActiveNoDebt:
		fmt.Fprintf(&b, "Su servicio %s se encuentra activo, aún no se le han generado facturas pendientes.", vars.Name)
	case TemplateMultipleHeader:
		fmt.Fprintf(&b, "Usted tiene %d servicios registrados:", vars.Count)
	}
	return b.String()
}

// Closing implements Renderer.
func (SpanishRenderer) Closing(recommendation Recommendation) string {
	if recommendation == RecommendRequestProofOfPayment {
		return "Si ya realizó su pago, por favor envíenos el comprobante."
	}
	return ""
}

func writeDateLines(b *strings.Builder, vars TemplateVars) {
	if vars.DueDate != nil {
		fmt.Fprintf(b, " Fecha de vencimiento: %s.", vars.DueDate.Format(DisplayDateLayout))
	}
	if vars.CutoffDate != nil {
		fmt.Fprintf(b, " Fecha de corte: %s.", vars.CutoffDate.Format(DisplayDateLayout))
	}
}

func pluralInvoices(n int) string {
	if n == 1 {
		return "1 factura pendiente"
	}
	return fmt.Sprintf("%d facturas pendientes", n)
}
