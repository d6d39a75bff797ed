package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"billing_chat_backend/platform/apperr"
)

const (
	DefaultPromiseDays = 3
	MinPromiseDays     = 1
	MaxPromiseDays     = 20
)

var leadingInteger = regexp.MustCompile(`^[+-]?\d+`)

// SelectionRange is returned as error details when a selection is out of range.
type SelectionRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// PromisePlan holds the parameters of a payment promise.
type PromisePlan struct {
	InvoiceID   string
	Deadline    time.Time
	Days        int
	Description string
}

// SelectTargetService picks the service a payment promise applies to.
// selection is an optional 1-based index into actionable.
func SelectTargetService(actionable []ServiceRecord, selection *int) (ServiceRecord, error) {
	if len(actionable) == 0 {
		return ServiceRecord{}, apperr.NotFound("no hay servicios con valores pendientes").
			WithCode(apperr.CodeNoActionableService)
	}

	if selection != nil {
		if *selection < 1 || *selection > len(actionable) {
			return ServiceRecord{}, apperr.Validation(
				fmt.Sprintf("la selección debe estar entre 1 y %d", len(actionable)),
			).WithCode(apperr.CodeSelectionOutOfRange).
				WithDetails(SelectionRange{Min: 1, Max: len(actionable)})
		}
		return actionable[*selection-1], nil
	}

	for _, record := range actionable {
		if record.Billing.UnpaidInvoiceCount > 0 {
			return record, nil
		}
	}
	return actionable[0], nil
}

// ChooseAnchorInvoice returns the unpaid invoice with the earliest ISO due
// date. Invoices without a valid ISO date sort after all dated ones. Ties
// keep input order.
func ChooseAnchorInvoice(unpaid []Invoice) (Invoice, error) {
	if len(unpaid) == 0 {
		return Invoice{}, apperr.NotFound("el servicio no tiene facturas pendientes").
			WithCode(apperr.CodeNoUnpaidInvoices)
	}

	sorted := make([]Invoice, len(unpaid))
	copy(sorted, unpaid)
	sort.SliceStable(sorted, func(i, j int) bool {
		iDated, jDated := hasISODueDate(sorted[i]), hasISODueDate(sorted[j])
		if iDated != jDated {
			return iDated
		}
		return iDated && sorted[i].DueDate < sorted[j].DueDate
	})
	return sorted[0], nil
}

func hasISODueDate(invoice Invoice) bool {
	_, err := time.Parse(ISODateLayout, invoice.DueDate)
	return err == nil
}

// ParsePromiseDays reads a requested day count leniently: a leading integer
// is used, anything else falls back to the default. The result is clamped.
func ParsePromiseDays(requested string) int {
	days := DefaultPromiseDays
	if match := leadingInteger.FindString(strings.TrimSpace(requested)); match != "" {
		parsed, err := strconv.Atoi(match)
		switch {
		case err == nil:
			days = parsed
		case strings.HasPrefix(match, "-"):
			days = MinPromiseDays
		default:
			days = MaxPromiseDays
		}
	}
	return clampDays(days)
}

func clampDays(days int) int {
	if days < MinPromiseDays {
		return MinPromiseDays
	}
	if days > MaxPromiseDays {
		return MaxPromiseDays
	}
	return days
}

// BuildPromisePlan computes the promise deadline as today plus the clamped
// day count. An empty description gets a default mentioning the days.
func BuildPromisePlan(invoice Invoice, requestedDays string, description string, today time.Time) PromisePlan {
	days := ParsePromiseDays(requestedDays)

	description = strings.TrimSpace(description)
	if description == "" {
		description = DefaultPromiseDescription(days)
	}

	return PromisePlan{
		InvoiceID:   invoice.ID,
		Deadline:    CalendarDate(today).AddDate(0, 0, days),
		Days:        days,
		Description: description,
	}
}

// DefaultPromiseDescription is the description used when the caller gives none.
func DefaultPromiseDescription(days int) string {
	if days == 1 {
		return "Promesa de pago a 1 día"
	}
	return fmt.Sprintf("Promesa de pago a %d días", days)
}
