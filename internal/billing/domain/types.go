// Package domain holds the billing-status evaluation engine: service
// classification, due/cutoff date policy, narrative selection and payment
// promise planning. It performs no I/O of its own.
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LifecycleStatus is the normalized state of a subscription line.
type LifecycleStatus string

const (
	StatusActive    LifecycleStatus = "ACTIVE"
	StatusSuspended LifecycleStatus = "SUSPENDED"
	StatusWithdrawn LifecycleStatus = "WITHDRAWN"
	StatusUnknown   LifecycleStatus = "UNKNOWN"
)

// ParseLifecycleStatus maps a raw billing status, in English or Spanish and
// in any case, onto a LifecycleStatus.
func ParseLifecycleStatus(raw string) LifecycleStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ACTIVE", "ACTIVO":
		return StatusActive
	case "SUSPENDED", "SUSPENDIDO", "CORTADO":
		return StatusSuspended
	case "WITHDRAWN", "RETIRADO":
		return StatusWithdrawn
	default:
		return StatusUnknown
	}
}

const defaultServiceName = "Servicio"

// BillingInfo carries the billing figures reported for one service.
// DueDate, NextPaymentDate and PaymentDayOfMonth are alternative sources of
// the next due date; empty strings and a zero day mean "absent".
type BillingInfo struct {
	UnpaidInvoiceCount int
	TotalDue           decimal.Decimal
	DueDate            string
	NextPaymentDate    string
	PaymentDayOfMonth  int
}

// ServiceRecord is one subscription line belonging to a subscriber.
// RawStatus keeps the billing system's own status word ("activo", "cortado").
type ServiceRecord struct {
	ID         string
	NationalID string
	Name       string
	Status     LifecycleStatus
	RawStatus  string
	Billing    BillingInfo
}

// DisplayName returns the service name or a placeholder when it is blank.
func (r ServiceRecord) DisplayName() string {
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	return defaultServiceName
}

// HasDebt reports whether the service has unpaid invoices with a positive balance.
func (r ServiceRecord) HasDebt() bool {
	return r.Billing.UnpaidInvoiceCount > 0 && r.Billing.TotalDue.IsPositive()
}

// IsActionable reports whether the service needs a payment action.
// Suspended services are always actionable.
func (r ServiceRecord) IsActionable() bool {
	return r.Status == StatusSuspended || r.HasDebt()
}

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	InvoicePaid   InvoiceStatus = "paid"
	InvoiceUnpaid InvoiceStatus = "unpaid"
	InvoiceVoid   InvoiceStatus = "void"
)

// Invoice is one billable document belonging to a service.
// DueDate is kept as an ISO YYYY-MM-DD string.
type Invoice struct {
	ID          string
	ServiceID   string
	DueDate     string
	TotalAmount decimal.Decimal
	Status      InvoiceStatus
}

// PromiseOutcome is the billing system's answer to a payment promise.
// A rejection is a business answer, not a failure.
type PromiseOutcome struct {
	Accepted bool
	Message  string
}

// Recommendation is the machine-readable next step for the conversation.
type Recommendation string

const (
	RecommendClose                 Recommendation = "close"
	RecommendRequestProofOfPayment Recommendation = "request_proof_of_payment"
)

// ResultKind tags the variant held by an EvaluationResult.
type ResultKind string

const (
	ResultNotFound ResultKind = "not_found"
	ResultSingle   ResultKind = "single"
	ResultMultiple ResultKind = "multiple"
)

// ParseInvoiceStatus maps a raw invoice state onto InvoiceStatus. States it
// cannot recognize are treated as void so no promise is anchored to them.
func ParseInvoiceStatus(raw string) InvoiceStatus {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case normalized == "unpaid" || strings.Contains(normalized, "no pagad") ||
		strings.Contains(normalized, "pendiente") || strings.Contains(normalized, "vencid"):
		return InvoiceUnpaid
	case normalized == "paid" || strings.Contains(normalized, "pagad"):
		return InvoicePaid
	default:
		return InvoiceVoid
	}
}
