// Package service orchestrates billing status evaluation and payment
// promises on top of the billing collaborator.
package service

import (
	"context"
	"strings"
	"time"

	"billing_chat_backend/internal/billing/domain"
	"billing_chat_backend/internal/events"
	"billing_chat_backend/platform/apperr"
	"billing_chat_backend/platform/config"
	"billing_chat_backend/platform/logger"
	"billing_chat_backend/platform/phone"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// BillingGateway is the billing collaborator as seen by the service.
type BillingGateway interface {
	FetchServicesByNationalID(ctx context.Context, nationalID string) ([]domain.ServiceRecord, error)
	FetchUnpaidInvoices(ctx context.Context, serviceID string, limit int) ([]domain.Invoice, error)
	FetchInvoiceByID(ctx context.Context, invoiceID string) (domain.Invoice, error)
	CreatePaymentPromise(ctx context.Context, invoiceID string, deadline time.Time, description string) (domain.PromiseOutcome, error)
	Ping(ctx context.Context) error
}

// PromiseRequest carries the caller's input for a payment promise.
type PromiseRequest struct {
	NationalID  string
	Selection   *int
	Days        string
	Description string
	InvoiceID   string
	Phone       string
}

// PromiseResult is the outcome of CreatePromise.
type PromiseResult struct {
	ID      uuid.UUID
	Service domain.ServiceRecord
	Plan    domain.PromisePlan
	Outcome domain.PromiseOutcome
	// Phone is the canonical confirmation destination, empty when none was given.
	Phone string
}

// Service handles billing status and payment promise requests.
type Service struct {
	billing      BillingGateway
	eventBus     events.Bus
	log          *logger.Logger
	evaluator    domain.Evaluator
	location     *time.Location
	invoiceLimit int
	concurrency  int
	now          func() time.Time
}

// New creates a new billing service.
func New(billing BillingGateway, eventBus events.Bus, cfg config.BillingConfig, log *logger.Logger) *Service {
	location := cfg.GetBillingLocation()
	if location == nil {
		location = time.UTC
	}

	return &Service{
		billing:      billing,
		eventBus:     eventBus,
		log:          log,
		evaluator:    domain.NewEvaluator(),
		location:     location,
		invoiceLimit: max(cfg.GetBillingInvoiceLimit(), 1),
		concurrency:  max(cfg.GetBillingLookupConcurrency(), 1),
		now:          time.Now,
	}
}

// SetClock replaces the time source. Tests use it to pin "today".
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Today returns the current calendar date in the billing time zone.
func (s *Service) Today() time.Time {
	return domain.CalendarDate(s.now().In(s.location))
}

// EvaluateStatus fetches every service registered under nationalID and
// evaluates them into a single, multiple or not-found result.
func (s *Service) EvaluateStatus(ctx context.Context, nationalID string) (domain.EvaluationResult, error) {
	nationalID, err := requireIdentifier(nationalID, "cédula no proporcionada")
	if err != nil {
		return domain.EvaluationResult{}, err
	}
	ctx = logger.ContextWithNationalID(ctx, nationalID)

	records, err := s.fetchServices(ctx, nationalID)
	if err != nil {
		return domain.EvaluationResult{}, err
	}

	classification := domain.Classify(records)
	lookup := s.resolveDueDates(ctx, classification.Actionable, s.Today())
	return s.evaluator.Evaluate(records, lookup), nil
}

// CreatePromise selects the target service and anchor invoice, then asks the
// billing system to register the promise. A rejected promise is returned as
// a non-accepted outcome.
func (s *Service) CreatePromise(ctx context.Context, req PromiseRequest) (PromiseResult, error) {
	nationalID, err := requireIdentifier(req.NationalID, "cédula no proporcionada")
	if err != nil {
		return PromiseResult{}, err
	}
	ctx = logger.ContextWithNationalID(ctx, nationalID)

	var destination string
	if strings.TrimSpace(req.Phone) != "" {
		normalized, ok := phone.Normalize(req.Phone)
		if !ok {
			return PromiseResult{}, apperr.Validation("número de teléfono inválido").
				WithCode(apperr.CodeInvalidPhone)
		}
		destination = normalized
	}

	records, err := s.fetchServices(ctx, nationalID)
	if err != nil {
		return PromiseResult{}, err
	}

	classification := domain.Classify(records)
	if classification.NotFound() {
		return PromiseResult{}, apperr.NotFound("no se encontraron servicios activos o suspendidos").
			WithCode(apperr.CodeNoActionableService)
	}

	target, err := domain.SelectTargetService(classification.Actionable, req.Selection)
	if err != nil {
		return PromiseResult{}, err
	}
	if strings.TrimSpace(target.ID) == "" {
		return PromiseResult{}, apperr.Internal("el servicio seleccionado no tiene identificador").
			WithOp("billing.CreatePromise")
	}

	invoice, err := s.anchorInvoice(ctx, target, strings.TrimSpace(req.InvoiceID))
	if err != nil {
		return PromiseResult{}, err
	}

	plan := domain.BuildPromisePlan(invoice, req.Days, req.Description, s.Today())
	outcome, err := s.billing.CreatePaymentPromise(ctx, plan.InvoiceID, plan.Deadline, plan.Description)
	if err != nil {
		return PromiseResult{}, asUpstream(err, "billing.CreatePaymentPromise")
	}

	result := PromiseResult{
		ID:      uuid.New(),
		Service: target,
		Plan:    plan,
		Outcome: outcome,
		Phone:   destination,
	}

	s.log.WithContext(ctx).Info("payment promise processed",
		"serviceId", target.ID,
		"invoiceId", plan.InvoiceID,
		"deadline", plan.Deadline.Format(domain.ISODateLayout),
		"accepted", outcome.Accepted,
	)

	if s.eventBus != nil {
		s.eventBus.Publish(ctx, events.PaymentPromiseCreated{
			BaseEvent:   events.NewBaseEvent(),
			PromiseID:   result.ID,
			NationalID:  nationalID,
			ServiceID:   target.ID,
			ServiceName: target.DisplayName(),
			InvoiceID:   plan.InvoiceID,
			Deadline:    plan.Deadline,
			Days:        plan.Days,
			Accepted:    outcome.Accepted,
			Message:     outcome.Message,
			Phone:       destination,
		})
	}

	return result, nil
}

// GetInvoice returns one invoice by id.
func (s *Service) GetInvoice(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	invoiceID, err := requireIdentifier(invoiceID, "identificador de factura no proporcionado")
	if err != nil {
		return domain.Invoice{}, err
	}

	invoice, err := s.billing.FetchInvoiceByID(ctx, invoiceID)
	if err != nil {
		return domain.Invoice{}, asUpstream(err, "billing.GetInvoice")
	}
	return invoice, nil
}

// Ping checks if the billing API is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.billing.Ping(ctx)
}

func (s *Service) fetchServices(ctx context.Context, nationalID string) ([]domain.ServiceRecord, error) {
	records, err := s.billing.FetchServicesByNationalID(ctx, nationalID)
	if err != nil {
		return nil, asUpstream(err, "billing.FetchServices")
	}
	return records, nil
}

// anchorInvoice resolves the invoice a promise is tied to: the requested one
// when given, otherwise the earliest unpaid invoice of the target service.
func (s *Service) anchorInvoice(ctx context.Context, target domain.ServiceRecord, invoiceID string) (domain.Invoice, error) {
	if invoiceID != "" {
		invoice, err := s.billing.FetchInvoiceByID(ctx, invoiceID)
		if err != nil {
			return domain.Invoice{}, asUpstream(err, "billing.FetchInvoice")
		}
		if invoice.ServiceID != "" && invoice.ServiceID != target.ID {
			return domain.Invoice{}, apperr.Validation("la factura no pertenece al servicio seleccionado").
				WithCode(apperr.CodeInvoiceNotOwned)
		}
		if invoice.Status != domain.InvoiceUnpaid {
			return domain.Invoice{}, apperr.Validation("la factura no está pendiente de pago").
				WithCode(apperr.CodeInvoiceNotUnpaid)
		}
		return invoice, nil
	}

	invoices, err := s.billing.FetchUnpaidInvoices(ctx, target.ID, s.invoiceLimit)
	if err != nil {
		return domain.Invoice{}, asUpstream(err, "billing.FetchUnpaidInvoices")
	}

	unpaid := lo.Filter(invoices, func(invoice domain.Invoice, _ int) bool {
		return invoice.Status == domain.InvoiceUnpaid
	})
	return domain.ChooseAnchorInvoice(unpaid)
}

// resolveDueDates runs the due-date chain for every actionable service
// concurrently. A failed lookup degrades only its own service.
func (s *Service) resolveDueDates(ctx context.Context, actionable []domain.ServiceRecord, today time.Time) domain.DueDateLookup {
	resolutions := make([]domain.DueDateResolution, len(actionable))
	source := invoiceSource{billing: s.billing, limit: s.invoiceLimit}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, record := range actionable {
		i, record := i, record
		g.Go(func() error {
			resolution := domain.ResolveDueDate(gctx, record, source, today)
			if resolution.LookupErr != nil {
				s.log.WithContext(ctx).LookupDegraded(record.ID, "due_date", resolution.LookupErr)
			}
			resolutions[i] = resolution
			return nil
		})
	}
	_ = g.Wait()

	byID := make(map[string]domain.DueDateResolution, len(actionable))
	for i, record := range actionable {
		if record.ID != "" {
			byID[record.ID] = resolutions[i]
		}
	}

	return func(record domain.ServiceRecord) domain.DueDateResolution {
		if resolution, ok := byID[record.ID]; ok && record.ID != "" {
			return resolution
		}
		return domain.ResolveDueDate(ctx, record, nil, today)
	}
}

// invoiceSource adapts the gateway to the domain's invoice lookup port.
type invoiceSource struct {
	billing BillingGateway
	limit   int
}

func (i invoiceSource) UnpaidInvoices(ctx context.Context, serviceID string) ([]domain.Invoice, error) {
	invoices, err := i.billing.FetchUnpaidInvoices(ctx, serviceID, i.limit)
	if err != nil {
		return nil, err
	}
	return lo.Filter(invoices, func(invoice domain.Invoice, _ int) bool {
		return invoice.Status == domain.InvoiceUnpaid
	}), nil
}

func requireIdentifier(raw string, message string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", apperr.Validation(message).WithCode(apperr.CodeMissingIdentifier)
	}
	return trimmed, nil
}

// asUpstream keeps typed errors as they are and wraps anything else as an
// upstream failure.
func asUpstream(err error, op string) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return apperr.Upstream("error al consultar el sistema de facturación", err).WithOp(op)
}
