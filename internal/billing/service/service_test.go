package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"billing_chat_backend/internal/billing/domain"
	"billing_chat_backend/internal/events"
	"billing_chat_backend/platform/apperr"
	"billing_chat_backend/platform/config"
	"billing_chat_backend/platform/logger"

	"github.com/shopspring/decimal"
)

type promiseCall struct {
	invoiceID   string
	deadline    time.Time
	description string
}

type fakeGateway struct {
	mu sync.Mutex

	records    []domain.ServiceRecord
	recordsErr error
	invoices   map[string][]domain.Invoice
	invoiceErr map[string]error
	byID       map[string]domain.Invoice
	outcome    domain.PromiseOutcome
	promiseErr error

	invoiceLookups []string
	promises       []promiseCall
}

func (f *fakeGateway) FetchServicesByNationalID(_ context.Context, _ string) ([]domain.ServiceRecord, error) {
	return f.records, f.recordsErr
}

func (f *fakeGateway) FetchUnpaidInvoices(_ context.Context, serviceID string, _ int) ([]domain.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoiceLookups = append(f.invoiceLookups, serviceID)
	if err := f.invoiceErr[serviceID]; err != nil {
		return nil, err
	}
	return f.invoices[serviceID], nil
}

func (f *fakeGateway) FetchInvoiceByID(_ context.Context, invoiceID string) (domain.Invoice, error) {
	invoice, ok := f.byID[invoiceID]
	if !ok {
		return domain.Invoice{}, apperr.NotFound("factura no encontrada")
	}
	return invoice, nil
}

func (f *fakeGateway) CreatePaymentPromise(_ context.Context, invoiceID string, deadline time.Time, description string) (domain.PromiseOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.promises = append(f.promises, promiseCall{invoiceID: invoiceID, deadline: deadline, description: description})
	return f.outcome, f.promiseErr
}

func (f *fakeGateway) Ping(context.Context) error { return nil }

type recordingBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

func newTestService(t *testing.T, gw *fakeGateway) (*Service, *recordingBus) {
	t.Helper()

	location, err := time.LoadLocation("America/Guayaquil")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	cfg := &config.Config{
		BillingLocation:          location,
		BillingInvoiceLimit:      25,
		BillingLookupConcurrency: 2,
	}

	bus := &recordingBus{}
	svc := New(gw, bus, cfg, logger.Nop())
	// 03:00 UTC on the 26th is still the 25th in Guayaquil.
	svc.SetClock(func() time.Time { return time.Date(2024, 2, 26, 3, 0, 0, 0, time.UTC) })
	return svc, bus
}

func service(id string, status domain.LifecycleStatus, unpaid int, total string) domain.ServiceRecord {
	return domain.ServiceRecord{
		ID:     id,
		Name:   "Plan " + id,
		Status: status,
		Billing: domain.BillingInfo{
			UnpaidInvoiceCount: unpaid,
			TotalDue:           decimal.RequireFromString(total),
		},
	}
}

func unpaidInvoice(id, serviceID, due string) domain.Invoice {
	return domain.Invoice{ID: id, ServiceID: serviceID, DueDate: due, Status: domain.InvoiceUnpaid, TotalAmount: decimal.NewFromInt(20)}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTodayUsesBillingTimeZone(t *testing.T) {
	svc, _ := newTestService(t, &fakeGateway{})
	if got := svc.Today(); !got.Equal(day(2024, 2, 25)) {
		t.Fatalf("expected 2024-02-25, got %s", got)
	}
}

func TestEvaluateStatusRequiresIdentifier(t *testing.T) {
	svc, _ := newTestService(t, &fakeGateway{})

	_, err := svc.EvaluateStatus(context.Background(), "   ")
	if !apperr.Is(err, apperr.KindValidation) || !apperr.HasCode(err, apperr.CodeMissingIdentifier) {
		t.Fatalf("expected MISSING_IDENTIFIER validation error, got %v", err)
	}
}

func TestEvaluateStatusSurfacesUpstreamFailure(t *testing.T) {
	svc, _ := newTestService(t, &fakeGateway{recordsErr: errors.New("connection refused")})

	_, err := svc.EvaluateStatus(context.Background(), "0912345678")
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestEvaluateStatusNotFound(t *testing.T) {
	gw := &fakeGateway{records: []domain.ServiceRecord{service("w1", domain.StatusWithdrawn, 1, "10")}}
	svc, _ := newTestService(t, gw)

	got, err := svc.EvaluateStatus(context.Background(), "0912345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != domain.ResultNotFound {
		t.Fatalf("expected not_found, got %s", got.Kind)
	}
	if len(gw.invoiceLookups) != 0 {
		t.Fatalf("expected no invoice lookups, got %v", gw.invoiceLookups)
	}
}

func TestEvaluateStatusResolvesDueDateFromInvoices(t *testing.T) {
	gw := &fakeGateway{
		records: []domain.ServiceRecord{service("s1", domain.StatusSuspended, 2, "45")},
		invoices: map[string][]domain.Invoice{
			"s1": {unpaidInvoice("9", "s1", "2024-02-10"), unpaidInvoice("8", "s1", "2024-01-01")},
		},
	}
	svc, _ := newTestService(t, gw)

	got, err := svc.EvaluateStatus(context.Background(), "0912345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != domain.ResultSingle || got.Recommendation != domain.RecommendRequestProofOfPayment {
		t.Fatalf("expected single/request_proof_of_payment, got %s/%s", got.Kind, got.Recommendation)
	}
	if got.Service.DueDate == nil || !got.Service.DueDate.Equal(day(2024, 1, 1)) {
		t.Fatalf("expected earliest invoice due date, got %v", got.Service.DueDate)
	}
	if !got.Service.CutoffDate.Equal(day(2024, 1, 7)) {
		t.Fatalf("expected six-day grace cutoff, got %s", got.Service.CutoffDate)
	}
}

func TestEvaluateStatusDegradesFailedLookupOnly(t *testing.T) {
	gw := &fakeGateway{
		records: []domain.ServiceRecord{
			service("a1", domain.StatusActive, 1, "20"),
			service("a2", domain.StatusActive, 1, "25"),
			service("a3", domain.StatusActive, 0, "0"),
		},
		invoices: map[string][]domain.Invoice{
			"a2": {unpaidInvoice("5", "a2", "2024-02-15")},
		},
		invoiceErr: map[string]error{"a1": errors.New("timeout")},
	}
	svc, _ := newTestService(t, gw)

	got, err := svc.EvaluateStatus(context.Background(), "0912345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != domain.ResultMultiple || got.Count != 3 {
		t.Fatalf("expected multiple with 3 services, got %s/%d", got.Kind, got.Count)
	}

	byID := map[string]domain.ServiceSummary{}
	for _, summary := range got.Summaries {
		byID[summary.Service.ID] = summary
	}
	if byID["a1"].DueDate != nil {
		t.Fatalf("expected failed lookup to leave the date unknown")
	}
	if byID["a2"].DueDate == nil || !byID["a2"].CutoffDate.Equal(day(2024, 2, 18)) {
		t.Fatalf("expected a2 cutoff 2024-02-18, got %v", byID["a2"].CutoffDate)
	}
	if len(gw.invoiceLookups) != 2 {
		t.Fatalf("expected lookups only for the two actionable services, got %v", gw.invoiceLookups)
	}
	if strings.Contains(byID["a1"].Narrative, "Fecha") {
		t.Fatalf("expected no date lines for a1, got %q", byID["a1"].Narrative)
	}
}

func TestCreatePromiseDefaultsToEarliestInvoice(t *testing.T) {
	gw := &fakeGateway{
		records: []domain.ServiceRecord{
			service("a1", domain.StatusActive, 0, "0"),
			service("s1", domain.StatusSuspended, 2, "40"),
		},
		invoices: map[string][]domain.Invoice{
			"s1": {
				unpaidInvoice("inv-2", "s1", "2024-02-01"),
				{ID: "inv-0", ServiceID: "s1", DueDate: "2023-12-01", Status: domain.InvoicePaid},
				unpaidInvoice("inv-1", "s1", "2024-01-01"),
			},
		},
		outcome: domain.PromiseOutcome{Accepted: true, Message: "ok"},
	}
	svc, bus := newTestService(t, gw)

	got, err := svc.CreatePromise(context.Background(), PromiseRequest{
		NationalID: "0912345678",
		Phone:      "098 636 5165",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Service.ID != "s1" || got.Plan.InvoiceID != "inv-1" {
		t.Fatalf("expected s1/inv-1, got %s/%s", got.Service.ID, got.Plan.InvoiceID)
	}
	if !got.Plan.Deadline.Equal(day(2024, 2, 28)) || got.Plan.Days != 3 {
		t.Fatalf("expected 3-day deadline 2024-02-28, got %d/%s", got.Plan.Days, got.Plan.Deadline)
	}
	if !got.Outcome.Accepted || got.Phone != "593986365165" {
		t.Fatalf("unexpected result %+v", got)
	}

	if len(gw.promises) != 1 || gw.promises[0].description != "Promesa de pago a 3 días" {
		t.Fatalf("unexpected promise calls %+v", gw.promises)
	}

	if len(bus.published) != 1 {
		t.Fatalf("expected one published event, got %d", len(bus.published))
	}
	event, ok := bus.published[0].(events.PaymentPromiseCreated)
	if !ok || event.Phone != "593986365165" || event.InvoiceID != "inv-1" || event.PromiseID != got.ID {
		t.Fatalf("unexpected event %+v", bus.published[0])
	}
}

func TestCreatePromiseExplicitSelection(t *testing.T) {
	gw := &fakeGateway{
		records: []domain.ServiceRecord{
			service("a1", domain.StatusActive, 1, "15"),
			service("a2", domain.StatusActive, 1, "20"),
		},
		invoices: map[string][]domain.Invoice{
			"a2": {unpaidInvoice("inv-a2", "a2", "2024-02-05")},
		},
		outcome: domain.PromiseOutcome{Accepted: true},
	}
	svc, _ := newTestService(t, gw)

	selection := 2
	got, err := svc.CreatePromise(context.Background(), PromiseRequest{
		NationalID:  "0912345678",
		Selection:   &selection,
		Days:        "45",
		Description: "Pago en agencia",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Service.ID != "a2" || got.Plan.Days != 20 || !got.Plan.Deadline.Equal(day(2024, 3, 16)) {
		t.Fatalf("unexpected plan %+v for service %s", got.Plan, got.Service.ID)
	}

	selection = 3
	_, err = svc.CreatePromise(context.Background(), PromiseRequest{NationalID: "0912345678", Selection: &selection})
	if !apperr.HasCode(err, apperr.CodeSelectionOutOfRange) {
		t.Fatalf("expected SELECTION_OUT_OF_RANGE, got %v", err)
	}
	domainErr, _ := apperr.As(err)
	if rng, ok := domainErr.Details.(domain.SelectionRange); !ok || rng.Max != 2 {
		t.Fatalf("expected valid range 1..2 in details, got %+v", domainErr.Details)
	}
}

func TestCreatePromiseRejectsInvalidPhoneBeforeAnyLookup(t *testing.T) {
	gw := &fakeGateway{records: []domain.ServiceRecord{service("s1", domain.StatusSuspended, 1, "10")}}
	svc, _ := newTestService(t, gw)

	_, err := svc.CreatePromise(context.Background(), PromiseRequest{NationalID: "0912345678", Phone: "12345"})
	if !apperr.Is(err, apperr.KindValidation) || !apperr.HasCode(err, apperr.CodeInvalidPhone) {
		t.Fatalf("expected INVALID_PHONE, got %v", err)
	}
	if len(gw.promises) != 0 || len(gw.invoiceLookups) != 0 {
		t.Fatalf("expected no billing calls")
	}
}

func TestCreatePromiseNotFoundCases(t *testing.T) {
	cases := map[string][]domain.ServiceRecord{
		"withdrawn only": {service("w1", domain.StatusWithdrawn, 1, "10")},
		"nothing owed":   {service("a1", domain.StatusActive, 0, "0")},
	}
	for name, records := range cases {
		svc, _ := newTestService(t, &fakeGateway{records: records})
		_, err := svc.CreatePromise(context.Background(), PromiseRequest{NationalID: "0912345678"})
		if !apperr.Is(err, apperr.KindNotFound) || !apperr.HasCode(err, apperr.CodeNoActionableService) {
			t.Fatalf("%s: expected NO_ACTIONABLE_SERVICE, got %v", name, err)
		}
	}
}

func TestCreatePromiseWithoutUnpaidInvoices(t *testing.T) {
	gw := &fakeGateway{records: []domain.ServiceRecord{service("s1", domain.StatusSuspended, 0, "0")}}
	svc, _ := newTestService(t, gw)

	_, err := svc.CreatePromise(context.Background(), PromiseRequest{NationalID: "0912345678"})
	if !apperr.HasCode(err, apperr.CodeNoUnpaidInvoices) {
		t.Fatalf("expected NO_UNPAID_INVOICES, got %v", err)
	}
}

func TestCreatePromiseMissingServiceIDIsInternal(t *testing.T) {
	gw := &fakeGateway{records: []domain.ServiceRecord{service("", domain.StatusSuspended, 1, "10")}}
	svc, _ := newTestService(t, gw)

	_, err := svc.CreatePromise(context.Background(), PromiseRequest{NationalID: "0912345678"})
	if !apperr.Is(err, apperr.KindInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestCreatePromiseExplicitInvoice(t *testing.T) {
	gw := &fakeGateway{
		records: []domain.ServiceRecord{service("s1", domain.StatusSuspended, 1, "10")},
		byID: map[string]domain.Invoice{
			"open":  unpaidInvoice("open", "s1", "2024-02-01"),
			"paid":  {ID: "paid", ServiceID: "s1", Status: domain.InvoicePaid},
			"other": unpaidInvoice("other", "x9", "2024-02-01"),
		},
		outcome: domain.PromiseOutcome{Accepted: true},
	}
	svc, _ := newTestService(t, gw)

	got, err := svc.CreatePromise(context.Background(), PromiseRequest{NationalID: "0912345678", InvoiceID: "open"})
	if err != nil || got.Plan.InvoiceID != "open" {
		t.Fatalf("expected promise on invoice open, got %+v (err=%v)", got.Plan, err)
	}
	if len(gw.invoiceLookups) != 0 {
		t.Fatalf("expected no invoice listing when an invoice is given")
	}

	_, err = svc.CreatePromise(context.Background(), PromiseRequest{NationalID: "0912345678", InvoiceID: "paid"})
	if !apperr.HasCode(err, apperr.CodeInvoiceNotUnpaid) {
		t.Fatalf("expected INVOICE_NOT_UNPAID, got %v", err)
	}

	_, err = svc.CreatePromise(context.Background(), PromiseRequest{NationalID: "0912345678", InvoiceID: "other"})
	if !apperr.HasCode(err, apperr.CodeInvoiceNotOwned) {
		t.Fatalf("expected INVOICE_NOT_OWNED, got %v", err)
	}

	_, err = svc.CreatePromise(context.Background(), PromiseRequest{NationalID: "0912345678", InvoiceID: "ghost"})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreatePromiseRejectedIsNotAnError(t *testing.T) {
	gw := &fakeGateway{
		records:  []domain.ServiceRecord{service("s1", domain.StatusSuspended, 1, "10")},
		invoices: map[string][]domain.Invoice{"s1": {unpaidInvoice("inv", "s1", "2024-02-01")}},
		outcome:  domain.PromiseOutcome{Accepted: false, Message: "ya existe una promesa"},
	}
	svc, bus := newTestService(t, gw)

	got, err := svc.CreatePromise(context.Background(), PromiseRequest{NationalID: "0912345678"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Outcome.Accepted || got.Outcome.Message != "ya existe una promesa" {
		t.Fatalf("unexpected outcome %+v", got.Outcome)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected event even for a rejected promise")
	}
}

func TestCreatePromiseSurfacesUpstreamFailures(t *testing.T) {
	gw := &fakeGateway{
		records:    []domain.ServiceRecord{service("s1", domain.StatusSuspended, 1, "10")},
		invoiceErr: map[string]error{"s1": errors.New("boom")},
	}
	svc, _ := newTestService(t, gw)

	_, err := svc.CreatePromise(context.Background(), PromiseRequest{NationalID: "0912345678"})
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error from invoice listing, got %v", err)
	}

	gw.invoiceErr = nil
	gw.invoices = map[string][]domain.Invoice{"s1": {unpaidInvoice("inv", "s1", "2024-02-01")}}
	gw.promiseErr = errors.New("timeout")
	_, err = svc.CreatePromise(context.Background(), PromiseRequest{NationalID: "0912345678"})
	if !apperr.Is(err, apperr.KindUpstream) {
		t.Fatalf("expected upstream error from promise creation, got %v", err)
	}
}

func TestGetInvoice(t *testing.T) {
	gw := &fakeGateway{byID: map[string]domain.Invoice{"7": unpaidInvoice("7", "s1", "2024-02-01")}}
	svc, _ := newTestService(t, gw)

	if _, err := svc.GetInvoice(context.Background(), ""); !apperr.HasCode(err, apperr.CodeMissingIdentifier) {
		t.Fatalf("expected MISSING_IDENTIFIER, got %v", err)
	}
	got, err := svc.GetInvoice(context.Background(), " 7 ")
	if err != nil || got.ID != "7" {
		t.Fatalf("expected invoice 7, got %+v (err=%v)", got, err)
	}
}
