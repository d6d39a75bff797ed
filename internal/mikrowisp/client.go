// Package mikrowisp provides the HTTP client for the MikroWISP billing API.
package mikrowisp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"billing_chat_backend/internal/billing/domain"
	"billing_chat_backend/platform/apperr"
	"billing_chat_backend/platform/config"
	"billing_chat_backend/platform/logger"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	collaboratorName = "mikrowisp"

	// invoiceStateUnpaid is the GetInvoices filter for unpaid invoices.
	invoiceStateUnpaid = 1
)

// Client is the HTTP client for the MikroWISP API.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
	token   string
	log     *logger.Logger
}

// New creates a new MikroWISP API client.
func New(cfg config.BillingConfig, log *logger.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.GetMikrowispTLSInsecure() {
		// MikroWISP installs commonly run with self-signed certificates.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &http.Client{
		Timeout:   cfg.GetMikrowispTimeout(),
		Transport: transport,
	}
	retryClient.RetryMax = cfg.GetMikrowispRetries()
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = log.Logger

	return &Client{
		http:    retryClient,
		baseURL: strings.TrimRight(cfg.GetMikrowispURL(), "/"),
		token:   cfg.GetMikrowispToken(),
		log:     log,
	}
}

// FetchServicesByNationalID returns every service line registered under a cédula.
// An unknown cédula yields an empty slice, not an error.
func (c *Client) FetchServicesByNationalID(ctx context.Context, nationalID string) ([]domain.ServiceRecord, error) {
	const op = "GetClientsDetails"

	env, err := c.post(ctx, op, map[string]any{"token": c.token, "cedula": nationalID})
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		if env.noRecords() {
			return []domain.ServiceRecord{}, nil
		}
		return nil, c.rejected(op, env)
	}

	var raw []apiClient
	if len(env.Datos) > 0 && !bytes.Equal(env.Datos, []byte("null")) {
		if err := json.Unmarshal(env.Datos, &raw); err != nil {
			c.log.UpstreamError(collaboratorName, op, err)
			return nil, apperr.Upstream("respuesta de facturación inválida", err).WithOp(op)
		}
	}

	records := make([]domain.ServiceRecord, 0, len(raw))
	for _, item := range raw {
		records = append(records, item.toDomain())
	}
	return records, nil
}

// FetchUnpaidInvoices lists up to limit unpaid invoices of one service.
func (c *Client) FetchUnpaidInvoices(ctx context.Context, serviceID string, limit int) ([]domain.Invoice, error) {
	const op = "GetInvoices"

	env, err := c.post(ctx, op, map[string]any{
		"token":     c.token,
		"idcliente": serviceID,
		"estado":    invoiceStateUnpaid,
		"limit":     limit,
	})
	if err != nil {
		return nil, err
	}
	if !env.ok() {
		if env.noRecords() {
			return []domain.Invoice{}, nil
		}
		return nil, c.rejected(op, env)
	}

	var raw []apiInvoice
	if len(env.Facturas) > 0 && !bytes.Equal(env.Facturas, []byte("null")) {
		if err := json.Unmarshal(env.Facturas, &raw); err != nil {
			c.log.UpstreamError(collaboratorName, op, err)
			return nil, apperr.Upstream("respuesta de facturas inválida", err).WithOp(op)
		}
	}

	invoices := make([]domain.Invoice, 0, len(raw))
	for _, item := range raw {
		invoice := item.toDomain()
		if invoice.ServiceID == "" {
			invoice.ServiceID = serviceID
		}
		invoices = append(invoices, invoice)
	}
	return invoices, nil
}

// FetchInvoiceByID returns one invoice. A missing invoice is a NotFound error.
func (c *Client) FetchInvoiceByID(ctx context.Context, invoiceID string) (domain.Invoice, error) {
	const op = "GetInvoice"

	env, err := c.post(ctx, op, map[string]any{"token": c.token, "idfactura": invoiceID})
	if err != nil {
		return domain.Invoice{}, err
	}
	if !env.ok() {
		if env.noRecords() {
			return domain.Invoice{}, apperr.NotFound("factura no encontrada").WithOp(op)
		}
		return domain.Invoice{}, c.rejected(op, env)
	}

	var raw apiInvoice
	if err := json.Unmarshal(env.Factura, &raw); err != nil {
		c.log.UpstreamError(collaboratorName, op, err)
		return domain.Invoice{}, apperr.Upstream("respuesta de factura inválida", err).WithOp(op)
	}

	invoice := raw.toDomain()
	if invoice.ID == "" {
		invoice.ID = invoiceID
	}
	return invoice, nil
}

// CreatePaymentPromise registers a promise to pay invoiceID by deadline.
// A business rejection is returned as an outcome, not an error.
func (c *Client) CreatePaymentPromise(ctx context.Context, invoiceID string, deadline time.Time, description string) (domain.PromiseOutcome, error) {
	const op = "PaymentPromise"

	env, err := c.post(ctx, op, map[string]any{
		"token":       c.token,
		"idfactura":   invoiceID,
		"fecha":       deadline.Format(domain.ISODateLayout),
		"descripcion": description,
	})
	if err != nil {
		return domain.PromiseOutcome{}, err
	}

	return domain.PromiseOutcome{Accepted: env.ok(), Message: env.Mensaje}, nil
}

// Ping checks that the billing API answers at all. Any HTTP response counts
// as reachable; retries are skipped so health checks stay fast.
func (c *Client) Ping(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{"token": c.token, "cedula": ""})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/GetClientsDetails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.HTTPClient.Do(req)
	if err != nil {
		return apperr.Upstream("el sistema de facturación no responde", err).WithOp("Ping")
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) post(ctx context.Context, op string, payload map[string]any) (apiEnvelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return apiEnvelope{}, apperr.Wrap(apperr.KindInternal, "marshal billing payload", err).WithOp(op)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+op, body)
	if err != nil {
		return apiEnvelope{}, apperr.Wrap(apperr.KindInternal, "create billing request", err).WithOp(op)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.UpstreamError(collaboratorName, op, err)
		return apiEnvelope{}, apperr.Upstream("el sistema de facturación no responde", err).WithOp(op)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.UpstreamError(collaboratorName, op, err)
		return apiEnvelope{}, apperr.Upstream("lectura de respuesta de facturación", err).WithOp(op)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		statusErr := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		c.log.UpstreamError(collaboratorName, op, statusErr)
		return apiEnvelope{}, apperr.Upstream("el sistema de facturación devolvió un error", statusErr).WithOp(op)
	}

	var env apiEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.UpstreamError(collaboratorName, op, err)
		return apiEnvelope{}, apperr.Upstream("respuesta de facturación inválida", err).WithOp(op)
	}
	return env, nil
}

func (c *Client) rejected(op string, env apiEnvelope) error {
	err := fmt.Errorf("estado %q: %s", env.Estado, env.Mensaje)
	c.log.UpstreamError(collaboratorName, op, err)
	return apperr.Upstream("el sistema de facturación rechazó la consulta", err).WithOp(op)
}
