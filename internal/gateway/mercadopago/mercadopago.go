// Package mercadopago is a REST client for the Mercado Pago payments API.
package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/httpclient"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.mercadopago.com"

const serviceName = "mercadopago"

// ErrMissingAccessToken is returned by New when no access token is configured.
var ErrMissingAccessToken = errors.New("mercadopago: access token is required")

// Config holds the Mercado Pago credentials.
type Config struct {
	AccessToken string
	BaseURL     string
}

// Client implements gateway.Gateway.
type Client struct {
	http    httpclient.Doer
	token   string
	baseURL string
	logger  *slog.Logger
}

// New creates a client. It fails when the access token is empty so a
// misconfigured deployment does not start.
func New(cfg Config, doer httpclient.Doer, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, ErrMissingAccessToken
	}
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		http:    doer,
		token:   cfg.AccessToken,
		baseURL: strings.TrimRight(base, "/"),
		logger:  logger,
	}, nil
}

func (c *Client) Name() string { return serviceName }

type preferenceItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type payer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type backURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type preferenceBody struct {
	Items             []preferenceItem `json:"items"`
	Payer             payer            `json:"payer"`
	BackURLs          *backURLs        `json:"back_urls,omitempty"`
	AutoReturn        string           `json:"auto_return,omitempty"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	ExternalReference string           `json:"external_reference"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// CreatePreference posts to /checkout/preferences. Unit prices are sent as
// decimals in major units.
func (c *Client) CreatePreference(ctx context.Context, req *domain.PreferenceRequest) (*domain.Preference, error) {
	currency := req.Currency
	if currency == "" {
		currency = domain.DefaultCurrency
	}

	body := preferenceBody{
		Items:             make([]preferenceItem, 0, len(req.Items)),
		Payer:             payer{Email: req.Payer.Email, Name: req.Payer.Name},
		NotificationURL:   req.NotificationURL,
		ExternalReference: req.ExternalReference,
	}
	for _, it := range req.Items {
		body.Items = append(body.Items, preferenceItem{
			ID:         it.ProductID,
			Title:      fmt.Sprintf("%s (%s, %s)", it.Title, it.Color, it.Size),
			Quantity:   it.Quantity,
			UnitPrice:  it.Price.Float64(),
			CurrencyID: currency,
		})
	}
	if req.BackURLs.Success != "" {
		body.BackURLs = &backURLs{
			Success: req.BackURLs.Success,
			Failure: req.BackURLs.Failure,
			Pending: req.BackURLs.Pending,
		}
		body.AutoReturn = "approved"
	}

	var out preferenceResponse
	if err := c.call(ctx, http.MethodPost, "/checkout/preferences", "", body, &out); err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}

	c.logger.InfoContext(ctx, "mercadopago preference created",
		slog.String("preference_id", out.ID),
		slog.String("external_reference", req.ExternalReference),
	)
	return &domain.Preference{ID: out.ID, InitPoint: out.InitPoint, SandboxInitPoint: out.SandboxInitPoint}, nil
}

type chargeBody struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Token             string  `json:"token"`
	Description       string  `json:"description,omitempty"`
	Installments      int     `json:"installments"`
	PaymentMethodID   string  `json:"payment_method_id"`
	IssuerID          string  `json:"issuer_id,omitempty"`
	Payer             payer   `json:"payer"`
	ExternalReference string  `json:"external_reference"`
	NotificationURL   string  `json:"notification_url,omitempty"`
}

type paymentResponse struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	ExternalReference string      `json:"external_reference"`
	TransactionAmount json.Number `json:"transaction_amount"`
}

// toDomain fails when transaction_amount is missing or not a number.
func (p *paymentResponse) toDomain() (*domain.GatewayPayment, error) {
	f, err := p.TransactionAmount.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("payment %s: invalid transaction_amount %q", p.ID.String(), p.TransactionAmount.String())
	}
	amount := money.Amount(math.Round(f * 100))
	return &domain.GatewayPayment{
		ID:                p.ID.String(),
		Status:            p.Status,
		StatusDetail:      p.StatusDetail,
		ExternalReference: p.ExternalReference,
		Amount:            amount,
	}, nil
}

// CreateCharge posts to /v1/payments with the request's idempotency key.
func (c *Client) CreateCharge(ctx context.Context, req *domain.ChargeRequest) (*domain.GatewayPayment, error) {
	installments := req.Installments
	if installments <= 0 {
		installments = 1
	}
	body := chargeBody{
		TransactionAmount: req.Amount.Float64(),
		Token:             req.Token,
		Description:       req.Description,
		Installments:      installments,
		PaymentMethodID:   req.PaymentMethodID,
		IssuerID:          req.IssuerID,
		Payer:             payer{Email: req.Payer.Email},
		ExternalReference: req.ExternalReference,
		NotificationURL:   req.NotificationURL,
	}

	var out paymentResponse
	if err := c.call(ctx, http.MethodPost, "/v1/payments", req.IdempotencyKey, body, &out); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	payment, err := out.toDomain()
	if err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	c.logger.InfoContext(ctx, "mercadopago payment created",
		slog.String("payment_id", payment.ID),
		slog.String("status", payment.Status),
		slog.String("external_reference", payment.ExternalReference),
	)
	return payment, nil
}

// GetPayment reads /v1/payments/{id}.
func (c *Client) GetPayment(ctx context.Context, id string) (*domain.GatewayPayment, error) {
	var out paymentResponse
	if err := c.call(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(id), "", nil, &out); err != nil {
		return nil, fmt.Errorf("get payment %s: %w", id, err)
	}
	payment, err := out.toDomain()
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", id, err)
	}
	return payment, nil
}

func (c *Client) call(ctx context.Context, method, path, idempotencyKey string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	}
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
