package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/service"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/httputil"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/middleware"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
)

// PaymentHandler handles HTTP requests for payment endpoints.
type PaymentHandler struct {
	service *service.PaymentService
	logger  *slog.Logger
}

// NewPaymentHandler creates a new payment HTTP handler.
func NewPaymentHandler(svc *service.PaymentService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

// PreferenceRequest is the JSON body for creating a hosted checkout.
// Amount is the total the client displayed; it is checked, never charged.
type PreferenceRequest struct {
	Items  []domain.CartLineRequest `json:"items" validate:"required"`
	Amount money.Amount             `json:"amount" validate:"gt=0"`
	Payer  domain.Payer             `json:"payer"`
}

// ChargeRequest is the JSON body for a direct card charge.
type ChargeRequest struct {
	Items             []domain.CartLineRequest `json:"items" validate:"required"`
	TransactionAmount money.Amount             `json:"transactionAmount" validate:"gt=0"`
	Token             string                   `json:"token" validate:"required"`
	PaymentMethodID   string                   `json:"paymentMethodId" validate:"required"`
	Installments      int                      `json:"installments" validate:"omitempty,gte=1,lte=48"`
	IssuerID          string                   `json:"issuerId"`
	Payer             domain.Payer             `json:"payer"`
}

// webhookBody is the JSON a gateway notification may carry instead of query
// parameters.
type webhookBody struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
	Data  struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

// --- Handlers ---

// CreatePreference handles POST /api/v1/payments/preference
func (h *PaymentHandler) CreatePreference(w http.ResponseWriter, r *http.Request) {
	var req PreferenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.service.CreatePreference(r.Context(), &service.PreferenceInput{
		Items:         req.Items,
		ClaimedAmount: req.Amount,
		Payer:         req.Payer,
		UserID:        middleware.UserIDFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: result})
}

// Charge handles POST /api/v1/payments/charge
func (h *PaymentHandler) Charge(w http.ResponseWriter, r *http.Request) {
	var req ChargeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	installments := req.Installments
	if installments == 0 {
		installments = 1
	}

	result, err := h.service.Charge(r.Context(), &service.ChargeInput{
		Items:           req.Items,
		ClaimedAmount:   req.TransactionAmount,
		Token:           req.Token,
		PaymentMethodID: req.PaymentMethodID,
		Installments:    installments,
		IssuerID:        req.IssuerID,
		Payer:           req.Payer,
		UserID:          middleware.UserIDFromContext(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: result})
}

// Webhook handles POST /api/v1/payments/webhook. It answers 204 at once and
// processes the notification in the background.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topic := firstNonEmpty(q.Get("topic"), q.Get("type"))
	id := firstNonEmpty(q.Get("id"), q.Get("data.id"))

	if topic == "" || id == "" {
		var body webhookBody
		raw, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
		if json.Unmarshal(raw, &body) == nil {
			topic = firstNonEmpty(topic, body.Type, body.Topic)
			id = firstNonEmpty(id, strings.Trim(string(body.Data.ID), `"`))
		}
	}

	w.WriteHeader(http.StatusNoContent)

	if topic == "" || id == "" {
		h.logger.WarnContext(r.Context(), "webhook without topic or id",
			slog.String("query", r.URL.RawQuery),
		)
		return
	}
	h.service.DispatchWebhook(r.Context(), topic, id)
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *PaymentHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: order})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
