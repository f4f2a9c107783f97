package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Rodrigo-Schwindt/Backend-Render/internal/domain"
	"github.com/Rodrigo-Schwindt/Backend-Render/internal/service"
	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/httputil"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	validator *service.CartValidator
	logger    *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(v *service.CartValidator, logger *slog.Logger) *CartHandler {
	return &CartHandler{validator: v, logger: logger}
}

// ValidateCartRequest is the JSON body of POST /cart/validate. Items is kept
// raw so that a non-array value yields an empty cart instead of a decode
// error.
type ValidateCartRequest struct {
	Items json.RawMessage `json:"items"`
}

// Validate handles POST /api/v1/cart/validate. An invalid cart is answered
// with 400 and the same body shape as a valid one.
func (h *CartHandler) Validate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var req ValidateCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalid(w, "invalid request body: "+err.Error())
		return
	}

	var lines []domain.CartLineRequest
	if err := json.Unmarshal(req.Items, &lines); err != nil {
		lines = nil
	}

	result, err := h.validator.ValidateCart(r.Context(), lines)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	status := http.StatusOK
	if !result.IsValid {
		status = http.StatusBadRequest
	}
	httputil.WriteJSON(w, status, httputil.Response{Data: result})
}
