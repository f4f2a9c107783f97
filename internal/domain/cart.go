package domain

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
)

// Problem codes attached to invalid cart lines.
const (
	ProblemInvalidInput      = "INVALID_INPUT"
	ProblemNotFound          = "NOT_FOUND"
	ProblemInsufficientStock = "INSUFFICIENT_STOCK"
)

// CartLineRequest is one untrusted cart line. Any price the client sends is
// ignored.
type CartLineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`

	malformed bool
}

// Malformed reports whether the line failed to decode into the expected shape.
func (l CartLineRequest) Malformed() bool {
	return l.malformed
}

// UnmarshalJSON never fails: a line with the wrong shape decodes into a
// malformed line so the rest of the cart can still be validated.
func (l *CartLineRequest) UnmarshalJSON(b []byte) error {
	*l = CartLineRequest{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil || raw == nil {
		l.malformed = true
		return nil
	}

	if err := json.Unmarshal(raw["productId"], &l.ProductID); err != nil {
		l.malformed = true
	}

	// json.Number also accepts "2"; quantity must be a JSON number.
	rawQty := bytes.TrimSpace(raw["quantity"])
	var qty json.Number
	dec := json.NewDecoder(bytes.NewReader(rawQty))
	dec.UseNumber()
	if len(rawQty) == 0 || rawQty[0] == '"' {
		l.malformed = true
	} else if err := dec.Decode(&qty); err != nil {
		l.malformed = true
	} else if n, err := strconv.Atoi(qty.String()); err != nil {
		l.malformed = true
	} else {
		l.Quantity = n
	}

	l.Size = scalarString(raw["size"])
	l.Color = scalarString(raw["color"])
	return nil
}

// scalarString accepts a JSON string or number, e.g. a size sent as 42.
func scalarString(b json.RawMessage) string {
	var s string
	if json.Unmarshal(b, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(b, &n) == nil {
		return n.String()
	}
	return ""
}

// ValidatedCartLine is a cart line priced from the catalog.
type ValidatedCartLine struct {
	ProductID string       `json:"productId"`
	Title     string       `json:"title"`
	Price     money.Amount `json:"price"`
	Quantity  int          `json:"quantity"`
	Size      string       `json:"size"`
	Color     string       `json:"color"`
	Subtotal  money.Amount `json:"subtotal"`
}

// LineProblem is the structured form of one validation error.
type LineProblem struct {
	Line      int    `json:"line"`
	ProductID string `json:"productId,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Available *int   `json:"available,omitempty"`
}

// CartValidationResult is the outcome of validating a whole cart.
type CartValidationResult struct {
	IsValid    bool                `json:"isValid"`
	Items      []ValidatedCartLine `json:"items"`
	TotalPrice money.Amount        `json:"totalPrice"`
	Errors     []string            `json:"errors"`
	Problems   []LineProblem       `json:"problems"`
}

// ChargeResult is what a charge function returns; it is passed to the
// client unchanged.
type ChargeResult struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	StatusDetail      string `json:"statusDetail,omitempty"`
	ExternalReference string `json:"externalReference,omitempty"`
	PreferenceID      string `json:"preferenceId,omitempty"`
	InitPoint         string `json:"initPoint,omitempty"`
	OrderID           string `json:"orderId,omitempty"`
}
