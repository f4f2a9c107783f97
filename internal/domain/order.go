package domain

import (
	"time"

	"github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"
)

// Order status constants.
const (
	OrderStatusPending       = "pending"
	OrderStatusPaid          = "paid"
	OrderStatusCancelled     = "cancelled"
	OrderStatusFailed        = "failed"
	OrderStatusStockConflict = "stock_conflict"
)

// DefaultCurrency is the only currency the storefront charges in.
const DefaultCurrency = "ARS"

// Order is created before the gateway is called; its ID is the gateway's
// external reference.
type Order struct {
	ID               string              `json:"id"`
	UserID           *string             `json:"userId,omitempty"`
	Status           string              `json:"status"`
	PaymentStatus    string              `json:"paymentStatus"`
	GatewayPaymentID *string             `json:"gatewayPaymentId,omitempty"`
	PreferenceID     *string             `json:"preferenceId,omitempty"`
	PayerEmail       string              `json:"payerEmail"`
	TotalAmount      money.Amount        `json:"totalAmount"`
	Currency         string              `json:"currency"`
	Items            []ValidatedCartLine `json:"items"`
	CreatedAt        time.Time           `json:"createdAt"`
	UpdatedAt        time.Time           `json:"updatedAt"`
}

// IsFinal reports whether the order can no longer change on a webhook.
func (o *Order) IsFinal() bool {
	switch o.Status {
	case OrderStatusPaid, OrderStatusCancelled, OrderStatusStockConflict:
		return true
	default:
		return false
	}
}

// Adjustments lists the stock decrements needed to fulfill the order.
func (o *Order) Adjustments() []StockAdjustment {
	adj := make([]StockAdjustment, 0, len(o.Items))
	for _, it := range o.Items {
		adj = append(adj, StockAdjustment{
			ProductID: it.ProductID,
			Color:     it.Color,
			Size:      it.Size,
			Quantity:  it.Quantity,
		})
	}
	return adj
}
