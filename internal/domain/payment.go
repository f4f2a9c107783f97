package domain

import "github.com/Rodrigo-Schwindt/Backend-Render/pkg/money"

// Payment statuses reported by the gateway.
const (
	PaymentStatusPending     = "pending"
	PaymentStatusApproved    = "approved"
	PaymentStatusAuthorized  = "authorized"
	PaymentStatusInProcess   = "in_process"
	PaymentStatusInMediation = "in_mediation"
	PaymentStatusRejected    = "rejected"
	PaymentStatusCancelled   = "cancelled"
	PaymentStatusRefunded    = "refunded"
	PaymentStatusChargedBack = "charged_back"
)

// Payer identifies who pays.
type Payer struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name,omitempty"`
}

// BackURLs are where the hosted checkout sends the buyer afterwards.
type BackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

// PreferenceRequest asks the gateway for a hosted checkout.
type PreferenceRequest struct {
	Items             []ValidatedCartLine
	Payer             Payer
	BackURLs          BackURLs
	NotificationURL   string
	ExternalReference string
	Currency          string
}

// Preference is a created hosted checkout.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"initPoint"`
	SandboxInitPoint string `json:"sandboxInitPoint,omitempty"`
}

// ChargeRequest is a direct card charge with a tokenized card.
type ChargeRequest struct {
	Amount            money.Amount
	Token             string
	PaymentMethodID   string
	Installments      int
	IssuerID          string
	Payer             Payer
	Description       string
	ExternalReference string
	NotificationURL   string
	IdempotencyKey    string
}

// GatewayPayment is a payment as reported by the gateway.
type GatewayPayment struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	Amount            money.Amount
}
