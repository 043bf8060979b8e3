package adapter

import (
	"context"

	"premium-activation/internal/domain/model"
)

// PaymentLinkItem is one line item shown on the hosted checkout.
type PaymentLinkItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

// PaymentLinkRequest is the body of POST /payment-link.
type PaymentLinkRequest struct {
	UserID         string            `json:"userId"`
	Description    string            `json:"description"`
	CancelURL      string            `json:"cancelUrl"`
	ReturnURL      string            `json:"returnUrl"`
	Items          []PaymentLinkItem `json:"items"`
	DurationMonths int               `json:"durationMonths"`
	Amount         int64             `json:"amount"`
}

// PaymentLink is what the backend answers with.
type PaymentLink struct {
	CheckoutURL string `json:"checkoutUrl"`
	OrderCode   string `json:"orderCode,omitempty"`
}

// PaymentLinkGateway is the hex port for creating hosted checkout sessions.
type PaymentLinkGateway interface {
	Name() string

	// CreatePaymentLink returns domain.ErrUnauthenticated on a rejected credential and
	// *domain.ProviderError on any other failure.
	CreatePaymentLink(ctx context.Context, credential string, req PaymentLinkRequest) (PaymentLink, error)
}

// CheckoutOpener hands a checkout URL to the platform browser and blocks until it is dismissed.
// The dismissal never carries the payment outcome.
type CheckoutOpener interface {
	Open(ctx context.Context, checkoutURL string) (model.Dismissal, error)
}
