package payment

import (
	"context"
	"fmt"
	"sync"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/ports/adapter"
)

var _ adapter.PaymentLinkGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for the demo and tests.
// Links point at CheckoutBase; every created request is kept for inspection.
type NoopPaymentGateway struct {
	CheckoutBase string

	mu       sync.Mutex
	seq      int64
	requests map[string]adapter.PaymentLinkRequest // order code -> request
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		CheckoutBase: "https://example.test/pay/",
		requests:     make(map[string]adapter.PaymentLinkRequest),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("%d", 100000+g.seq)
}

func (g *NoopPaymentGateway) CreatePaymentLink(ctx context.Context, credential string, req adapter.PaymentLinkRequest) (adapter.PaymentLink, error) {
	if credential == "" {
		return adapter.PaymentLink{}, domain.ErrUnauthenticated
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	code := g.next()
	g.requests[code] = req
	return adapter.PaymentLink{CheckoutURL: g.CheckoutBase + code, OrderCode: code}, nil
}

// Request returns the request behind an order code.
func (g *NoopPaymentGateway) Request(orderCode string) (adapter.PaymentLinkRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.requests[orderCode]
	return r, ok
}
