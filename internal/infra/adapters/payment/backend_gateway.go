// File: internal/infra/adapters/payment/backend_gateway.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/ports/adapter"
)

var _ adapter.PaymentLinkGateway = (*BackendGateway)(nil)

// BackendGateway creates hosted checkout sessions through the app backend,
// which holds the provider keys and answers POST /payment-link.
type BackendGateway struct {
	client *resty.Client
}

func NewBackendGateway(baseURL string, timeout time.Duration) (*BackendGateway, error) {
	if baseURL == "" {
		return nil, errors.New("payment backend base url empty")
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &BackendGateway{client: c}, nil
}

func (g *BackendGateway) Name() string { return "backend" }

type paymentLinkResponse struct {
	CheckoutURL string          `json:"checkoutUrl"`
	OrderCode   json.RawMessage `json:"orderCode,omitempty"`
	Message     string          `json:"message,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func (g *BackendGateway) CreatePaymentLink(ctx context.Context, credential string, req adapter.PaymentLinkRequest) (adapter.PaymentLink, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(credential).
		SetBody(req).
		Post("/payment-link")
	if err != nil {
		return adapter.PaymentLink{}, &domain.ProviderError{Message: err.Error()}
	}

	if resp.StatusCode() == http.StatusUnauthorized {
		return adapter.PaymentLink{}, domain.ErrUnauthenticated
	}

	var body paymentLinkResponse
	decodeErr := json.Unmarshal(resp.Body(), &body)

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		msg := firstNonEmpty(body.Message, body.Error, http.StatusText(resp.StatusCode()))
		return adapter.PaymentLink{}, &domain.ProviderError{Status: resp.StatusCode(), Message: msg}
	}
	if decodeErr != nil {
		return adapter.PaymentLink{}, &domain.ProviderError{Status: resp.StatusCode(), Message: "malformed response"}
	}
	if body.CheckoutURL == "" {
		return adapter.PaymentLink{}, &domain.ProviderError{Status: resp.StatusCode(), Message: "empty checkout url"}
	}
	return adapter.PaymentLink{CheckoutURL: body.CheckoutURL, OrderCode: rawRef(body.OrderCode)}, nil
}

// rawRef accepts the order code as either a JSON number or string.
func rawRef(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
