//go:build !integration

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/ports/adapter"
)

func newTestBackend(t *testing.T, h http.HandlerFunc) *BackendGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g, err := NewBackendGateway(srv.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("failed to create gateway: %v", err)
	}
	return g
}

func TestBackendGateway_CreatePaymentLink(t *testing.T) {
	ctx := context.Background()
	req := adapter.PaymentLinkRequest{
		UserID:         "user-1",
		Description:    "PREMIUM 1M user-1",
		CancelURL:      "https://app.test/payment/cancel?cancel=true",
		ReturnURL:      "https://app.test/payment/return",
		Items:          []adapter.PaymentLinkItem{{Name: "Premium 1 month", Quantity: 1, Price: 49000}},
		DurationMonths: 1,
		Amount:         49000,
	}

	t.Run("should post the request with a bearer credential", func(t *testing.T) {
		var got adapter.PaymentLinkRequest
		g := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || r.URL.Path != "/payment-link" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.Header.Get("Authorization") != "Bearer token" {
				t.Errorf("unexpected authorization header %q", r.Header.Get("Authorization"))
			}
			_ = json.NewDecoder(r.Body).Decode(&got)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"checkoutUrl":"https://pay.test/web/abc","orderCode":123456}`))
		})

		link, err := g.CreatePaymentLink(ctx, "token", req)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if link.CheckoutURL != "https://pay.test/web/abc" || link.OrderCode != "123456" {
			t.Errorf("unexpected link %+v", link)
		}
		if got.UserID != "user-1" || got.Amount != 49000 || len(got.Items) != 1 || got.DurationMonths != 1 {
			t.Errorf("unexpected body %+v", got)
		}
	})

	t.Run("should map 401 to unauthenticated", func(t *testing.T) {
		g := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		if _, err := g.CreatePaymentLink(ctx, "expired", req); !errors.Is(err, domain.ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("should map non-2xx to a provider error with the message", func(t *testing.T) {
		g := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"message":"provider unavailable"}`))
		})
		_, err := g.CreatePaymentLink(ctx, "token", req)
		var pe *domain.ProviderError
		if !errors.As(err, &pe) || pe.Status != http.StatusBadGateway || pe.Message != "provider unavailable" {
			t.Errorf("unexpected error %v", err)
		}
	})

	t.Run("should reject malformed and empty responses", func(t *testing.T) {
		for _, body := range []string{`not json`, `{"checkoutUrl":""}`} {
			g := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			if _, err := g.CreatePaymentLink(ctx, "token", req); !errors.Is(err, domain.ErrProvider) {
				t.Errorf("body %q: expected provider error, got %v", body, err)
			}
		}
	})

	t.Run("should report transport failures as provider errors", func(t *testing.T) {
		g, _ := NewBackendGateway("http://127.0.0.1:1", 200*time.Millisecond)
		if _, err := g.CreatePaymentLink(ctx, "token", req); !errors.Is(err, domain.ErrProvider) {
			t.Errorf("expected provider error, got %v", err)
		}
	})
}

func TestNoopPaymentGateway(t *testing.T) {
	g := NewNoopPaymentGateway()
	link, err := g.CreatePaymentLink(context.Background(), "token", adapter.PaymentLinkRequest{UserID: "u1"})
	if err != nil || link.OrderCode == "" {
		t.Fatalf("unexpected result %+v %v", link, err)
	}
	if r, ok := g.Request(link.OrderCode); !ok || r.UserID != "u1" {
		t.Error("expected request to be recorded")
	}
	if _, err := g.CreatePaymentLink(context.Background(), "", adapter.PaymentLinkRequest{}); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}
