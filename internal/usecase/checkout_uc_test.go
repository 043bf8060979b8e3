//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"unicode/utf8"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/adapter"
	"premium-activation/internal/usecase"
)

func newTestCheckout(gw *MockGateway, opener *MockOpener) usecase.CheckoutUseCase {
	return usecase.NewCheckoutUseCase(gw, opener, usecase.CheckoutOptions{
		PublicBaseURL:     "https://app.example.test/",
		ReturnPath:        "/payment/return",
		CancelPath:        "/payment/cancel",
		DescriptionBudget: 25,
	}, newTestLogger())
}

func TestBuildDescription(t *testing.T) {
	plan := model.PlanTier{ID: "p", Name: "P", DurationMonths: 12, AmountMinor: 1}

	if got := usecase.BuildDescription(plan, "u1", 25); got != "PREMIUM 12M u1" {
		t.Errorf("unexpected description %q", got)
	}

	long := usecase.BuildDescription(plan, "user-0123456789abcdef", 25)
	if utf8.RuneCountInString(long) != 25 {
		t.Errorf("expected 25 characters, got %d (%q)", utf8.RuneCountInString(long), long)
	}
	if !strings.HasPrefix(long, "PREMIUM 12M user-") {
		t.Errorf("expected prefix to be kept, got %q", long)
	}

	uni := usecase.BuildDescription(plan, "người-dùng-tiếng-việt", 25)
	if !utf8.ValidString(uni) || utf8.RuneCountInString(uni) != 25 {
		t.Errorf("expected a valid 25-rune string, got %q", uni)
	}
}

func TestCheckoutUseCase_Initiate(t *testing.T) {
	ctx := context.Background()
	plan, _ := testPlans().Find("premium-12m")
	account := usecase.AccountRef{UserID: "user-1", Credential: "token"}

	t.Run("should create a session from the payment link", func(t *testing.T) {
		gw := &MockGateway{}
		var gotCred string
		gw.CreatePaymentLinkFunc = func(ctx context.Context, credential string, req adapter.PaymentLinkRequest) (adapter.PaymentLink, error) {
			gotCred = credential
			return adapter.PaymentLink{CheckoutURL: "https://pay.example.test/web/abc", OrderCode: "42"}, nil
		}
		uc := newTestCheckout(gw, &MockOpener{})

		s, err := uc.Initiate(ctx, plan, account)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if gotCred != "token" {
			t.Errorf("expected bearer credential to be passed, got %q", gotCred)
		}
		if s.CheckoutURL != "https://pay.example.test/web/abc" || s.OrderCode != "42" {
			t.Errorf("unexpected session %+v", s)
		}
		if s.AmountMinorUnits != 429000 || s.Currency != "VND" || s.Plan.ID != "premium-12m" {
			t.Errorf("unexpected amount or plan in session %+v", s)
		}

		req := gw.Requests[0]
		if req.Amount != 429000 || req.DurationMonths != 12 || len(req.Items) != 1 || req.Items[0].Quantity != 1 {
			t.Errorf("unexpected request %+v", req)
		}
		if req.Description != "PREMIUM 12M user-1" {
			t.Errorf("unexpected description %q", req.Description)
		}

		ret, err := url.Parse(req.ReturnURL)
		if err != nil {
			t.Fatalf("return url does not parse: %v", err)
		}
		if ret.Path != "/payment/return" || ret.Query().Get("sid") != s.SessionID || ret.Query().Get("uid") != "user-1" {
			t.Errorf("unexpected return url %q", req.ReturnURL)
		}
		cancel, _ := url.Parse(req.CancelURL)
		if cancel.Path != "/payment/cancel" || cancel.Query().Get("cancel") != "true" {
			t.Errorf("unexpected cancel url %q", req.CancelURL)
		}
	})

	t.Run("should refuse without a credential", func(t *testing.T) {
		gw := &MockGateway{}
		uc := newTestCheckout(gw, &MockOpener{})
		_, err := uc.Initiate(ctx, plan, usecase.AccountRef{UserID: "user-1"})
		if !errors.Is(err, domain.ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
		if gw.Calls() != 0 {
			t.Error("expected no provider call without a credential")
		}
	})

	t.Run("should pass through a rejected credential", func(t *testing.T) {
		gw := &MockGateway{CreatePaymentLinkFunc: func(ctx context.Context, credential string, req adapter.PaymentLinkRequest) (adapter.PaymentLink, error) {
			return adapter.PaymentLink{}, domain.ErrUnauthenticated
		}}
		_, err := newTestCheckout(gw, &MockOpener{}).Initiate(ctx, plan, account)
		if !errors.Is(err, domain.ErrUnauthenticated) {
			t.Errorf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("should wrap transport failures as provider errors", func(t *testing.T) {
		gw := &MockGateway{CreatePaymentLinkFunc: func(ctx context.Context, credential string, req adapter.PaymentLinkRequest) (adapter.PaymentLink, error) {
			return adapter.PaymentLink{}, errors.New("connection reset")
		}}
		_, err := newTestCheckout(gw, &MockOpener{}).Initiate(ctx, plan, account)
		var pe *domain.ProviderError
		if !errors.As(err, &pe) || !errors.Is(err, domain.ErrProvider) {
			t.Errorf("expected *domain.ProviderError, got %v", err)
		}
	})

	t.Run("should reject an empty checkout url", func(t *testing.T) {
		gw := &MockGateway{CreatePaymentLinkFunc: func(ctx context.Context, credential string, req adapter.PaymentLinkRequest) (adapter.PaymentLink, error) {
			return adapter.PaymentLink{}, nil
		}}
		_, err := newTestCheckout(gw, &MockOpener{}).Initiate(ctx, plan, account)
		if !errors.Is(err, domain.ErrProvider) {
			t.Errorf("expected provider error, got %v", err)
		}
	})

	t.Run("should reject a malformed checkout url", func(t *testing.T) {
		gw := &MockGateway{CreatePaymentLinkFunc: func(ctx context.Context, credential string, req adapter.PaymentLinkRequest) (adapter.PaymentLink, error) {
			return adapter.PaymentLink{CheckoutURL: "not a url"}, nil
		}}
		_, err := newTestCheckout(gw, &MockOpener{}).Initiate(ctx, plan, account)
		if !errors.Is(err, domain.ErrProvider) {
			t.Errorf("expected provider error, got %v", err)
		}
	})

	t.Run("should generate distinct session ids", func(t *testing.T) {
		uc := newTestCheckout(&MockGateway{}, &MockOpener{})
		a, _ := uc.Initiate(ctx, plan, account)
		b, _ := uc.Initiate(ctx, plan, account)
		if a.SessionID == b.SessionID {
			t.Error("expected distinct session ids")
		}
	})
}

func TestCheckoutUseCase_OpenCheckout(t *testing.T) {
	ctx := context.Background()

	t.Run("should require a session", func(t *testing.T) {
		uc := newTestCheckout(&MockGateway{}, &MockOpener{})
		if _, err := uc.OpenCheckout(ctx, nil); !errors.Is(err, domain.ErrNoCheckoutSession) {
			t.Errorf("expected ErrNoCheckoutSession, got %v", err)
		}
	})

	t.Run("should hand the url to the opener and return the dismissal", func(t *testing.T) {
		var opened string
		opener := &MockOpener{OpenFunc: func(ctx context.Context, u string) (model.Dismissal, error) {
			opened = u
			return model.Dismissal{}, nil
		}}
		uc := newTestCheckout(&MockGateway{}, opener)
		d, err := uc.OpenCheckout(ctx, &model.PaymentSession{CheckoutURL: "https://pay.example.test/x"})
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if opened != "https://pay.example.test/x" {
			t.Errorf("unexpected url %q", opened)
		}
		if d.At.IsZero() {
			t.Error("expected dismissal time to be filled in")
		}
	})
}
