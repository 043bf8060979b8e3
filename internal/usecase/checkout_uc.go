// File: internal/usecase/checkout_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/adapter"
	"premium-activation/internal/infra/logging"
	"premium-activation/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// AccountRef identifies the signed-in account a checkout is created for.
type AccountRef struct {
	UserID     string
	Credential string
}

// CheckoutUseCase creates hosted checkout sessions and hands them to the opener.
type CheckoutUseCase interface {
	Initiate(ctx context.Context, plan model.PlanTier, account AccountRef) (*model.PaymentSession, error)
	// OpenCheckout blocks until the checkout surface is dismissed. The dismissal is not a payment outcome.
	OpenCheckout(ctx context.Context, session *model.PaymentSession) (model.Dismissal, error)
}

type CheckoutOptions struct {
	PublicBaseURL     string
	ReturnPath        string
	CancelPath        string
	DescriptionBudget int
}

type checkoutUC struct {
	gateway adapter.PaymentLinkGateway
	opener  adapter.CheckoutOpener
	opts    CheckoutOptions
	now     func() time.Time
	log     *zerolog.Logger
}

func NewCheckoutUseCase(gateway adapter.PaymentLinkGateway, opener adapter.CheckoutOpener, opts CheckoutOptions, logger *zerolog.Logger) *checkoutUC {
	if opts.DescriptionBudget <= 0 {
		opts.DescriptionBudget = 25
	}
	l := logger.With().Str("component", "checkout").Str("gateway", gateway.Name()).Logger()
	return &checkoutUC{
		gateway: gateway,
		opener:  opener,
		opts:    opts,
		now:     time.Now,
		log:     &l,
	}
}

func (u *checkoutUC) Initiate(ctx context.Context, plan model.PlanTier, account AccountRef) (*model.PaymentSession, error) {
	defer logging.TraceDuration(u.log, "CheckoutUC.Initiate")()

	if strings.TrimSpace(account.Credential) == "" {
		metrics.IncPaymentLink("unauthenticated")
		return nil, domain.ErrUnauthenticated
	}
	if account.UserID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}

	sessionID := uuid.NewString()
	returnURL, cancelURL, err := u.returnURLs(account.UserID, sessionID)
	if err != nil {
		return nil, err
	}

	req := adapter.PaymentLinkRequest{
		UserID:         account.UserID,
		Description:    BuildDescription(plan, account.UserID, u.opts.DescriptionBudget),
		CancelURL:      cancelURL,
		ReturnURL:      returnURL,
		Items:          []adapter.PaymentLinkItem{{Name: plan.Name, Quantity: 1, Price: plan.AmountMinor}},
		DurationMonths: plan.DurationMonths,
		Amount:         plan.AmountMinor,
	}

	link, err := u.gateway.CreatePaymentLink(ctx, account.Credential, req)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			metrics.IncPaymentLink("unauthenticated")
			return nil, err
		}
		var pe *domain.ProviderError
		if !errors.As(err, &pe) {
			err = &domain.ProviderError{Message: err.Error()}
		}
		metrics.IncPaymentLink("provider_error")
		u.log.Warn().Err(err).Str("user_id", account.UserID).Str("plan", plan.ID).Msg("payment link creation failed")
		return nil, err
	}
	if link.CheckoutURL == "" {
		metrics.IncPaymentLink("provider_error")
		return nil, &domain.ProviderError{Message: "empty checkout url"}
	}
	if _, err := url.ParseRequestURI(link.CheckoutURL); err != nil {
		metrics.IncPaymentLink("provider_error")
		return nil, &domain.ProviderError{Message: "malformed checkout url"}
	}

	metrics.IncPaymentLink("ok")
	s := &model.PaymentSession{
		SessionID:        sessionID,
		OrderCode:        link.OrderCode,
		Plan:             plan,
		AmountMinorUnits: plan.AmountMinor,
		Currency:         plan.Currency,
		CreatedAt:        u.now(),
		CheckoutURL:      link.CheckoutURL,
		ReturnURL:        returnURL,
		CancelURL:        cancelURL,
	}
	u.log.Info().Str("user_id", account.UserID).Str("session_id", sessionID).Str("plan", plan.ID).Msg("checkout session created")
	return s, nil
}

func (u *checkoutUC) OpenCheckout(ctx context.Context, session *model.PaymentSession) (model.Dismissal, error) {
	if session == nil || session.CheckoutURL == "" {
		return model.Dismissal{}, domain.ErrNoCheckoutSession
	}
	d, err := u.opener.Open(ctx, session.CheckoutURL)
	if err != nil {
		return model.Dismissal{}, fmt.Errorf("open checkout: %w", err)
	}
	if d.At.IsZero() {
		d.At = u.now()
	}
	return d, nil
}

// returnURLs builds the landing URLs the provider redirects to.
// The cancel URL carries cancel=true so it classifies even when the provider adds nothing.
func (u *checkoutUC) returnURLs(userID, sessionID string) (string, string, error) {
	base := strings.TrimRight(u.opts.PublicBaseURL, "/")
	if base == "" {
		return "", "", fmt.Errorf("%w: public base url is empty", domain.ErrInvalidArgument)
	}
	q := url.Values{}
	q.Set("uid", userID)
	q.Set(model.ParamSessionRef, sessionID)
	ret := base + u.opts.ReturnPath + "?" + q.Encode()
	q.Set(model.ParamCancel, "true")
	cancel := base + u.opts.CancelPath + "?" + q.Encode()
	return ret, cancel, nil
}

// BuildDescription renders the checkout description and truncates it to budget characters.
func BuildDescription(plan model.PlanTier, userID string, budget int) string {
	return truncateRunes(fmt.Sprintf("PREMIUM %dM %s", plan.DurationMonths, userID), budget)
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
