// File: internal/infra/adapters/account/http_account.go
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/ports/adapter"
)

var _ adapter.AccountService = (*HTTPAccountService)(nil)

// HTTPAccountService talks to the Account Service REST API.
type HTTPAccountService struct {
	client *resty.Client
}

func NewHTTPAccountService(baseURL string, timeout time.Duration) (*HTTPAccountService, error) {
	if baseURL == "" {
		return nil, errors.New("account service base url empty")
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPAccountService{client: c}, nil
}

type accountResponse struct {
	UserID    string `json:"userId"`
	IsPremium *bool  `json:"isPremium"`
}

type errorResponse struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func (s *HTTPAccountService) GetAccount(ctx context.Context, credential, userID string) (*adapter.Account, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(credential).
		Get("/account/" + url.PathEscape(userID))
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if err := statusError(resp); err != nil {
		return nil, err
	}

	var body accountResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode account: %w", err)
	}
	if body.IsPremium == nil {
		return nil, errors.New("decode account: isPremium missing")
	}
	return &adapter.Account{UserID: body.UserID, IsPremium: *body.IsPremium}, nil
}

func (s *HTTPAccountService) SetPremium(ctx context.Context, credential, userID string, premium bool) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(credential).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]bool{"isPremium": premium}).
		Put("/account/" + url.PathEscape(userID) + "/premium")
	if err != nil {
		return fmt.Errorf("set premium: %w", err)
	}
	return statusError(resp)
}

// statusError maps non-2xx answers: 401/403 to ErrUnauthenticated, the rest to *domain.RejectionError.
func statusError(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return domain.ErrUnauthenticated
	}
	var body errorResponse
	_ = json.Unmarshal(resp.Body(), &body)
	reason := body.Reason
	if reason == "" {
		reason = body.Message
	}
	return &domain.RejectionError{Status: code, Reason: reason}
}
