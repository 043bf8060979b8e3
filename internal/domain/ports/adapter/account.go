package adapter

import (
	"context"
)

// Account is the subset of the account record the premium flow reads.
type Account struct {
	UserID    string `json:"userId"`
	IsPremium bool   `json:"isPremium"`
}

// AccountService is the external collaborator owning the account record.
// Both calls return domain.ErrUnauthenticated when the credential is rejected.
type AccountService interface {
	GetAccount(ctx context.Context, credential, userID string) (*Account, error)
	SetPremium(ctx context.Context, credential, userID string, premium bool) error
}
