package account

import (
	"context"
	"sync"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/ports/adapter"
)

var _ adapter.AccountService = (*MemoryAccountService)(nil)

// MemoryAccountService keeps premium flags in memory. Credentials listed in Valid are
// accepted; an empty Valid set accepts any non-empty credential.
type MemoryAccountService struct {
	mu      sync.Mutex
	premium map[string]bool
	valid   map[string]bool
	writes  int

	// IgnoreWrites acknowledges SetPremium without applying it.
	IgnoreWrites bool
}

func NewMemoryAccountService(valid ...string) *MemoryAccountService {
	s := &MemoryAccountService{premium: map[string]bool{}, valid: map[string]bool{}}
	for _, v := range valid {
		s.valid[v] = true
	}
	return s
}

func (s *MemoryAccountService) authorized(credential string) bool {
	if credential == "" {
		return false
	}
	return len(s.valid) == 0 || s.valid[credential]
}

func (s *MemoryAccountService) GetAccount(ctx context.Context, credential, userID string) (*adapter.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authorized(credential) {
		return nil, domain.ErrUnauthenticated
	}
	return &adapter.Account{UserID: userID, IsPremium: s.premium[userID]}, nil
}

func (s *MemoryAccountService) SetPremium(ctx context.Context, credential, userID string, premium bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authorized(credential) {
		return domain.ErrUnauthenticated
	}
	s.writes++
	if !s.IgnoreWrites {
		s.premium[userID] = premium
	}
	return nil
}

// Writes returns how many SetPremium calls were accepted.
func (s *MemoryAccountService) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
