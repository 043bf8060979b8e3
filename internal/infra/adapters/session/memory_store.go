package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/ports/adapter"
)

var _ adapter.SessionStore = (*MemoryStore)(nil)

// MemoryStore keeps one access credential per signed-in account.
// JWT-shaped credentials are inspected (signature unverified) and reported absent once
// their exp has passed; opaque credentials never expire here.
type MemoryStore struct {
	mu    sync.RWMutex
	creds map[string]string
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{creds: make(map[string]string), now: time.Now}
}

func (s *MemoryStore) Login(userID, credential string) error {
	credential = strings.TrimSpace(credential)
	if userID == "" || credential == "" {
		return domain.ErrInvalidArgument
	}
	if Expired(credential, s.now()) {
		return domain.ErrUnauthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[userID] = credential
	return nil
}

func (s *MemoryStore) Logout(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, userID)
}

func (s *MemoryStore) Credential(ctx context.Context, userID string) (string, bool) {
	s.mu.RLock()
	c, ok := s.creds[userID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if Expired(c, s.now()) {
		s.Logout(userID)
		return "", false
	}
	return c, true
}

// Expired reports whether credential is a JWT whose exp lies before now.
func Expired(credential string, now time.Time) bool {
	if strings.Count(credential, ".") != 2 {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.Before(now)
}
