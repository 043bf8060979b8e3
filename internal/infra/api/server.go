package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/repository"
	"premium-activation/internal/infra/adapters/notify"
	"premium-activation/internal/infra/logging"
	"premium-activation/internal/infra/metrics"
	"premium-activation/internal/usecase"
)

// SessionManager signs accounts in and out. *session.MemoryStore satisfies it.
type SessionManager interface {
	Login(userID, credential string) error
	Logout(userID string)
}

// RateLimiter is satisfied by the Redis and in-memory fixed-window limiters.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// InboxReader returns the notifications kept for an account.
type InboxReader interface {
	Recent(userID string) []notify.Delivered
}

// Deps are the collaborators of the HTTP surface. Optional ones may be nil.
type Deps struct {
	Engines  *usecase.EngineRegistry
	Listener *usecase.ReturnListener
	Sessions SessionManager
	Plans    *model.PlanCatalog

	Premium repository.PremiumCacheRepository // optional
	Ledger  usecase.LedgerUseCase             // optional
	Inbox   InboxReader                       // optional
	Limiter RateLimiter                       // optional
	Admin   *AdminAuth                        // optional, guards the ledger routes
}

type Options struct {
	ReturnPath     string
	CancelPath     string
	InitiateLimit  int
	RateWindow     time.Duration
	RequestTimeout time.Duration
	// LimitKey builds the rate limit key of an account.
	LimitKey func(userID string) string
}

type Server struct {
	deps Deps
	opts Options
	log  *zerolog.Logger
}

func NewServer(deps Deps, opts Options, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http").Logger()
	if opts.LimitKey == nil {
		opts.LimitKey = func(userID string) string { return "rate_limit:" + userID + ":initiate" }
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	return &Server{deps: deps, opts: opts, log: &l}
}

// withUser tags the request context with the account in the path.
func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithUserID(r.Context(), chi.URLParam(r, "userID"))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(s.log), RequestLog(s.log), Recover(s.log), Timeout(s.opts.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Get(s.opts.ReturnPath, s.handleLanding)
	r.Get(s.opts.CancelPath, s.handleLanding)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/plans", s.handlePlans)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(withUser)
			r.Put("/session", s.handleLogin)
			r.Delete("/session", s.handleLogout)

			r.Get("/premium", s.handleStatus)
			r.Post("/premium/checkout", s.handleInitiate)
			r.Post("/premium/checkout/opened", s.handleCheckoutOpened)
			r.Post("/premium/focus", s.handleFocus)
			r.Post("/premium/resume", s.handleResume)
			r.Get("/notifications", s.handleNotifications)
		})

		if s.deps.Admin != nil && s.deps.Ledger != nil {
			r.Group(func(r chi.Router) {
				r.Use(s.deps.Admin.Middleware)
				r.Get("/admin/users/{userID}/attempts", s.handleAttempts)
			})
		}
	})
	return r
}
