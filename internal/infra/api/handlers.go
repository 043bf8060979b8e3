package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/model"
	"premium-activation/internal/infra/adapters/notify"
	"premium-activation/internal/infra/logging"
	"premium-activation/internal/usecase"
)

type loginRequest struct {
	Credential string `json:"credential"`
}

type loginResponse struct {
	State   model.EngineState `json:"state"`
	Resumed *usecase.Outcome  `json:"resumed,omitempty"`
}

type initiateRequest struct {
	PlanID string `json:"planId"`
}

type statusResponse struct {
	Engine  model.EngineSnapshot       `json:"engine"`
	Premium *model.AccountPremiumState `json:"premium,omitempty"`
}

type outcomeResponse struct {
	usecase.Outcome
	Error string `json:"error,omitempty"`
}

func toOutcomeResponse(o usecase.Outcome) outcomeResponse {
	out := outcomeResponse{Outcome: o}
	if o.Err != nil {
		out.Error = usecase.FailureReason(o.Err)
	}
	return out
}

func (s *Server) engine(w http.ResponseWriter, r *http.Request) (*usecase.ReconciliationEngine, bool) {
	userID := chi.URLParam(r, "userID")
	e, err := s.deps.Engines.Get(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return e, true
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.deps.Plans.List()})
}

// handleLogin stores the credential and resumes an activation parked for it.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.deps.Sessions.Login(userID, req.Credential); err != nil {
		writeError(w, err)
		return
	}
	l := logging.With(r.Context(), s.log)
	l.Debug().Str("credential", logging.Redact(req.Credential)).Msg("signed in")

	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	resp := loginResponse{State: e.State()}
	if resp.State == model.StateNeedsReauth {
		out, err := e.ResumeAfterLogin(r.Context())
		if err != nil && !errors.Is(err, domain.ErrNoActivationOwed) {
			l.Warn().Err(err).Msg("resume after login failed")
		}
		if err == nil {
			resp.Resumed = &out
		}
		resp.State = out.State
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.deps.Sessions.Logout(chi.URLParam(r, "userID"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	resp := statusResponse{Engine: e.Snapshot()}
	if s.deps.Premium != nil {
		st, err := s.deps.Premium.GetPremium(r.Context(), e.UserID())
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			l := logging.With(r.Context(), s.log)
			l.Warn().Err(err).Msg("premium cache read failed")
		}
		resp.Premium = st
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == "" {
		writeErrorMessage(w, http.StatusBadRequest, "planId is required")
		return
	}
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	if s.deps.Limiter != nil && s.opts.InitiateLimit > 0 {
		allowed, err := s.deps.Limiter.Allow(r.Context(), s.opts.LimitKey(e.UserID()), s.opts.InitiateLimit, s.opts.RateWindow)
		if err != nil {
			l := logging.With(r.Context(), s.log)
			l.Warn().Err(err).Msg("rate limiter unavailable")
		} else if !allowed {
			writeError(w, domain.ErrRateLimited)
			return
		}
	}

	res, err := e.Initiate(r.Context(), req.PlanID)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if res.Coalesced {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (s *Server) handleCheckoutOpened(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	sess, err := e.CheckoutOpened(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": e.State(), "session": sess})
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	out, err := s.deps.Listener.OnFocus(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w, r)
	if !ok {
		return
	}
	out, err := e.ResumeAfterLogin(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	items := []notify.Delivered{}
	if s.deps.Inbox != nil {
		items = s.deps.Inbox.Recent(chi.URLParam(r, "userID"))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := s.deps.Ledger.ListAttempts(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*model.ActivationAttempt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": list})
}
