// File: internal/usecase/reconcile_engine.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/adapter"
	"premium-activation/internal/domain/ports/repository"
	"premium-activation/internal/infra/i18n"
	"premium-activation/internal/infra/logging"
	"premium-activation/internal/infra/metrics"
)

// Reasons a return event is dropped without a transition.
const (
	DropUnknown         = "unknown"
	DropConsumed        = "consumed"
	DropTerminal        = "terminal"
	DropInProgress      = "in_progress"
	DropForeignSession  = "foreign_session"
	DropNoSession       = "no_session"
	DropLockedElsewhere = "locked_elsewhere"
)

const (
	maxConsumedRefs   = 32
	activationLockTTL = 2 * time.Minute

	detailSuperseded  = "superseded by a newer attempt"
	detailInterrupted = "interrupted by restart"
)

// Translator renders user-visible messages. *i18n.Translator satisfies it.
type Translator interface {
	T(key string, args ...interface{}) string
}

// EngineDeps are the collaborators shared by every engine. Optional ones may be nil.
type EngineDeps struct {
	Plans     *model.PlanCatalog
	Checkout  CheckoutUseCase
	Activator *Activator
	Sessions  adapter.SessionStore
	Notifier  adapter.Notifier
	Prompter  adapter.LoginPrompter
	Messages  Translator

	Snapshots repository.EngineSnapshotRepository    // optional
	Attempts  repository.ActivationAttemptRepository // optional
	TxManager repository.TransactionManager          // optional, used with Attempts
	Locker    adapter.Locker                         // optional, shared between instances
}

// Outcome describes what a return event or a resume did to the engine.
type Outcome struct {
	State          model.EngineState    `json:"state"`
	Classification model.Classification `json:"classification,omitempty"`
	Dropped        bool                 `json:"dropped"`
	Reason         string               `json:"reason,omitempty"`
	Err            error                `json:"-"`
}

// InitiateResult is the session an Initiate call produced or joined.
type InitiateResult struct {
	Session   *model.PaymentSession `json:"session"`
	Coalesced bool                  `json:"coalesced"`
}

// ReconciliationEngine is the per-account state machine joining checkout, return
// notifications and activation. At most one activation runs at a time: inProgress is
// set on entering Reconciling and cleared only by a terminal transition.
type ReconciliationEngine struct {
	userID string
	deps   EngineDeps
	log    *zerolog.Logger
	now    func() time.Time
	newID  func() string

	inProgress atomic.Bool

	mu          sync.Mutex
	state       model.EngineState
	linking     bool
	session     *model.PaymentSession
	attempt     *model.ActivationAttempt
	pendingRefs []string
	consumed    []string
	lastErr     error
	updatedAt   time.Time
	version     uint64

	persistMu sync.Mutex
	persisted uint64
}

func NewReconciliationEngine(userID string, deps EngineDeps, logger *zerolog.Logger) *ReconciliationEngine {
	l := logger.With().Str("component", "reconciler").Str("user_id", userID).Logger()
	return &ReconciliationEngine{
		userID:    userID,
		deps:      deps,
		log:       &l,
		now:       time.Now,
		newID:     func() string { return ulid.Make().String() },
		state:     model.StateIdle,
		updatedAt: time.Now(),
	}
}

func (e *ReconciliationEngine) UserID() string { return e.userID }

func (e *ReconciliationEngine) State() model.EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// InProgress reports whether an activation attempt holds the single-flight guard.
func (e *ReconciliationEngine) InProgress() bool { return e.inProgress.Load() }

func (e *ReconciliationEngine) Snapshot() model.EngineSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Initiate starts a new checkout for planID. While an activation is pending the
// call joins it instead of creating a second payment.
func (e *ReconciliationEngine) Initiate(ctx context.Context, planID string) (*InitiateResult, error) {
	defer logging.TraceDuration(e.log, "Engine.Initiate")()

	plan, err := e.deps.Plans.Find(planID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.state.HoldsAttempt() || e.inProgress.Load() {
		s := e.session
		e.mu.Unlock()
		if s == nil {
			return nil, domain.ErrActivationPending
		}
		return &InitiateResult{Session: s, Coalesced: true}, nil
	}
	if e.linking {
		e.mu.Unlock()
		return nil, domain.ErrTransitionBusy
	}
	e.linking = true
	if e.state != model.StateIdle {
		e.setStateLocked(model.StateIdle)
	}
	e.session = nil
	e.lastErr = nil
	snap := e.setStateLocked(model.StateLinkRequested)
	e.mu.Unlock()
	e.persist(ctx, snap)

	cred, _ := e.deps.Sessions.Credential(ctx, e.userID)
	sess, err := e.deps.Checkout.Initiate(ctx, plan, AccountRef{UserID: e.userID, Credential: cred})

	e.mu.Lock()
	e.linking = false
	if e.state != model.StateLinkRequested {
		// a return event moved the engine while the link was being created
		st := e.state
		e.mu.Unlock()
		if err != nil {
			return nil, err
		}
		if st.HoldsAttempt() {
			return nil, domain.ErrActivationPending
		}
		return nil, domain.ErrTransitionBusy
	}
	if err != nil {
		e.lastErr = err
		snap = e.setStateLocked(model.StateIdle)
		e.mu.Unlock()
		e.persist(ctx, snap)
		return nil, err
	}
	e.session = sess
	e.bumpLocked()
	snap = e.snapshotLocked()
	e.mu.Unlock()
	e.persist(ctx, snap)
	return &InitiateResult{Session: sess}, nil
}

// CheckoutOpened records that the checkout was handed to the opener.
// Calling it again while awaiting the return is a no-op.
func (e *ReconciliationEngine) CheckoutOpened(ctx context.Context) (*model.PaymentSession, error) {
	e.mu.Lock()
	switch {
	case e.linking:
		e.mu.Unlock()
		return nil, domain.ErrTransitionBusy
	case e.state == model.StateAwaitingReturn && e.session != nil:
		s := e.session
		e.mu.Unlock()
		return s, nil
	case e.state == model.StateLinkRequested && e.session != nil:
		s := e.session
		snap := e.setStateLocked(model.StateAwaitingReturn)
		e.mu.Unlock()
		e.persist(ctx, snap)
		return s, nil
	}
	e.mu.Unlock()
	return nil, domain.ErrNoCheckoutSession
}

// OpenCheckout marks the session opened and blocks until the opener is dismissed.
// Dismissal never changes state; only a return event does.
func (e *ReconciliationEngine) OpenCheckout(ctx context.Context) (model.Dismissal, error) {
	s, err := e.CheckoutOpened(ctx)
	if err != nil {
		return model.Dismissal{}, err
	}
	d, err := e.deps.Checkout.OpenCheckout(ctx, s)
	if err != nil {
		return model.Dismissal{}, err
	}
	e.log.Debug().Str("session_id", s.SessionID).Time("dismissed_at", d.At).Msg("checkout dismissed")
	return d, nil
}

// HandleReturn applies one classified return event.
func (e *ReconciliationEngine) HandleReturn(ctx context.Context, cls model.Classification, ev model.ReturnEvent) Outcome {
	switch cls {
	case model.ClassificationSuccess:
		return e.handleSuccess(ctx, ev)
	case model.ClassificationCancelled:
		return e.handleCancelled(ctx, ev)
	default:
		return e.drop(cls, DropUnknown)
	}
}

// ResumeAfterLogin continues an activation parked in NeedsReauth.
func (e *ReconciliationEngine) ResumeAfterLogin(ctx context.Context) (Outcome, error) {
	// once started, an activation runs to completion regardless of the caller
	ctx = context.WithoutCancel(ctx)

	if st := e.State(); st != model.StateNeedsReauth {
		return Outcome{State: st}, resumeError(st)
	}

	token, err := e.acquireLease(ctx)
	if errors.Is(err, domain.ErrLockHeld) {
		return Outcome{State: model.StateNeedsReauth}, domain.ErrTransitionBusy
	}
	defer e.releaseLease(ctx, token)

	e.mu.Lock()
	if e.state != model.StateNeedsReauth {
		st := e.state
		e.mu.Unlock()
		return Outcome{State: st}, resumeError(st)
	}
	snap := e.setStateLocked(model.StateReconciling)
	e.mu.Unlock()
	e.persist(ctx, snap)

	return e.reconcile(ctx), nil
}

func resumeError(st model.EngineState) error {
	if st == model.StateReconciling {
		return domain.ErrActivationPending
	}
	return domain.ErrNoActivationOwed
}

func (e *ReconciliationEngine) handleSuccess(ctx context.Context, ev model.ReturnEvent) Outcome {
	e.mu.Lock()
	reason := e.successRejectionLocked(ev)
	e.mu.Unlock()
	if reason != "" {
		return e.drop(model.ClassificationSuccess, reason)
	}

	ctx = context.WithoutCancel(ctx)
	token, err := e.acquireLease(ctx)
	if errors.Is(err, domain.ErrLockHeld) {
		return e.drop(model.ClassificationSuccess, DropLockedElsewhere)
	}
	defer e.releaseLease(ctx, token)

	e.mu.Lock()
	if reason := e.successRejectionLocked(ev); reason != "" {
		e.mu.Unlock()
		return e.drop(model.ClassificationSuccess, reason)
	}
	if !e.inProgress.CompareAndSwap(false, true) {
		e.mu.Unlock()
		return e.drop(model.ClassificationSuccess, DropInProgress)
	}
	sessionRef := ev.SessionRef
	if sessionRef == "" && e.session != nil {
		sessionRef = e.session.SessionID
	}
	var sid *string
	if sessionRef != "" {
		sid = &sessionRef
	}
	attempt, err := model.NewActivationAttempt(e.newID(), e.userID, sid, e.now())
	if err != nil {
		e.inProgress.Store(false)
		e.mu.Unlock()
		return Outcome{State: e.State(), Classification: model.ClassificationSuccess, Err: err}
	}
	e.attempt = attempt
	e.pendingRefs = append(ev.Refs(), e.session.Refs()...)
	snap := e.setStateLocked(model.StateReconciling)
	e.mu.Unlock()
	e.persist(ctx, snap)
	e.openAttempt(ctx, attempt, detailSuperseded)

	out := e.reconcile(ctx)
	out.Classification = model.ClassificationSuccess
	return out
}

// successRejectionLocked returns the drop reason for a Success event, or "" when it is accepted.
func (e *ReconciliationEngine) successRejectionLocked(ev model.ReturnEvent) string {
	switch {
	case e.consumedLocked(ev.Refs()):
		return DropConsumed
	case e.state.IsTerminal():
		return DropTerminal
	case e.inProgress.Load() || e.state.HoldsAttempt():
		return DropInProgress
	}
	return ""
}

func (e *ReconciliationEngine) handleCancelled(ctx context.Context, ev model.ReturnEvent) Outcome {
	refs := ev.Refs()

	e.mu.Lock()
	var reason string
	switch {
	case e.consumedLocked(refs):
		reason = DropConsumed
	case e.inProgress.Load() || e.state.HoldsAttempt():
		reason = DropInProgress
	case e.state.IsTerminal():
		reason = DropTerminal
	case e.session == nil:
		reason = DropNoSession
	case len(refs) > 0 && !matchesAny(e.session, refs):
		reason = DropForeignSession
	}
	if reason != "" {
		e.mu.Unlock()
		return e.drop(model.ClassificationCancelled, reason)
	}
	e.consumeLocked(append(refs, e.session.Refs()...)...)
	snap := e.setStateLocked(model.StateCancelledByUser)
	e.mu.Unlock()
	e.persist(ctx, snap)

	e.notify(ctx, model.NotifyCancelled, nil)
	return Outcome{State: model.StateCancelledByUser, Classification: model.ClassificationCancelled}
}

// reconcile runs the activation sequence for the attempt held by the guard.
func (e *ReconciliationEngine) reconcile(ctx context.Context) Outcome {
	cred, ok := e.deps.Sessions.Credential(ctx, e.userID)
	if !ok || strings.TrimSpace(cred) == "" {
		return e.enterNeedsReauth(ctx)
	}

	start := time.Now()
	st, err := e.deps.Activator.Activate(ctx, e.userID, cred)
	switch {
	case err == nil:
		metrics.ObserveActivation("ok", time.Since(start))
		e.log.Info().Time("verified_at", st.LastVerifiedAt).Msg("premium activated")
		return e.finish(ctx, model.StateActivated, nil)
	case errors.Is(err, domain.ErrUnauthenticated):
		metrics.ObserveActivation("needs_reauth", time.Since(start))
		return e.enterNeedsReauth(ctx)
	default:
		metrics.ObserveActivation("fail", time.Since(start))
		e.log.Error().Err(err).Msg("premium activation failed after payment")
		return e.finish(ctx, model.StateActivationFailed, err)
	}
}

func (e *ReconciliationEngine) enterNeedsReauth(ctx context.Context) Outcome {
	e.mu.Lock()
	snap := e.setStateLocked(model.StateNeedsReauth)
	e.mu.Unlock()
	e.persist(ctx, snap)

	if e.deps.Prompter != nil {
		if err := e.deps.Prompter.PromptLogin(ctx, e.userID); err != nil {
			e.log.Warn().Err(err).Msg("failed to prompt login")
		}
	}
	return Outcome{State: model.StateNeedsReauth}
}

// finish performs a terminal transition out of Reconciling and releases the guard.
func (e *ReconciliationEngine) finish(ctx context.Context, to model.EngineState, cause error) Outcome {
	now := e.now()

	e.mu.Lock()
	a := e.attempt
	if cause == nil {
		a.Succeed(now)
	} else {
		a.Fail(now, cause.Error())
	}
	e.lastErr = cause
	e.consumeLocked(e.pendingRefs...)
	e.pendingRefs = nil
	e.attempt = nil
	e.inProgress.Store(false)
	snap := e.setStateLocked(to)
	e.mu.Unlock()
	e.persist(ctx, snap)
	e.closeAttempt(ctx, a)

	if cause == nil {
		e.notify(ctx, model.NotifyActivated, nil)
	} else {
		e.notify(ctx, model.NotifyActivationFailed, cause)
	}
	return Outcome{State: to, Err: cause}
}

func (e *ReconciliationEngine) drop(cls model.Classification, reason string) Outcome {
	metrics.IncReturnEventDropped(reason)
	st := e.State()
	e.log.Debug().Str("classification", string(cls)).Str("reason", reason).Str("state", string(st)).Msg("return event dropped")
	return Outcome{State: st, Classification: cls, Dropped: true, Reason: reason}
}

// restore loads a persisted snapshot. An attempt that was in flight when the process
// stopped is parked in NeedsReauth under a fresh attempt.
func (e *ReconciliationEngine) restore(ctx context.Context, snap *model.EngineSnapshot) {
	e.mu.Lock()
	e.session = snap.Session
	e.consumed = append([]string(nil), snap.ConsumedRefs...)
	e.updatedAt = snap.UpdatedAt
	e.version = snap.Version
	e.persisted = snap.Version
	if snap.LastError != "" {
		e.lastErr = errors.New(snap.LastError)
	}

	var resumed *model.ActivationAttempt
	switch {
	case snap.State.HoldsAttempt():
		var sid *string
		if e.session != nil {
			id := e.session.SessionID
			sid = &id
		}
		a, err := model.NewActivationAttempt(e.newID(), e.userID, sid, e.now())
		if err == nil {
			resumed = a
		}
		e.attempt = a
		e.pendingRefs = append([]string(nil), snap.PendingRefs...)
		e.inProgress.Store(true)
		e.state = model.StateNeedsReauth
	case snap.State == model.StateLinkRequested && snap.Session == nil:
		e.state = model.StateIdle
	default:
		e.state = snap.State
	}
	st := e.state
	e.mu.Unlock()

	if resumed != nil {
		e.openAttempt(ctx, resumed, detailInterrupted)
		e.log.Warn().Str("previous_state", string(snap.State)).Msg("restored an interrupted activation; waiting for login")
	}
	e.log.Debug().Str("state", string(st)).Msg("engine restored")
}

func (e *ReconciliationEngine) setStateLocked(to model.EngineState) model.EngineSnapshot {
	from := e.state
	if from != to {
		e.state = to
		metrics.IncTransition(string(from), string(to))
		e.log.Info().Str("from", string(from)).Str("to", string(to)).Msg("transition")
	}
	e.bumpLocked()
	return e.snapshotLocked()
}

func (e *ReconciliationEngine) bumpLocked() {
	e.version++
	e.updatedAt = e.now()
}

func (e *ReconciliationEngine) snapshotLocked() model.EngineSnapshot {
	s := model.EngineSnapshot{
		UserID:       e.userID,
		State:        e.state,
		Session:      e.session,
		ConsumedRefs: append([]string(nil), e.consumed...),
		PendingRefs:  append([]string(nil), e.pendingRefs...),
		InProgress:   e.inProgress.Load(),
		UpdatedAt:    e.updatedAt,
		Version:      e.version,
	}
	if e.attempt != nil {
		s.AttemptID = e.attempt.ID
	}
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	return s
}

// persist saves snap unless a newer version was already written.
func (e *ReconciliationEngine) persist(ctx context.Context, snap model.EngineSnapshot) {
	if e.deps.Snapshots == nil {
		return
	}
	e.persistMu.Lock()
	defer e.persistMu.Unlock()
	if snap.Version < e.persisted {
		return
	}
	if err := e.deps.Snapshots.SaveSnapshot(ctx, &snap); err != nil {
		e.log.Error().Err(err).Str("state", string(snap.State)).Msg("failed to persist engine snapshot")
		return
	}
	e.persisted = snap.Version
}

func (e *ReconciliationEngine) consumedLocked(refs []string) bool {
	for _, r := range refs {
		for _, c := range e.consumed {
			if r == c {
				return true
			}
		}
	}
	return false
}

func (e *ReconciliationEngine) consumeLocked(refs ...string) {
	for _, r := range refs {
		if r == "" || e.consumedLocked([]string{r}) {
			continue
		}
		e.consumed = append(e.consumed, r)
	}
	if n := len(e.consumed); n > maxConsumedRefs {
		e.consumed = append([]string(nil), e.consumed[n-maxConsumedRefs:]...)
	}
}

func matchesAny(s *model.PaymentSession, refs []string) bool {
	for _, r := range refs {
		if s.Matches(r) {
			return true
		}
	}
	return false
}

// openAttempt records a.Pending in the ledger, closing leftovers of the same account in one transaction.
func (e *ReconciliationEngine) openAttempt(ctx context.Context, a *model.ActivationAttempt, supersede string) {
	if e.deps.Attempts == nil || a == nil {
		return
	}
	run := func(ctx context.Context, tx repository.Tx) error {
		n, err := e.deps.Attempts.FailPendingByUser(ctx, tx, e.userID, supersede, e.now())
		if err != nil {
			return err
		}
		if n > 0 {
			e.log.Warn().Int("closed", n).Str("detail", supersede).Msg("closed stale pending attempts")
		}
		return e.deps.Attempts.Save(ctx, tx, a)
	}
	var err error
	if e.deps.TxManager != nil {
		err = e.deps.TxManager.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, run)
	} else {
		err = run(ctx, repository.NoTX)
	}
	if err != nil {
		e.log.Error().Err(err).Str("attempt_id", a.ID).Msg("failed to record activation attempt")
	}
}

func (e *ReconciliationEngine) closeAttempt(ctx context.Context, a *model.ActivationAttempt) {
	if e.deps.Attempts == nil || a == nil {
		return
	}
	if err := e.deps.Attempts.Finish(ctx, repository.NoTX, a); err != nil {
		e.log.Error().Err(err).Str("attempt_id", a.ID).Str("outcome", string(a.Outcome)).Msg("failed to close activation attempt")
	}
}

func (e *ReconciliationEngine) acquireLease(ctx context.Context) (string, error) {
	if e.deps.Locker == nil {
		return "", nil
	}
	token, err := e.deps.Locker.TryLock(ctx, ActivationLockKey(e.userID), activationLockTTL)
	if err != nil && !errors.Is(err, domain.ErrLockHeld) {
		// the local guard still serializes this process
		e.log.Warn().Err(err).Msg("activation lease unavailable")
		return "", nil
	}
	return token, err
}

func (e *ReconciliationEngine) releaseLease(ctx context.Context, token string) {
	if e.deps.Locker == nil || token == "" {
		return
	}
	if err := e.deps.Locker.Unlock(ctx, ActivationLockKey(e.userID), token); err != nil {
		e.log.Warn().Err(err).Msg("failed to release activation lease")
	}
}

// ActivationLockKey is the lease key shared by every instance for one account.
func ActivationLockKey(userID string) string { return "premium:activation_lock:" + userID }

func (e *ReconciliationEngine) notify(ctx context.Context, kind model.NotificationKind, cause error) {
	if e.deps.Notifier == nil {
		return
	}
	n := model.Notification{UserID: e.userID, Kind: kind, Err: cause, Message: e.message(kind, cause)}
	if err := e.deps.Notifier.Notify(ctx, n); err != nil {
		e.log.Error().Err(err).Str("kind", string(kind)).Msg("failed to deliver notification")
	}
}

func (e *ReconciliationEngine) message(kind model.NotificationKind, cause error) string {
	if e.deps.Messages == nil {
		return string(kind)
	}
	switch kind {
	case model.NotifyActivated:
		return e.deps.Messages.T(i18n.KeyActivated)
	case model.NotifyActivationFailed:
		return e.deps.Messages.T(i18n.KeyActivationFailed, FailureReason(cause))
	case model.NotifyCancelled:
		return e.deps.Messages.T(i18n.KeyCancelled)
	}
	return string(kind)
}

// FailureReason is the short, user-facing cause of a failed activation.
func FailureReason(err error) string {
	var re *domain.RejectionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrVerificationMismatch):
		return "verification mismatch"
	case errors.As(err, &re):
		if re.Reason != "" {
			return "rejected: " + re.Reason
		}
		return "rejected by account service"
	default:
		return "network error"
	}
}
