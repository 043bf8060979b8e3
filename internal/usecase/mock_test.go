//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"premium-activation/internal/domain"
	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/adapter"
	"premium-activation/internal/domain/ports/repository"
	"premium-activation/internal/infra/i18n"
	"premium-activation/internal/usecase"
)

// =============================
// Adapters
// =============================

// ---- Mock PaymentLinkGateway ----

type MockGateway struct {
	mu       sync.Mutex
	Requests []adapter.PaymentLinkRequest

	CreatePaymentLinkFunc func(ctx context.Context, credential string, req adapter.PaymentLinkRequest) (adapter.PaymentLink, error)
}

var _ adapter.PaymentLinkGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "mock" }

func (m *MockGateway) CreatePaymentLink(ctx context.Context, credential string, req adapter.PaymentLinkRequest) (adapter.PaymentLink, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	n := len(m.Requests)
	m.mu.Unlock()
	if m.CreatePaymentLinkFunc != nil {
		return m.CreatePaymentLinkFunc(ctx, credential, req)
	}
	return adapter.PaymentLink{
		CheckoutURL: "https://pay.example.test/web/" + uuid.NewString(),
		OrderCode:   fmt.Sprintf("order-%d", n),
	}, nil
}

func (m *MockGateway) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// ---- Mock CheckoutOpener ----

type MockOpener struct {
	OpenFunc func(ctx context.Context, url string) (model.Dismissal, error)
}

func (m *MockOpener) Open(ctx context.Context, url string) (model.Dismissal, error) {
	if m.OpenFunc != nil {
		return m.OpenFunc(ctx, url)
	}
	return model.Dismissal{At: time.Now()}, nil
}

// ---- Mock AccountService (in-memory premium flags) ----

type MockAccountService struct {
	mu       sync.Mutex
	premium  map[string]bool
	SetCalls int
	GetCalls int

	SetPremiumFunc func(ctx context.Context, credential, userID string, premium bool) error
	GetAccountFunc func(ctx context.Context, credential, userID string) (*adapter.Account, error)
}

var _ adapter.AccountService = (*MockAccountService)(nil)

func NewMockAccountService() *MockAccountService {
	return &MockAccountService{premium: map[string]bool{}}
}

func (m *MockAccountService) SetPremium(ctx context.Context, credential, userID string, premium bool) error {
	m.mu.Lock()
	m.SetCalls++
	m.mu.Unlock()
	if m.SetPremiumFunc != nil {
		if err := m.SetPremiumFunc(ctx, credential, userID, premium); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.premium[userID] = premium
	m.mu.Unlock()
	return nil
}

func (m *MockAccountService) GetAccount(ctx context.Context, credential, userID string) (*adapter.Account, error) {
	m.mu.Lock()
	m.GetCalls++
	m.mu.Unlock()
	if m.GetAccountFunc != nil {
		return m.GetAccountFunc(ctx, credential, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &adapter.Account{UserID: userID, IsPremium: m.premium[userID]}, nil
}

func (m *MockAccountService) Counts() (set, get int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SetCalls, m.GetCalls
}

// ---- Mock SessionStore ----

type MockSessionStore struct {
	mu    sync.Mutex
	creds map[string]string
}

var _ adapter.SessionStore = (*MockSessionStore)(nil)

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{creds: map[string]string{}}
}

func (m *MockSessionStore) Login(userID, cred string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[userID] = cred
}

func (m *MockSessionStore) Logout(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, userID)
}

func (m *MockSessionStore) Credential(ctx context.Context, userID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[userID]
	return c, ok
}

// ---- Mock Notifier / LoginPrompter ----

type MockNotifier struct {
	mu   sync.Mutex
	Sent []model.Notification
}

func (m *MockNotifier) Notify(ctx context.Context, n model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
	return nil
}

func (m *MockNotifier) Kinds() []model.NotificationKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.NotificationKind, len(m.Sent))
	for i, n := range m.Sent {
		out[i] = n.Kind
	}
	return out
}

type MockPrompter struct {
	mu      sync.Mutex
	Prompts int
}

func (m *MockPrompter) PromptLogin(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prompts++
	return nil
}

func (m *MockPrompter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Prompts
}

// ---- Mock Locker ----

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func NewMockLocker() *MockLocker { return &MockLocker{held: map[string]string{}} }

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLockHeld
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return errors.New("unlock token mismatch")
	}
	delete(l.held, key)
	return nil
}

// =============================
// Repositories
// =============================

// ---- Mock EngineSnapshotRepository ----

type MockSnapshotRepo struct {
	mu    sync.Mutex
	snaps map[string]model.EngineSnapshot

	GetSnapshotFunc func(ctx context.Context, userID string) (*model.EngineSnapshot, error)
}

var _ repository.EngineSnapshotRepository = (*MockSnapshotRepo)(nil)

func NewMockSnapshotRepo() *MockSnapshotRepo {
	return &MockSnapshotRepo{snaps: map[string]model.EngineSnapshot{}}
}

func (m *MockSnapshotRepo) SaveSnapshot(ctx context.Context, snap *model.EngineSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snap.UserID] = *snap
	return nil
}

func (m *MockSnapshotRepo) GetSnapshot(ctx context.Context, userID string) (*model.EngineSnapshot, error) {
	if m.GetSnapshotFunc != nil {
		return m.GetSnapshotFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (m *MockSnapshotRepo) DeleteSnapshot(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, userID)
	return nil
}

// ---- Mock ReturnParamsRepository ----

type MockParamsRepo struct {
	mu     sync.Mutex
	params map[string]map[string]string

	PutParamsFunc   func(ctx context.Context, userID string, params map[string]string) error
	ClearParamsFunc func(ctx context.Context, userID string) error
}

var _ repository.ReturnParamsRepository = (*MockParamsRepo)(nil)

func NewMockParamsRepo() *MockParamsRepo {
	return &MockParamsRepo{params: map[string]map[string]string{}}
}

func (m *MockParamsRepo) PutParams(ctx context.Context, userID string, params map[string]string) error {
	if m.PutParamsFunc != nil {
		return m.PutParamsFunc(ctx, userID, params)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]string, len(params))
	for k, v := range params {
		cp[k] = v
	}
	m.params[userID] = cp
	return nil
}

func (m *MockParamsRepo) GetParams(ctx context.Context, userID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for k, v := range m.params[userID] {
		out[k] = v
	}
	return out, nil
}

func (m *MockParamsRepo) ClearParams(ctx context.Context, userID string) error {
	if m.ClearParamsFunc != nil {
		return m.ClearParamsFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.params, userID)
	return nil
}

// ---- Mock PremiumCacheRepository ----

type MockPremiumCache struct {
	mu     sync.Mutex
	states map[string]model.AccountPremiumState

	SavePremiumFunc func(ctx context.Context, st *model.AccountPremiumState) error
}

func NewMockPremiumCache() *MockPremiumCache {
	return &MockPremiumCache{states: map[string]model.AccountPremiumState{}}
}

func (m *MockPremiumCache) SavePremium(ctx context.Context, st *model.AccountPremiumState) error {
	if m.SavePremiumFunc != nil {
		return m.SavePremiumFunc(ctx, st)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.UserID] = *st
	return nil
}

func (m *MockPremiumCache) GetPremium(ctx context.Context, userID string) (*model.AccountPremiumState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &st, nil
}

// ---- Mock ActivationAttemptRepository ----

type MockAttemptRepo struct {
	mu       sync.Mutex
	attempts map[string]model.ActivationAttempt

	FailPendingOlderThanFunc func(ctx context.Context, tx repository.Tx, cutoff time.Time, detail string, now time.Time) (int, error)
}

var _ repository.ActivationAttemptRepository = (*MockAttemptRepo)(nil)

func NewMockAttemptRepo() *MockAttemptRepo {
	return &MockAttemptRepo{attempts: map[string]model.ActivationAttempt{}}
}

func (m *MockAttemptRepo) Save(ctx context.Context, tx repository.Tx, a *model.ActivationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[a.ID] = *a
	return nil
}

func (m *MockAttemptRepo) Finish(ctx context.Context, tx repository.Tx, a *model.ActivationAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.attempts[a.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if cur.Outcome != model.AttemptPending {
		return nil
	}
	m.attempts[a.ID] = *a
	return nil
}

func (m *MockAttemptRepo) FindPendingByUser(ctx context.Context, tx repository.Tx, userID string) (*model.ActivationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.UserID == userID && a.Outcome == model.AttemptPending {
			cp := a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockAttemptRepo) FailPendingByUser(ctx context.Context, tx repository.Tx, userID, detail string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, a := range m.attempts {
		if a.UserID == userID && a.Outcome == model.AttemptPending {
			a.Fail(now, detail)
			m.attempts[id] = a
			n++
		}
	}
	return n, nil
}

func (m *MockAttemptRepo) FailPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, detail string, now time.Time) (int, error) {
	if m.FailPendingOlderThanFunc != nil {
		return m.FailPendingOlderThanFunc(ctx, tx, cutoff, detail, now)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, a := range m.attempts {
		if a.Outcome == model.AttemptPending && a.StartedAt.Before(cutoff) {
			a.Fail(now, detail)
			m.attempts[id] = a
			n++
		}
	}
	return n, nil
}

func (m *MockAttemptRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.ActivationAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.ActivationAttempt
	for _, a := range m.attempts {
		if a.UserID == userID {
			cp := a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Pending returns the pending attempts of userID.
func (m *MockAttemptRepo) Pending(userID string) []model.ActivationAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ActivationAttempt
	for _, a := range m.attempts {
		if a.UserID == userID && a.Outcome == model.AttemptPending {
			out = append(out, a)
		}
	}
	return out
}

func (m *MockAttemptRepo) All(userID string) []model.ActivationAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ActivationAttempt
	for _, a := range m.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	mu    sync.Mutex
	Calls int

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Helpers
// =============================

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

func newTestTranslator() *i18n.Translator {
	testFS := fstest.MapFS{
		"locales/en.yaml": {Data: []byte(`
premium.activated: "Premium is active."
premium.activation_failed: "Activation failed (%s). Contact support; do not pay again."
premium.cancelled: "Checkout was cancelled."
premium.login_required: "Please sign in again."
`)},
	}
	tr, err := i18n.NewTranslator(testFS, "en")
	if err != nil {
		panic(err)
	}
	return tr
}

func testPlans() *model.PlanCatalog {
	c, err := model.NewPlanCatalog([]model.PlanTier{
		{ID: "premium-1m", Name: "Premium 1 month", DurationMonths: 1, AmountMinor: 49000, Currency: "VND"},
		{ID: "premium-12m", Name: "Premium 12 months", DurationMonths: 12, AmountMinor: 429000, Currency: "VND"},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// engineTestDeps bundles every mock an engine touches.
type engineTestDeps struct {
	gateway   *MockGateway
	opener    *MockOpener
	accounts  *MockAccountService
	sessions  *MockSessionStore
	notifier  *MockNotifier
	prompter  *MockPrompter
	snapshots *MockSnapshotRepo
	params    *MockParamsRepo
	cache     *MockPremiumCache
	attempts  *MockAttemptRepo
	tm        *MockTxManager
	locker    *MockLocker
}

func newEngineTestDeps() *engineTestDeps {
	return &engineTestDeps{
		gateway:   &MockGateway{},
		opener:    &MockOpener{},
		accounts:  NewMockAccountService(),
		sessions:  NewMockSessionStore(),
		notifier:  &MockNotifier{},
		prompter:  &MockPrompter{},
		snapshots: NewMockSnapshotRepo(),
		params:    NewMockParamsRepo(),
		cache:     NewMockPremiumCache(),
		attempts:  NewMockAttemptRepo(),
		tm:        &MockTxManager{},
		locker:    NewMockLocker(),
	}
}

func (d *engineTestDeps) engineDeps() usecase.EngineDeps {
	logger := newTestLogger()
	checkout := usecase.NewCheckoutUseCase(d.gateway, d.opener, usecase.CheckoutOptions{
		PublicBaseURL:     "https://app.example.test",
		ReturnPath:        "/payment/return",
		CancelPath:        "/payment/cancel",
		DescriptionBudget: 25,
	}, logger)
	return usecase.EngineDeps{
		Plans:     testPlans(),
		Checkout:  checkout,
		Activator: usecase.NewActivator(d.accounts, d.cache, logger),
		Sessions:  d.sessions,
		Notifier:  d.notifier,
		Prompter:  d.prompter,
		Messages:  newTestTranslator(),
		Snapshots: d.snapshots,
		Attempts:  d.attempts,
		TxManager: d.tm,
		Locker:    d.locker,
	}
}

func (d *engineTestDeps) registry() *usecase.EngineRegistry {
	return usecase.NewEngineRegistry(d.engineDeps(), newTestLogger())
}

func successEvent(sid, orderCode string) model.ReturnEvent {
	return model.NewReturnEvent(map[string]string{
		model.ParamStatus:     "PAID",
		model.ParamCode:       "00",
		model.ParamOrderCode:  orderCode,
		model.ParamSessionRef: sid,
	}, time.Now())
}

func cancelledEvent(sid, orderCode string) model.ReturnEvent {
	return model.NewReturnEvent(map[string]string{
		model.ParamStatus:     "CANCELLED",
		model.ParamCancel:     "true",
		model.ParamOrderCode:  orderCode,
		model.ParamSessionRef: sid,
	}, time.Now())
}
