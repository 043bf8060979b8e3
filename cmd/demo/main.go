// Command demo walks the premium activation flow end to end against in-memory adapters.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"premium-activation/internal/config"
	"premium-activation/internal/domain/model"
	"premium-activation/internal/infra/adapters/account"
	"premium-activation/internal/infra/adapters/notify"
	"premium-activation/internal/infra/adapters/payment"
	"premium-activation/internal/infra/adapters/session"
	"premium-activation/internal/infra/i18n"
	"premium-activation/internal/infra/logging"
	"premium-activation/internal/infra/memstore"
	"premium-activation/internal/usecase"
)

type demo struct {
	registry *usecase.EngineRegistry
	listener *usecase.ReturnListener
	sessions *session.MemoryStore
	accounts *account.MemoryAccountService
	inbox    *notify.Inbox
	log      *zerolog.Logger
}

func main() {
	logger := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)
	d, err := newDemo(logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("demo setup")
	}
	ctx := context.Background()

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"happy path with duplicate returns", d.happyPath},
		{"credential lost before the return", d.reauth},
		{"checkout cancelled", d.cancelled},
	}
	for _, s := range steps {
		logger.Info().Str("scenario", s.name).Msg("---- running")
		if err := s.run(ctx); err != nil {
			logger.Error().Err(err).Str("scenario", s.name).Msg("scenario failed")
			os.Exit(1)
		}
	}
	logger.Info().Msg("all scenarios passed")
}

func newDemo(logger *zerolog.Logger) (*demo, error) {
	plans, err := model.NewPlanCatalog(config.DefaultPlans())
	if err != nil {
		return nil, err
	}
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		return nil, err
	}
	store := memstore.New()
	sessions := session.NewMemoryStore()
	accounts := account.NewMemoryAccountService()
	inbox := notify.NewInbox(10)
	out := notify.Multi{notify.NewLogNotifier(logger), inbox}

	checkout := usecase.NewCheckoutUseCase(payment.NewNoopPaymentGateway(), notify.NewLogOpener(logger), usecase.CheckoutOptions{
		PublicBaseURL:     "https://app.example.test",
		ReturnPath:        "/payment/return",
		CancelPath:        "/payment/cancel",
		DescriptionBudget: 25,
	}, logger)
	registry := usecase.NewEngineRegistry(usecase.EngineDeps{
		Plans:     plans,
		Checkout:  checkout,
		Activator: usecase.NewActivator(accounts, store, logger),
		Sessions:  sessions,
		Notifier:  out,
		Prompter:  notify.NewLoginPrompter(out, tr),
		Messages:  tr,
		Snapshots: store,
	}, logger)
	return &demo{
		registry: registry,
		listener: usecase.NewReturnListener(store, registry, logger),
		sessions: sessions,
		accounts: accounts,
		inbox:    inbox,
		log:      logger,
	}, nil
}

func (d *demo) startCheckout(ctx context.Context, userID string) (*model.PaymentSession, error) {
	if err := d.sessions.Login(userID, "token-"+userID); err != nil {
		return nil, err
	}
	e, err := d.registry.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	res, err := e.Initiate(ctx, "premium-1m")
	if err != nil {
		return nil, err
	}
	if _, err := e.OpenCheckout(ctx); err != nil {
		return nil, err
	}
	return res.Session, nil
}

func expect(got, want model.EngineState) error {
	if got != want {
		return fmt.Errorf("state %s, want %s", got, want)
	}
	return nil
}

func (d *demo) happyPath(ctx context.Context) error {
	const userID = "demo-user-1"
	s, err := d.startCheckout(ctx, userID)
	if err != nil {
		return err
	}
	params := map[string]string{"status": "PAID", "code": "00", "orderCode": s.OrderCode, "sid": s.SessionID}

	// the same return arrives from several surfaces at once
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.listener.Deliver(ctx, userID, params)
		}()
	}
	wg.Wait()

	e, _ := d.registry.Get(ctx, userID)
	if err := expect(e.State(), model.StateActivated); err != nil {
		return err
	}
	d.log.Info().Int("account_writes", d.accounts.Writes()).Int("notifications", len(d.inbox.Recent(userID))).Msg("activated")
	return nil
}

func (d *demo) reauth(ctx context.Context) error {
	const userID = "demo-user-2"
	s, err := d.startCheckout(ctx, userID)
	if err != nil {
		return err
	}
	d.sessions.Logout(userID)

	out, err := d.listener.Deliver(ctx, userID, map[string]string{"status": "PAID", "sid": s.SessionID})
	if err != nil {
		return err
	}
	if err := expect(out.State, model.StateNeedsReauth); err != nil {
		return err
	}

	if err := d.sessions.Login(userID, "token-"+userID); err != nil {
		return err
	}
	e, _ := d.registry.Get(ctx, userID)
	out, err = e.ResumeAfterLogin(ctx)
	if err != nil {
		return err
	}
	return expect(out.State, model.StateActivated)
}

func (d *demo) cancelled(ctx context.Context) error {
	const userID = "demo-user-3"
	s, err := d.startCheckout(ctx, userID)
	if err != nil {
		return err
	}
	out, err := d.listener.Deliver(ctx, userID, map[string]string{"status": "CANCELLED", "cancel": "true", "sid": s.SessionID})
	if err != nil {
		return err
	}
	return expect(out.State, model.StateCancelledByUser)
}
