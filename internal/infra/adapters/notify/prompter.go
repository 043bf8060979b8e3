package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/adapter"
	"premium-activation/internal/infra/i18n"
)

var (
	_ adapter.LoginPrompter  = (*LoginPrompter)(nil)
	_ adapter.CheckoutOpener = (*LogOpener)(nil)
)

type translator interface {
	T(key string, args ...interface{}) string
}

// LoginPrompter surfaces the login prompt as a login_required notification.
type LoginPrompter struct {
	out adapter.Notifier
	tr  translator
}

func NewLoginPrompter(out adapter.Notifier, tr translator) *LoginPrompter {
	return &LoginPrompter{out: out, tr: tr}
}

func (p *LoginPrompter) PromptLogin(ctx context.Context, userID string) error {
	msg := string(model.NotifyLoginRequired)
	if p.tr != nil {
		msg = p.tr.T(i18n.KeyLoginRequired)
	}
	return p.out.Notify(ctx, model.Notification{UserID: userID, Kind: model.NotifyLoginRequired, Message: msg})
}

// LogOpener stands in for the platform browser in headless deployments: the UI shell
// opens the URL itself, so the opener only logs it and reports an immediate dismissal.
type LogOpener struct {
	log *zerolog.Logger
}

func NewLogOpener(logger *zerolog.Logger) *LogOpener {
	l := logger.With().Str("component", "checkout_opener").Logger()
	return &LogOpener{log: &l}
}

func (o *LogOpener) Open(ctx context.Context, checkoutURL string) (model.Dismissal, error) {
	o.log.Info().Str("url", checkoutURL).Msg("checkout handed to the ui shell")
	return model.Dismissal{At: time.Now()}, nil
}
