package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"premium-activation/internal/domain/model"
	"premium-activation/internal/domain/ports/adapter"
)

var (
	_ adapter.Notifier = (*LogNotifier)(nil)
	_ adapter.Notifier = (*Inbox)(nil)
	_ adapter.Notifier = Multi(nil)
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	log *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	l := logger.With().Str("component", "notifier").Logger()
	return &LogNotifier{log: &l}
}

func (n *LogNotifier) Notify(ctx context.Context, msg model.Notification) error {
	ev := n.log.Info()
	if msg.Kind == model.NotifyActivationFailed {
		ev = n.log.Warn().Err(msg.Err)
	}
	ev.Str("user_id", msg.UserID).Str("kind", string(msg.Kind)).Msg(msg.Message)
	return nil
}

// Delivered is a notification as kept by the inbox.
type Delivered struct {
	Kind    model.NotificationKind `json:"kind"`
	Message string                 `json:"message"`
	At      time.Time              `json:"at"`
}

// Inbox keeps the latest notifications per account for the UI to pull.
type Inbox struct {
	limit int

	mu    sync.Mutex
	items map[string][]Delivered
}

func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = 10
	}
	return &Inbox{limit: limit, items: make(map[string][]Delivered)}
}

func (b *Inbox) Notify(ctx context.Context, msg model.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := append(b.items[msg.UserID], Delivered{Kind: msg.Kind, Message: msg.Message, At: time.Now()})
	if len(list) > b.limit {
		list = list[len(list)-b.limit:]
	}
	b.items[msg.UserID] = list
	return nil
}

// Recent returns the kept notifications of userID, oldest first.
func (b *Inbox) Recent(userID string) []Delivered {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Delivered, len(b.items[userID]))
	copy(out, b.items[userID])
	return out
}

// Multi fans a notification out to every notifier and joins their errors.
type Multi []adapter.Notifier

func (m Multi) Notify(ctx context.Context, msg model.Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
