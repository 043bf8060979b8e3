package adapter

import (
	"context"

	"premium-activation/internal/domain/model"
)

// SessionStore holds the access credential of each signed-in account.
// The premium flow only reads it; login and logout happen elsewhere.
type SessionStore interface {
	Credential(ctx context.Context, userID string) (string, bool)
}

// Notifier delivers user-visible messages produced by terminal transitions.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// LoginPrompter surfaces a login prompt when an activation is owed but no credential is present.
type LoginPrompter interface {
	PromptLogin(ctx context.Context, userID string) error
}
