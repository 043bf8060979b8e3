package model

import "time"

// EngineState is a state of the per-account reconciliation state machine.
type EngineState string

const (
	StateIdle             EngineState = "idle"
	StateLinkRequested    EngineState = "link_requested"
	StateAwaitingReturn   EngineState = "awaiting_return"
	StateReconciling      EngineState = "reconciling"
	StateNeedsReauth      EngineState = "needs_reauth"
	StateActivated        EngineState = "activated"
	StateActivationFailed EngineState = "activation_failed"
	StateCancelledByUser  EngineState = "cancelled_by_user"
)

func (s EngineState) IsTerminal() bool {
	switch s {
	case StateActivated, StateActivationFailed, StateCancelledByUser:
		return true
	}
	return false
}

// HoldsAttempt reports whether an activation attempt is pending in this state.
func (s EngineState) HoldsAttempt() bool {
	return s == StateReconciling || s == StateNeedsReauth
}

// EngineSnapshot is the durable and observable copy of an engine.
type EngineSnapshot struct {
	UserID       string          `json:"userId"`
	State        EngineState     `json:"state"`
	Session      *PaymentSession `json:"session,omitempty"`
	AttemptID    string          `json:"attemptId,omitempty"`
	ConsumedRefs []string        `json:"consumedRefs,omitempty"`
	PendingRefs  []string        `json:"pendingRefs,omitempty"` // refs of the return being reconciled
	LastError    string          `json:"lastError,omitempty"`
	InProgress   bool            `json:"inProgress"`
	UpdatedAt    time.Time       `json:"updatedAt"`
	Version      uint64          `json:"version"`
}

type NotificationKind string

const (
	NotifyActivated        NotificationKind = "activated"
	NotifyActivationFailed NotificationKind = "activation_failed"
	NotifyCancelled        NotificationKind = "cancelled"
	NotifyLoginRequired    NotificationKind = "login_required"
)

// Notification is a user-visible message produced by a transition.
type Notification struct {
	UserID  string
	Kind    NotificationKind
	Message string
	Err     error
}
