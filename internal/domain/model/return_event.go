package model

import (
	"strings"
	"time"
)

// Classification is the result of interpreting a return notification.
type Classification string

const (
	ClassificationUnknown   Classification = "unknown"
	ClassificationSuccess   Classification = "success"
	ClassificationCancelled Classification = "cancelled"
)

// Return notification parameter names as attached by the hosted checkout.
const (
	ParamStatus         = "status"
	ParamOrderCode      = "orderCode"
	ParamOrderCodeSnake = "order_code"
	ParamCancel         = "cancel"
	ParamCode           = "code"
	ParamSessionRef     = "sid" // our own session id, embedded in the return URL
)

// ReturnParamNames lists every parameter the listener keeps from a return notification.
var ReturnParamNames = []string{ParamStatus, ParamOrderCode, ParamOrderCodeSnake, ParamCancel, ParamCode, ParamSessionRef}

const (
	statusPaid      = "PAID"
	statusCancelled = "CANCELLED"
	successCode     = "00"
)

// ReturnEvent is one delivery of return notification parameters. The same
// parameters may be delivered many times; consumers must be idempotent.
type ReturnEvent struct {
	RawStatus         string    `json:"status,omitempty"`
	RawStatusCode     string    `json:"code,omitempty"`
	RawOrderReference string    `json:"orderCode,omitempty"`
	SessionRef        string    `json:"sid,omitempty"`
	CancelFlag        bool      `json:"cancel"`
	ReceivedAt        time.Time `json:"receivedAt"`
}

// NewReturnEvent builds an event from named parameters. Missing or garbled
// parameters are kept empty; classification decides what they mean.
func NewReturnEvent(params map[string]string, at time.Time) ReturnEvent {
	ev := ReturnEvent{ReceivedAt: at}
	if len(params) == 0 {
		return ev
	}
	ev.RawStatus = strings.TrimSpace(params[ParamStatus])
	ev.RawStatusCode = strings.TrimSpace(params[ParamCode])
	ev.RawOrderReference = strings.TrimSpace(params[ParamOrderCode])
	if ev.RawOrderReference == "" {
		ev.RawOrderReference = strings.TrimSpace(params[ParamOrderCodeSnake])
	}
	ev.SessionRef = strings.TrimSpace(params[ParamSessionRef])
	ev.CancelFlag = strings.EqualFold(strings.TrimSpace(params[ParamCancel]), "true")
	return ev
}

// Refs returns the non-empty references identifying the session this event belongs to.
func (e ReturnEvent) Refs() []string {
	var out []string
	if e.SessionRef != "" {
		out = append(out, e.SessionRef)
	}
	if e.RawOrderReference != "" {
		out = append(out, e.RawOrderReference)
	}
	return out
}

// IsEmpty reports whether no payment-related parameter was attached.
func (e ReturnEvent) IsEmpty() bool {
	return e.RawStatus == "" && e.RawStatusCode == "" && e.RawOrderReference == "" && !e.CancelFlag
}

// Classify applies the precedence:
//  1. status PAID, or code "00" without the cancel flag -> Success
//  2. status CANCELLED, or the cancel flag -> Cancelled
//  3. anything else -> Unknown
func Classify(e ReturnEvent) Classification {
	status := strings.ToUpper(e.RawStatus)
	if status == statusPaid || (e.RawStatusCode == successCode && !e.CancelFlag) {
		return ClassificationSuccess
	}
	if status == statusCancelled || e.CancelFlag {
		return ClassificationCancelled
	}
	return ClassificationUnknown
}
