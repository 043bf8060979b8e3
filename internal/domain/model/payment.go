package model

import "time"

// PaymentSession is a hosted checkout session created when a purchase is initiated.
// It is never mutated after creation.
type PaymentSession struct {
	SessionID        string    `json:"sessionId"`
	OrderCode        string    `json:"orderCode,omitempty"` // provider order reference, when the backend returns one
	Plan             PlanTier  `json:"plan"`
	AmountMinorUnits int64     `json:"amountMinorUnits"`
	Currency         string    `json:"currency"`
	CreatedAt        time.Time `json:"createdAt"`
	CheckoutURL      string    `json:"checkoutUrl"`
	ReturnURL        string    `json:"returnUrl"`
	CancelURL        string    `json:"cancelUrl"`
}

// Matches reports whether an order reference from a return notification belongs to this session.
// An empty reference matches nothing.
func (s *PaymentSession) Matches(ref string) bool {
	if s == nil || ref == "" {
		return false
	}
	return ref == s.OrderCode || ref == s.SessionID
}

// Refs returns the references a return notification may carry for this session.
func (s *PaymentSession) Refs() []string {
	if s == nil {
		return nil
	}
	out := []string{s.SessionID}
	if s.OrderCode != "" {
		out = append(out, s.OrderCode)
	}
	return out
}

// Dismissal is returned when the external checkout surface closes.
// It deliberately carries no payment outcome.
type Dismissal struct {
	At time.Time
}
