// Package checkout converts an active cart into a payment-gateway session.
// Vehicle lines charge the deposit now; accessory lines charge full price.
package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyCart is returned when a checkout is requested for a cart
	// without line items.
	ErrEmptyCart = errors.New("cart has no line items")
	// ErrNothingToCharge is returned when every line's chargeable amount is
	// non-positive, leaving nothing to send to the gateway.
	ErrNothingToCharge = errors.New("no chargeable line items")
)

// GatewayError wraps a payment-gateway failure. Retryable failures (timeouts,
// 5xx) may be retried by the customer; the cart is never mutated either way.
type GatewayError struct {
	Err       error
	Retryable bool
}

func (e *GatewayError) Error() string {
	return "payment gateway: " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Line is one priced entry of a gateway session request. UnitAmount is in
// minor currency units.
type Line struct {
	Description string
	UnitAmount  int64
	Quantity    int
}

// SessionRequest is the outbound request to open a payment session. CartID
// travels in the gateway's opaque metadata and comes back with the completion
// webhook for reconciliation.
type SessionRequest struct {
	CartID     string
	Lines      []Line
	SuccessURL string
	CancelURL  string
}

// Session is the gateway's handle for a created payment session.
type Session struct {
	ID          string
	RedirectURL string
}

// Gateway opens payment sessions with the external payment provider.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
}

// MinorUnits converts a decimal monetary amount to minor currency units,
// rounding to the nearest unit.
func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}
