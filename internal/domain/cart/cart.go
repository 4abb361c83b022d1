// Package cart holds the cart/order aggregate and the line item rules around
// it. A single aggregate is either the customer's active basket or, after
// payment reconciliation, an immutable finalized order.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the aggregate's lifecycle state.
type Status string

const (
	// StatusActive marks the customer's current basket; line items may be
	// added, changed and removed.
	StatusActive Status = "active"
	// StatusFinalized marks a paid order; it never changes again.
	StatusFinalized Status = "finalized"
)

// Sentinel errors shared by the repository and service layers.
var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrNoActiveCart     = errors.New("no active cart")
	ErrActiveCartExists = errors.New("active cart already exists")
	ErrItemNotFound     = errors.New("line item not found")
	ErrCartFinalized    = errors.New("order is finalized")
	ErrNotOwner         = errors.New("cart belongs to another customer")
	ErrUsedVehicle      = errors.New("used vehicles are reserved, not configured")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrVehicleQuantity  = errors.New("vehicle lines are limited to quantity 1")
)

// Cart is the dual-purpose aggregate: an active basket or a finalized order,
// depending on Status. Totals are stored and kept in sync with the line items
// inside every mutating transaction.
type Cart struct {
	ID                string
	CustomerID        string
	Status            Status
	TotalPrice        decimal.Decimal
	TotalDeposit      decimal.Decimal
	CheckoutSessionID string
	ReceiptURL        string
	CreatedAt         time.Time
	ValidatedAt       *time.Time
}

// Active reports whether the aggregate still accepts line mutations.
func (c *Cart) Active() bool {
	return c.Status == StatusActive
}

// ItemKind discriminates what a line item references.
type ItemKind string

const (
	ItemVehicle   ItemKind = "vehicle"
	ItemAccessory ItemKind = "accessory"
)

// LineItem is one priced entry in a cart: exactly one of ConfigurationID or
// AccessoryID is set, matching Kind. Deposit is zero for accessories and never
// exceeds Price.
type LineItem struct {
	ID              string
	CartID          string
	Kind            ItemKind
	ConfigurationID string
	AccessoryID     string
	Description     string
	Quantity        int
	UnitPrice       decimal.Decimal
	Price           decimal.Decimal
	Deposit         decimal.Decimal
}

// ChargeableAmount is what checkout collects now for this line: the deposit
// for vehicle configurations, the full price for accessories.
func (li *LineItem) ChargeableAmount() decimal.Decimal {
	if li.Kind == ItemVehicle {
		return li.Deposit
	}
	return li.Price
}

// Repository persists cart aggregates and their line items.
//
// Item mutations and the aggregate totals commit in one transaction: the
// implementation recomputes total_price/total_deposit from the remaining line
// items before the transaction ends.
type Repository interface {
	ByID(ctx context.Context, id string) (*Cart, error)
	ActiveByCustomer(ctx context.Context, customerID string) (*Cart, error)
	// CreateActive inserts a fresh active cart. When the customer already has
	// one (unique index on active carts per customer), it returns
	// ErrActiveCartExists and the caller re-reads the winner.
	CreateActive(ctx context.Context, c *Cart) error

	Items(ctx context.Context, cartID string) ([]LineItem, error)
	ItemByID(ctx context.Context, id string) (*LineItem, error)
	InsertItem(ctx context.Context, li *LineItem) error
	UpdateItem(ctx context.Context, li *LineItem) error
	DeleteItem(ctx context.Context, id string) error

	// SetCheckoutSession records the external payment session on the cart for
	// idempotence and audit.
	SetCheckoutSession(ctx context.Context, cartID, sessionID string) error

	// Finalize transitions Active -> Finalized, storing the payable total, an
	// optional receipt URL, and the validation timestamp. It is conditional on
	// the cart still being active and reports whether this call won the
	// transition.
	Finalize(ctx context.Context, cartID string, total decimal.Decimal, receiptURL string, at time.Time) (bool, error)
}
