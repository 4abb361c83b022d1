// Package billing turns payment-completion webhooks into finalized orders and
// invoices, exactly once per payment session.
package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvoiceNotFound is returned when no invoice exists for a lookup key.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrDuplicateInvoice is returned when an invoice for the same payment
	// session or order already exists. Callers treat it as a duplicate
	// webhook delivery, not a failure.
	ErrDuplicateInvoice = errors.New("invoice already exists")
)

// Buyer is the contact snapshot denormalized onto the invoice so the record
// stays valid when catalog data changes later.
type Buyer struct {
	Name       string
	Email      string
	Phone      string
	Address    string
	PostalCode string
}

// Line is one purchased line frozen onto the invoice.
type Line struct {
	Description string          `json:"description"`
	Kind        string          `json:"kind"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// Invoice is the immutable billing record of a finalized order.
type Invoice struct {
	ID               string
	CartID           string
	PaymentSessionID string
	Year             int
	Number           int
	Net              decimal.Decimal
	Tax              decimal.Decimal
	Gross            decimal.Decimal
	Buyer            Buyer
	Lines            []Line
	HostedURL        string
	IssuedAt         time.Time
}

// Reference is the human-readable invoice number, sequential within its
// calendar year.
func (i *Invoice) Reference() string {
	return fmt.Sprintf("%d-%06d", i.Year, i.Number)
}

// Repository persists invoices and allocates their year-scoped numbers.
type Repository interface {
	// NextNumber atomically allocates the next sequential invoice number for
	// the given calendar year. Implementations must not count rows.
	NextNumber(ctx context.Context, year int) (int, error)
	// Create inserts the invoice. Unique constraints on the payment session
	// and order surface as ErrDuplicateInvoice.
	Create(ctx context.Context, inv *Invoice) error
	ByCartID(ctx context.Context, cartID string) (*Invoice, error)
	// UninvoicedCartIDs lists finalized orders that still lack an invoice,
	// the recoverable state a replay job picks up.
	UninvoicedCartIDs(ctx context.Context) ([]string, error)
}

// SplitGross derives net and tax from a tax-inclusive gross amount at the
// given VAT percentage.
func SplitGross(gross, vatPercent decimal.Decimal) (net, tax decimal.Decimal) {
	divisor := decimal.NewFromInt(1).Add(vatPercent.Div(decimal.NewFromInt(100)))
	net = gross.Div(divisor).Round(2)
	tax = gross.Sub(net).Round(2)
	return net, tax
}
