package billing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/cart"
	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/catalog"
)

// Reconciliation errors surfaced to the webhook handler.
var (
	ErrMissingCartReference    = errors.New("event metadata carries no cart id")
	ErrMissingSessionReference = errors.New("completion event carries no session id")
)

// Provisioner supplies a fresh active cart for a customer after their order
// finalizes. Satisfied by *cart.Service.
type Provisioner interface {
	ActiveCart(ctx context.Context, customerID string) (*cart.Cart, error)
}

// Reconciler applies payment-completion events to order state: conditional
// finalize, invoice generation, and provisioning of the next empty cart.
// Duplicate deliveries are a success path.
type Reconciler struct {
	carts      cart.Repository
	invoices   Repository
	catalog    catalog.Repository
	provision  Provisioner
	vatPercent decimal.Decimal
	now        func() time.Time
}

// NewReconciler creates a Reconciler. vatPercent is the tax rate used to
// split the gross order amount into net and tax on the invoice.
func NewReconciler(
	carts cart.Repository,
	invoices Repository,
	cat catalog.Repository,
	provision Provisioner,
	vatPercent decimal.Decimal,
) *Reconciler {
	return &Reconciler{
		carts:      carts,
		invoices:   invoices,
		catalog:    cat,
		provision:  provision,
		vatPercent: vatPercent,
		now:        time.Now,
	}
}

// HandleEvent processes one verified webhook event. It is idempotent: the
// same completion event applied twice finalizes the order exactly once and
// creates exactly one invoice.
func (r *Reconciler) HandleEvent(ctx context.Context, ev *Event) error {
	lg := zctx.From(ctx).With(
		zap.String("event_id", ev.ID),
		zap.String("cart_id", ev.CartID),
	)

	if ev.Type != EventPaymentCompleted {
		lg.Debug("ignoring webhook event", zap.String("type", ev.Type))
		return nil
	}
	if ev.CartID == "" {
		return ErrMissingCartReference
	}
	if ev.SessionID == "" {
		// The session id keys invoice uniqueness; an empty one would make
		// unrelated orders collide on the same invoice key.
		return ErrMissingSessionReference
	}

	c, err := r.carts.ByID(ctx, ev.CartID)
	if err != nil {
		return err
	}

	if !c.Active() {
		_, invErr := r.invoices.ByCartID(ctx, c.ID)
		switch {
		case invErr == nil:
			lg.Info("duplicate webhook delivery, order already reconciled")
			return nil
		case errors.Is(invErr, ErrInvoiceNotFound):
			// Finalized but uninvoiced: a previous reconciliation died between
			// finalize and invoice. Resume at invoice generation.
			lg.Warn("resuming reconciliation of finalized order without invoice")
			return r.invoiceAndProvision(ctx, c, ev)
		default:
			return errors.Wrap(invErr, "load invoice")
		}
	}

	items, err := r.carts.Items(ctx, c.ID)
	if err != nil {
		return errors.Wrap(err, "load line items")
	}

	// The payable total comes from the order's own line items, never from the
	// gateway-reported amount.
	total := decimal.Zero
	for _, li := range items {
		total = total.Add(li.Price)
	}

	won, err := r.carts.Finalize(ctx, c.ID, total, ev.ReceiptURL, r.now())
	if err != nil {
		return errors.Wrap(err, "finalize order")
	}
	if !won {
		// A concurrent delivery finalized first; it also owns invoicing.
		lg.Info("concurrent webhook delivery won finalization")
		return nil
	}

	c.Status = cart.StatusFinalized
	c.TotalPrice = total
	return r.invoiceAndProvision(ctx, c, ev)
}

func (r *Reconciler) invoiceAndProvision(ctx context.Context, c *cart.Cart, ev *Event) error {
	lg := zctx.From(ctx).With(
		zap.String("event_id", ev.ID),
		zap.String("cart_id", c.ID),
	)

	items, err := r.carts.Items(ctx, c.ID)
	if err != nil {
		return errors.Wrap(err, "load line items")
	}

	buyer, err := r.catalog.CustomerByID(ctx, c.CustomerID)
	if err != nil {
		return errors.Wrap(err, "load buyer")
	}

	now := r.now()
	number, err := r.invoices.NextNumber(ctx, now.Year())
	if err != nil {
		return errors.Wrap(err, "allocate invoice number")
	}

	gross := decimal.Zero
	lines := make([]Line, len(items))
	for i, li := range items {
		lines[i] = Line{
			Description: li.Description,
			Kind:        string(li.Kind),
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Amount:      li.Price,
		}
		gross = gross.Add(li.Price)
	}
	net, tax := SplitGross(gross, r.vatPercent)

	inv := &Invoice{
		ID:               uuid.New().String(),
		CartID:           c.ID,
		PaymentSessionID: ev.SessionID,
		Year:             now.Year(),
		Number:           number,
		Net:              net,
		Tax:              tax,
		Gross:            gross,
		Buyer: Buyer{
			Name:       buyer.Name,
			Email:      buyer.Email,
			Phone:      buyer.Phone,
			Address:    buyer.Address,
			PostalCode: buyer.PostalCode,
		},
		Lines:     lines,
		HostedURL: ev.ReceiptURL,
		IssuedAt:  now,
	}
	if err := r.invoices.Create(ctx, inv); err != nil {
		if errors.Is(err, ErrDuplicateInvoice) {
			lg.Info("duplicate webhook delivery, invoice already exists")
			return nil
		}
		return errors.Wrap(err, "create invoice")
	}

	lg.Info("order reconciled",
		zap.String("invoice", inv.Reference()),
		zap.String("gross", gross.String()),
	)

	// Give the customer somewhere to put their next purchase. Best-effort:
	// ActiveCart also runs on their next request.
	if _, err := r.provision.ActiveCart(ctx, c.CustomerID); err != nil {
		lg.Warn("provisioning next cart failed", zap.Error(err))
	}

	return nil
}
