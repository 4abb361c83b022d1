package checkout

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/cart"
)

// Config holds the redirect targets handed to the gateway.
type Config struct {
	SuccessURL string
	CancelURL  string
}

// Service builds payment sessions out of active carts.
type Service struct {
	carts   cart.Repository
	gateway Gateway
	cfg     Config
}

// NewService creates a checkout Service.
func NewService(carts cart.Repository, gateway Gateway, cfg Config) *Service {
	return &Service{
		carts:   carts,
		gateway: gateway,
		cfg:     cfg,
	}
}

// CreateSession opens a payment session for the given cart. The session ID is
// persisted on the cart best-effort: a failed bookkeeping write is logged but
// never breaks the checkout.
func (s *Service) CreateSession(ctx context.Context, actor cart.Actor, cartID string) (*Session, error) {
	c, err := s.carts.ByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if actor.CustomerID != c.CustomerID && !actor.Admin {
		return nil, cart.ErrNotOwner
	}
	if !c.Active() {
		return nil, cart.ErrCartFinalized
	}

	items, err := s.carts.Items(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	lg := zctx.From(ctx)

	lines := make([]Line, 0, len(items))
	for _, li := range items {
		unit := li.ChargeableAmount()
		if li.Kind == cart.ItemAccessory {
			unit = li.UnitPrice
		}
		amount := MinorUnits(unit)
		if amount <= 0 {
			// The gateway rejects non-positive amounts; drop the line but
			// leave a trace for reconciliation of the books.
			lg.Warn("dropping non-chargeable line from payment session",
				zap.String("cart_id", c.ID),
				zap.String("line_item_id", li.ID),
				zap.String("amount", unit.String()),
			)
			continue
		}
		desc := li.Description
		if li.Kind == cart.ItemVehicle {
			desc += " (deposit)"
		}
		lines = append(lines, Line{
			Description: desc,
			UnitAmount:  amount,
			Quantity:    li.Quantity,
		})
	}
	if len(lines) == 0 {
		return nil, ErrNothingToCharge
	}

	sess, err := s.gateway.CreateSession(ctx, SessionRequest{
		CartID:     c.ID,
		Lines:      lines,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
	if err != nil {
		return nil, err
	}

	if err := s.carts.SetCheckoutSession(ctx, c.ID, sess.ID); err != nil {
		lg.Warn("persisting checkout session id failed",
			zap.String("cart_id", c.ID),
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}

	return sess, nil
}
