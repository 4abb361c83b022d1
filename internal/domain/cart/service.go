package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/catalog"
	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/pricing"
)

// Actor identifies who performs a cart operation. Admins may act on carts they
// do not own.
type Actor struct {
	CustomerID string
	Admin      bool
}

func (a Actor) owns(c *Cart) bool {
	return a.Admin || a.CustomerID == c.CustomerID
}

// Service owns the line item rules: it validates catalog references, prices
// lines through the pricing engine, and keeps one active cart per customer.
type Service struct {
	carts   Repository
	catalog catalog.Repository
	engine  *pricing.Engine

	// group collapses concurrent first-purchase cart creation per customer in
	// this process; the database's partial unique index covers the rest.
	group singleflight.Group
}

// NewService creates a cart Service with the required dependencies.
func NewService(carts Repository, cat catalog.Repository, engine *pricing.Engine) *Service {
	return &Service{
		carts:   carts,
		catalog: cat,
		engine:  engine,
	}
}

// ActiveCart returns the customer's active cart, creating an empty one when
// none exists. Losing a creation race is not an error: the winner's cart is
// read back instead.
func (s *Service) ActiveCart(ctx context.Context, customerID string) (*Cart, error) {
	v, err, _ := s.group.Do(customerID, func() (interface{}, error) {
		return s.getOrCreateActive(ctx, customerID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Cart), nil
}

func (s *Service) getOrCreateActive(ctx context.Context, customerID string) (*Cart, error) {
	c, err := s.carts.ActiveByCustomer(ctx, customerID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNoActiveCart) {
		return nil, errors.Wrap(err, "load active cart")
	}

	fresh := &Cart{
		ID:           uuid.New().String(),
		CustomerID:   customerID,
		Status:       StatusActive,
		TotalPrice:   decimal.Zero,
		TotalDeposit: decimal.Zero,
	}
	err = s.carts.CreateActive(ctx, fresh)
	if err == nil {
		return fresh, nil
	}
	if errors.Is(err, ErrActiveCartExists) {
		// A concurrent request created it first.
		return s.carts.ActiveByCustomer(ctx, customerID)
	}
	return nil, errors.Wrap(err, "create active cart")
}

// View returns a cart with its line items, enforcing ownership.
func (s *Service) View(ctx context.Context, actor Actor, cartID string) (*Cart, []LineItem, error) {
	c, err := s.carts.ByID(ctx, cartID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.owns(c) {
		return nil, nil, ErrNotOwner
	}
	items, err := s.carts.Items(ctx, c.ID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load line items")
	}
	return c, items, nil
}

// AddConfiguration adds a new-vehicle configuration to the actor's active
// cart. A configuration already present stays at quantity 1: the line is
// returned unchanged instead of duplicated or incremented.
func (s *Service) AddConfiguration(ctx context.Context, actor Actor, configurationID string) (*LineItem, error) {
	cfg, err := s.catalog.ConfigurationByID(ctx, configurationID)
	if err != nil {
		return nil, err
	}
	if cfg.Vehicle.Condition != catalog.ConditionNew {
		return nil, ErrUsedVehicle
	}

	c, err := s.ActiveCart(ctx, actor.CustomerID)
	if err != nil {
		return nil, err
	}

	items, err := s.carts.Items(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load line items")
	}
	for i := range items {
		if items[i].Kind == ItemVehicle && items[i].ConfigurationID == configurationID {
			// Vehicle lines are capped at quantity 1.
			return &items[i], nil
		}
	}

	quote := s.engine.ConfigurationQuote(cfg)
	li := &LineItem{
		ID:              uuid.New().String(),
		CartID:          c.ID,
		Kind:            ItemVehicle,
		ConfigurationID: configurationID,
		Description:     cfg.Vehicle.Name,
		Quantity:        1,
		UnitPrice:       quote.Total,
		Price:           quote.Total,
		Deposit:         s.engine.Deposit(quote.Total, pricing.ProductVehicle),
	}
	if err := s.carts.InsertItem(ctx, li); err != nil {
		return nil, errors.Wrap(err, "insert line item")
	}
	return li, nil
}

// AddAccessory adds quantity units of an accessory to the actor's active
// cart, merging into an existing line for the same accessory.
func (s *Service) AddAccessory(ctx context.Context, actor Actor, accessoryID string, quantity int) (*LineItem, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	acc, err := s.catalog.AccessoryByID(ctx, accessoryID)
	if err != nil {
		return nil, err
	}

	c, err := s.ActiveCart(ctx, actor.CustomerID)
	if err != nil {
		return nil, err
	}

	items, err := s.carts.Items(ctx, c.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load line items")
	}
	for i := range items {
		if items[i].Kind == ItemAccessory && items[i].AccessoryID == accessoryID {
			li := items[i]
			li.Quantity += quantity
			li.Price = li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))).Round(2)
			if err := s.carts.UpdateItem(ctx, &li); err != nil {
				return nil, errors.Wrap(err, "merge line item")
			}
			return &li, nil
		}
	}

	li := &LineItem{
		ID:          uuid.New().String(),
		CartID:      c.ID,
		Kind:        ItemAccessory,
		AccessoryID: accessoryID,
		Description: acc.Name,
		Quantity:    quantity,
		UnitPrice:   acc.Price,
		Price:       acc.Price.Mul(decimal.NewFromInt(int64(quantity))).Round(2),
		Deposit:     decimal.Zero,
	}
	if err := s.carts.InsertItem(ctx, li); err != nil {
		return nil, errors.Wrap(err, "insert line item")
	}
	return li, nil
}

// UpdateQuantity changes a line's quantity. Vehicle lines only accept 1;
// accessory lines reprice proportionally. Finalized orders reject the change.
func (s *Service) UpdateQuantity(ctx context.Context, actor Actor, itemID string, quantity int) (*LineItem, error) {
	li, _, err := s.mutableItem(ctx, actor, itemID)
	if err != nil {
		return nil, err
	}

	switch {
	case li.Kind == ItemVehicle && quantity != 1:
		return nil, ErrVehicleQuantity
	case quantity < 1:
		return nil, ErrInvalidQuantity
	}

	li.Quantity = quantity
	li.Price = li.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
	if err := s.carts.UpdateItem(ctx, li); err != nil {
		return nil, errors.Wrap(err, "update line item")
	}
	return li, nil
}

// RemoveItem deletes a line from an active cart. The aggregate persists even
// when its last line is removed.
func (s *Service) RemoveItem(ctx context.Context, actor Actor, itemID string) error {
	li, _, err := s.mutableItem(ctx, actor, itemID)
	if err != nil {
		return err
	}
	if err := s.carts.DeleteItem(ctx, li.ID); err != nil {
		return errors.Wrap(err, "delete line item")
	}
	return nil
}

// mutableItem loads a line item and its owning cart, enforcing ownership and
// the active-state requirement shared by every line mutation.
func (s *Service) mutableItem(ctx context.Context, actor Actor, itemID string) (*LineItem, *Cart, error) {
	li, err := s.carts.ItemByID(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	c, err := s.carts.ByID(ctx, li.CartID)
	if err != nil {
		return nil, nil, err
	}
	if !actor.owns(c) {
		return nil, nil, ErrNotOwner
	}
	if !c.Active() {
		return nil, nil, ErrCartFinalized
	}
	return li, c, nil
}
