package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/cart"
)

const (
	getCartSQL = `SELECT id, customer_id, status, total_price, total_deposit,
		COALESCE(checkout_session_id, ''), COALESCE(receipt_url, ''), created_at, validated_at
		FROM carts WHERE id = $1`

	getActiveCartSQL = `SELECT id, customer_id, status, total_price, total_deposit,
		COALESCE(checkout_session_id, ''), COALESCE(receipt_url, ''), created_at, validated_at
		FROM carts WHERE customer_id = $1 AND status = 'active'`

	createCartSQL = `INSERT INTO carts (id, customer_id, status, total_price, total_deposit)
		VALUES ($1, $2, 'active', $3, $4)`

	getItemsSQL = `SELECT id, cart_id, kind, COALESCE(configuration_id, ''), COALESCE(accessory_id, ''),
		description, quantity, unit_price, price, deposit
		FROM line_items WHERE cart_id = $1 ORDER BY created_at, id`

	getItemSQL = `SELECT id, cart_id, kind, COALESCE(configuration_id, ''), COALESCE(accessory_id, ''),
		description, quantity, unit_price, price, deposit
		FROM line_items WHERE id = $1`

	insertItemSQL = `INSERT INTO line_items
		(id, cart_id, kind, configuration_id, accessory_id, description, quantity, unit_price, price, deposit)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8, $9, $10)`

	updateItemSQL = `UPDATE line_items SET quantity = $2, price = $3 WHERE id = $1`

	deleteItemSQL = `DELETE FROM line_items WHERE id = $1 RETURNING cart_id`

	// refreshTotalsSQL keeps the stored aggregate totals equal to the sum of
	// the cart's line items; it runs inside every item mutation transaction.
	refreshTotalsSQL = `UPDATE carts SET
		total_price = t.price, total_deposit = t.deposit
		FROM (
			SELECT COALESCE(SUM(price), 0) AS price, COALESCE(SUM(deposit), 0) AS deposit
			FROM line_items WHERE cart_id = $1
		) t
		WHERE carts.id = $1`

	setSessionSQL = `UPDATE carts SET checkout_session_id = $2 WHERE id = $1`

	finalizeSQL = `UPDATE carts SET status = 'finalized', total_price = $2,
		receipt_url = NULLIF($3, ''), validated_at = $4
		WHERE id = $1 AND status = 'active'`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. The partial
// unique index on active carts makes the one-active-cart-per-customer
// invariant hold under concurrent creation.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// ByID loads one cart aggregate.
func (r *CartRepository) ByID(ctx context.Context, id string) (*cart.Cart, error) {
	c, err := scanCart(r.pool.QueryRow(ctx, getCartSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrCartNotFound
		}
		return nil, fmt.Errorf("loading cart %q: %w", id, err)
	}
	return c, nil
}

// ActiveByCustomer loads the customer's single active cart.
func (r *CartRepository) ActiveByCustomer(ctx context.Context, customerID string) (*cart.Cart, error) {
	c, err := scanCart(r.pool.QueryRow(ctx, getActiveCartSQL, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNoActiveCart
		}
		return nil, fmt.Errorf("loading active cart for %q: %w", customerID, err)
	}
	return c, nil
}

// CreateActive inserts a fresh active cart. A concurrent creation for the
// same customer loses against the partial unique index and surfaces as
// cart.ErrActiveCartExists.
func (r *CartRepository) CreateActive(ctx context.Context, c *cart.Cart) error {
	_, err := r.pool.Exec(ctx, createCartSQL, c.ID, c.CustomerID, c.TotalPrice, c.TotalDeposit)
	if err != nil {
		if uniqueViolation(err, "carts_one_active_per_customer") {
			return cart.ErrActiveCartExists
		}
		return fmt.Errorf("creating cart %q: %w", c.ID, err)
	}
	return nil
}

// Items loads a cart's line items in insertion order.
func (r *CartRepository) Items(ctx context.Context, cartID string) ([]cart.LineItem, error) {
	rows, err := r.pool.Query(ctx, getItemsSQL, cartID)
	if err != nil {
		return nil, fmt.Errorf("loading items for cart %q: %w", cartID, err)
	}
	items, err := pgx.CollectRows(rows, scanLineItem)
	if err != nil {
		return nil, fmt.Errorf("loading items for cart %q: %w", cartID, err)
	}
	return items, nil
}

// ItemByID loads one line item.
func (r *CartRepository) ItemByID(ctx context.Context, id string) (*cart.LineItem, error) {
	rows, err := r.pool.Query(ctx, getItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("loading item %q: %w", id, err)
	}
	li, err := pgx.CollectExactlyOneRow(rows, scanLineItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, fmt.Errorf("loading item %q: %w", id, err)
	}
	return &li, nil
}

// InsertItem writes a new line and refreshes the cart totals in one
// transaction.
func (r *CartRepository) InsertItem(ctx context.Context, li *cart.LineItem) error {
	return r.mutateItems(ctx, li.CartID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, insertItemSQL,
			li.ID, li.CartID, string(li.Kind), li.ConfigurationID, li.AccessoryID,
			li.Description, li.Quantity, li.UnitPrice, li.Price, li.Deposit,
		)
		return err
	})
}

// UpdateItem persists a quantity/price change and refreshes the cart totals
// in one transaction.
func (r *CartRepository) UpdateItem(ctx context.Context, li *cart.LineItem) error {
	return r.mutateItems(ctx, li.CartID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateItemSQL, li.ID, li.Quantity, li.Price)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return cart.ErrItemNotFound
		}
		return nil
	})
}

// DeleteItem removes a line and refreshes the cart totals in one transaction.
func (r *CartRepository) DeleteItem(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin delete item %q: %w", id, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var cartID string
	if err := tx.QueryRow(ctx, deleteItemSQL, id).Scan(&cartID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.ErrItemNotFound
		}
		return fmt.Errorf("deleting item %q: %w", id, err)
	}
	if _, err := tx.Exec(ctx, refreshTotalsSQL, cartID); err != nil {
		return fmt.Errorf("refreshing totals for cart %q: %w", cartID, err)
	}
	return tx.Commit(ctx)
}

// SetCheckoutSession records the external payment session id on the cart.
func (r *CartRepository) SetCheckoutSession(ctx context.Context, cartID, sessionID string) error {
	tag, err := r.pool.Exec(ctx, setSessionSQL, cartID, sessionID)
	if err != nil {
		return fmt.Errorf("recording session on cart %q: %w", cartID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrCartNotFound
	}
	return nil
}

// Finalize conditionally transitions the cart to finalized. The WHERE clause
// on the current status makes concurrent webhook deliveries race safely: at
// most one caller sees a true result.
func (r *CartRepository) Finalize(ctx context.Context, cartID string, total decimal.Decimal, receiptURL string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, finalizeSQL, cartID, total, receiptURL, at)
	if err != nil {
		return false, fmt.Errorf("finalizing cart %q: %w", cartID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *CartRepository) mutateItems(ctx context.Context, cartID string, mutate func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin item mutation for cart %q: %w", cartID, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := mutate(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, refreshTotalsSQL, cartID); err != nil {
		return fmt.Errorf("refreshing totals for cart %q: %w", cartID, err)
	}
	return tx.Commit(ctx)
}

func scanCart(row pgx.Row) (*cart.Cart, error) {
	var (
		c      cart.Cart
		status string
	)
	err := row.Scan(
		&c.ID, &c.CustomerID, &status, &c.TotalPrice, &c.TotalDeposit,
		&c.CheckoutSessionID, &c.ReceiptURL, &c.CreatedAt, &c.ValidatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Status = cart.Status(status)
	return &c, nil
}

func scanLineItem(row pgx.CollectableRow) (cart.LineItem, error) {
	var (
		li   cart.LineItem
		kind string
	)
	err := row.Scan(
		&li.ID, &li.CartID, &kind, &li.ConfigurationID, &li.AccessoryID,
		&li.Description, &li.Quantity, &li.UnitPrice, &li.Price, &li.Deposit,
	)
	li.Kind = cart.ItemKind(kind)
	return li, err
}
