package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/billing"
)

const (
	// nextInvoiceNumberSQL allocates per-year numbers with an atomic upsert.
	// Counting invoice rows instead would hand out duplicates under
	// concurrent finalizations.
	nextInvoiceNumberSQL = `INSERT INTO invoice_counters (year, last_number)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_number = invoice_counters.last_number + 1
		RETURNING last_number`

	createInvoiceSQL = `INSERT INTO invoices
		(id, cart_id, payment_session_id, year, number, net, tax, gross,
		 buyer_name, buyer_email, buyer_phone, buyer_address, buyer_postal_code,
		 lines, hosted_url, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULLIF($15, ''), $16)`

	getInvoiceByCartSQL = `SELECT id, cart_id, payment_session_id, year, number, net, tax, gross,
		buyer_name, buyer_email, buyer_phone, buyer_address, buyer_postal_code,
		lines, COALESCE(hosted_url, ''), issued_at
		FROM invoices WHERE cart_id = $1`

	uninvoicedCartsSQL = `SELECT c.id FROM carts c
		LEFT JOIN invoices i ON i.cart_id = c.id
		WHERE c.status = 'finalized' AND i.id IS NULL
		ORDER BY c.validated_at`
)

var _ billing.Repository = (*InvoiceRepository)(nil)

// InvoiceRepository implements billing.Repository backed by PostgreSQL.
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository returns an InvoiceRepository that uses the given pool.
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// NextNumber atomically allocates the next invoice number for the year.
func (r *InvoiceRepository) NextNumber(ctx context.Context, year int) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, nextInvoiceNumberSQL, year).Scan(&n); err != nil {
		return 0, fmt.Errorf("allocating invoice number for %d: %w", year, err)
	}
	return n, nil
}

// Create persists the invoice. The purchased lines are serialized to JSON for
// storage in the JSONB column; unique keys on the cart and payment session
// surface duplicates as billing.ErrDuplicateInvoice.
func (r *InvoiceRepository) Create(ctx context.Context, inv *billing.Invoice) error {
	linesJSON, err := json.Marshal(inv.Lines)
	if err != nil {
		return fmt.Errorf("marshaling invoice lines: %w", err)
	}

	_, err = r.pool.Exec(ctx, createInvoiceSQL,
		inv.ID, inv.CartID, inv.PaymentSessionID, inv.Year, inv.Number,
		inv.Net, inv.Tax, inv.Gross,
		inv.Buyer.Name, inv.Buyer.Email, inv.Buyer.Phone, inv.Buyer.Address, inv.Buyer.PostalCode,
		linesJSON, inv.HostedURL, inv.IssuedAt,
	)
	if err != nil {
		if uniqueViolation(err, "") {
			return billing.ErrDuplicateInvoice
		}
		return fmt.Errorf("creating invoice %q: %w", inv.ID, err)
	}
	return nil
}

// ByCartID loads the invoice generated for a finalized order.
func (r *InvoiceRepository) ByCartID(ctx context.Context, cartID string) (*billing.Invoice, error) {
	var (
		inv       billing.Invoice
		linesJSON []byte
	)
	err := r.pool.QueryRow(ctx, getInvoiceByCartSQL, cartID).Scan(
		&inv.ID, &inv.CartID, &inv.PaymentSessionID, &inv.Year, &inv.Number,
		&inv.Net, &inv.Tax, &inv.Gross,
		&inv.Buyer.Name, &inv.Buyer.Email, &inv.Buyer.Phone, &inv.Buyer.Address, &inv.Buyer.PostalCode,
		&linesJSON, &inv.HostedURL, &inv.IssuedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("loading invoice for cart %q: %w", cartID, err)
	}
	if err := json.Unmarshal(linesJSON, &inv.Lines); err != nil {
		return nil, fmt.Errorf("unmarshaling invoice lines for cart %q: %w", cartID, err)
	}
	return &inv, nil
}

// UninvoicedCartIDs lists finalized orders that still lack an invoice.
func (r *InvoiceRepository) UninvoicedCartIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, uninvoicedCartsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing uninvoiced orders: %w", err)
	}
	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (string, error) {
		var id string
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing uninvoiced orders: %w", err)
	}
	return ids, nil
}
