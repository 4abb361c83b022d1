package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/catalog"
)

const (
	getConfigurationSQL = `SELECT c.id, v.id, v.name, v.base_price, v.condition
		FROM configurations c
		JOIN vehicles v ON v.id = c.vehicle_id
		WHERE c.id = $1`

	getConfigurationOptionsSQL = `SELECT o.id, o.kind, o.name, o.price
		FROM configuration_options co
		JOIN catalog_options o ON o.id = co.option_id
		WHERE co.configuration_id = $1
		ORDER BY o.kind, o.id`

	getAccessorySQL = `SELECT id, sku, name, price FROM accessories WHERE id = $1`

	getCustomerSQL = `SELECT id, name, email, phone, address, postal_code
		FROM customers WHERE id = $1`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository reads the collaborator-owned catalog tables. It never
// writes them.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// ConfigurationByID loads a vehicle configuration with its resolved options.
// Option references that no longer resolve are silently absent, so a quote
// can still be computed.
func (r *CatalogRepository) ConfigurationByID(ctx context.Context, id string) (*catalog.Configuration, error) {
	var (
		cfg       catalog.Configuration
		condition string
	)
	err := r.pool.QueryRow(ctx, getConfigurationSQL, id).Scan(
		&cfg.ID, &cfg.Vehicle.ID, &cfg.Vehicle.Name, &cfg.Vehicle.BasePrice, &condition,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrConfigurationNotFound
		}
		return nil, fmt.Errorf("loading configuration %q: %w", id, err)
	}
	cfg.Vehicle.Condition = catalog.Condition(condition)

	rows, err := r.pool.Query(ctx, getConfigurationOptionsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("loading options for configuration %q: %w", id, err)
	}
	cfg.Options, err = pgx.CollectRows(rows, scanOption)
	if err != nil {
		return nil, fmt.Errorf("loading options for configuration %q: %w", id, err)
	}

	return &cfg, nil
}

// AccessoryByID loads one accessory.
func (r *CatalogRepository) AccessoryByID(ctx context.Context, id string) (*catalog.Accessory, error) {
	var acc catalog.Accessory
	err := r.pool.QueryRow(ctx, getAccessorySQL, id).Scan(&acc.ID, &acc.SKU, &acc.Name, &acc.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrAccessoryNotFound
		}
		return nil, fmt.Errorf("loading accessory %q: %w", id, err)
	}
	return &acc, nil
}

// CustomerByID loads the buyer contact record used for invoice snapshots.
func (r *CatalogRepository) CustomerByID(ctx context.Context, id string) (*catalog.Customer, error) {
	var c catalog.Customer
	err := r.pool.QueryRow(ctx, getCustomerSQL, id).Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.PostalCode,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("loading customer %q: %w", id, err)
	}
	return &c, nil
}

func scanOption(row pgx.CollectableRow) (catalog.Option, error) {
	var (
		opt  catalog.Option
		kind string
	)
	err := row.Scan(&opt.ID, &kind, &opt.Name, &opt.Price)
	opt.Kind = catalog.OptionKind(kind)
	return opt, err
}
