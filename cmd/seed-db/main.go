// Command seed-db loads catalog reference data and a storefront API key into
// the database. It is idempotent: every statement is an upsert.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/storage/postgres"
)

type catalogJSON struct {
	Customers []struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Email      string `json:"email"`
		Phone      string `json:"phone"`
		Address    string `json:"address"`
		PostalCode string `json:"postal_code"`
	} `json:"customers"`
	Vehicles []struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		BasePrice decimal.Decimal `json:"base_price"`
		Condition string          `json:"condition"`
	} `json:"vehicles"`
	Options []struct {
		ID    string          `json:"id"`
		Kind  string          `json:"kind"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	} `json:"options"`
	Configurations []struct {
		ID        string   `json:"id"`
		VehicleID string   `json:"vehicle_id"`
		OptionIDs []string `json:"option_ids"`
	} `json:"configurations"`
	Accessories []struct {
		ID    string          `json:"id"`
		SKU   string          `json:"sku"`
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	} `json:"accessories"`
}

func main() {
	var (
		databaseURL  string
		catalogFile  string
		apiKey       string
		apiKeyPepper string
		customerID   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or PCFG_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PCFG_API_KEY_PEPPER env)")
	flag.StringVar(&customerID, "customer-id", "", "customer the seeded API key acts as")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("PCFG_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("PCFG_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile, apiKey, apiKeyPepper, customerID); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile, apiKey, pepper, customerID string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, catalogFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if apiKey != "" {
		if customerID == "" {
			return errors.New("customer ID is required when seeding an API key")
		}
		if err := seedAPIKey(ctx, pool, apiKey, pepper, customerID); err != nil {
			return errors.Wrap(err, "seed api key")
		}
	}

	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var cat catalogJSON
	if err := json.Unmarshal(data, &cat); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	for _, c := range cat.Customers {
		_, err := pool.Exec(ctx, `INSERT INTO customers (id, name, email, phone, address, postal_code)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET name = $2, email = $3, phone = $4, address = $5, postal_code = $6`,
			c.ID, c.Name, c.Email, c.Phone, c.Address, c.PostalCode)
		if err != nil {
			return errors.Wrapf(err, "upsert customer %s", c.ID)
		}
	}
	slog.Info("upserted customers", slog.Int("count", len(cat.Customers)))

	for _, v := range cat.Vehicles {
		_, err := pool.Exec(ctx, `INSERT INTO vehicles (id, name, base_price, condition)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET name = $2, base_price = $3, condition = $4`,
			v.ID, v.Name, v.BasePrice, v.Condition)
		if err != nil {
			return errors.Wrapf(err, "upsert vehicle %s", v.ID)
		}
	}
	slog.Info("upserted vehicles", slog.Int("count", len(cat.Vehicles)))

	for _, o := range cat.Options {
		_, err := pool.Exec(ctx, `INSERT INTO catalog_options (id, kind, name, price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET kind = $2, name = $3, price = $4`,
			o.ID, o.Kind, o.Name, o.Price)
		if err != nil {
			return errors.Wrapf(err, "upsert option %s", o.ID)
		}
	}
	slog.Info("upserted options", slog.Int("count", len(cat.Options)))

	for _, cfg := range cat.Configurations {
		_, err := pool.Exec(ctx, `INSERT INTO configurations (id, vehicle_id)
			VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET vehicle_id = $2`,
			cfg.ID, cfg.VehicleID)
		if err != nil {
			return errors.Wrapf(err, "upsert configuration %s", cfg.ID)
		}
		for _, optID := range cfg.OptionIDs {
			_, err := pool.Exec(ctx, `INSERT INTO configuration_options (configuration_id, option_id)
				VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				cfg.ID, optID)
			if err != nil {
				return errors.Wrapf(err, "link option %s to configuration %s", optID, cfg.ID)
			}
		}
	}
	slog.Info("upserted configurations", slog.Int("count", len(cat.Configurations)))

	for _, a := range cat.Accessories {
		_, err := pool.Exec(ctx, `INSERT INTO accessories (id, sku, name, price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET sku = $2, name = $3, price = $4`,
			a.ID, a.SKU, a.Name, a.Price)
		if err != nil {
			return errors.Wrapf(err, "upsert accessory %s", a.ID)
		}
	}
	slog.Info("upserted accessories", slog.Int("count", len(cat.Accessories)))

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper, customerID string) error {
	slog.Info("seeding storefront API key", slog.String("customer_id", customerID))

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, `INSERT INTO api_keys (id, key_hash, customer_id, name, scopes, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (id) DO UPDATE SET key_hash = $2, customer_id = $3, name = $4, scopes = $5, active = TRUE`,
		"default", keyHash, customerID, "Default storefront key", []string{})
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	return nil
}
