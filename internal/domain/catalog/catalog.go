package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for catalog lookups. The catalog is owned by an external
// collaborator; this service only reads it, so a miss is always "not found",
// never a write conflict.
var (
	ErrVehicleNotFound       = errors.New("vehicle not found")
	ErrConfigurationNotFound = errors.New("configuration not found")
	ErrAccessoryNotFound     = errors.New("accessory not found")
	ErrCustomerNotFound      = errors.New("customer not found")
)

// Condition distinguishes new vehicles (configurator + deposit flow) from
// used ones (separate reservation flow, not handled here).
type Condition string

const (
	ConditionNew  Condition = "new"
	ConditionUsed Condition = "used"
)

// OptionKind enumerates the configurable option slots of a vehicle.
type OptionKind string

const (
	OptionExteriorColor OptionKind = "exterior_color"
	OptionInteriorColor OptionKind = "interior_color"
	OptionWheel         OptionKind = "wheel"
	OptionPackage       OptionKind = "package"
	OptionSeat          OptionKind = "seat"
)

// Vehicle is a base model in the catalog.
type Vehicle struct {
	ID        string
	Name      string
	BasePrice decimal.Decimal
	Condition Condition
}

// Option is one priced catalog option (paint, interior, wheels, package, seats).
type Option struct {
	ID    string
	Kind  OptionKind
	Name  string
	Price decimal.Decimal
}

// Configuration is a customer-assembled vehicle configuration: a base vehicle
// plus its selected options, resolved at read time. Options the catalog could
// not resolve are simply absent from the slice.
type Configuration struct {
	ID      string
	Vehicle Vehicle
	Options []Option
}

// Accessory is a simple priced catalog item bought at full price.
type Accessory struct {
	ID    string
	SKU   string
	Name  string
	Price decimal.Decimal
}

// Customer carries the buyer contact fields that invoices snapshot at
// finalization time.
type Customer struct {
	ID         string
	Name       string
	Email      string
	Phone      string
	Address    string
	PostalCode string
}

// Repository provides read-only catalog lookups.
type Repository interface {
	ConfigurationByID(ctx context.Context, id string) (*Configuration, error)
	AccessoryByID(ctx context.Context, id string) (*Accessory, error)
	CustomerByID(ctx context.Context, id string) (*Customer, error)
}
