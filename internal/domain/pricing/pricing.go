// Package pricing computes configuration prices and required deposits.
//
// The engine is pure: it never touches storage, and an option the catalog
// failed to resolve simply contributes zero instead of failing the quote.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/catalog"
)

// ProductKind tells the deposit policy what is being bought.
type ProductKind string

const (
	ProductVehicle   ProductKind = "vehicle"
	ProductAccessory ProductKind = "accessory"
)

// OptionAmount is one option's contribution to a quote.
type OptionAmount struct {
	OptionID string
	Kind     catalog.OptionKind
	Name     string
	Amount   decimal.Decimal
}

// Quote is the priced breakdown of a vehicle configuration.
type Quote struct {
	Base    decimal.Decimal
	Options []OptionAmount
	Total   decimal.Decimal
}

// Engine applies the single canonical deposit percentage.
//
// The storefront historically charged either 10% or 20% depending on the call
// path; there is exactly one percentage here so every path agrees.
type Engine struct {
	depositPercent decimal.Decimal
}

// NewEngine creates an Engine charging the given deposit percentage
// (e.g. 20 for 20%) on new-vehicle configurations.
func NewEngine(depositPercent decimal.Decimal) *Engine {
	return &Engine{depositPercent: depositPercent}
}

// ConfigurationQuote prices a configuration: base vehicle price plus the sum
// of all resolved options, rounded to 2 decimal places.
func (e *Engine) ConfigurationQuote(cfg *catalog.Configuration) Quote {
	q := Quote{
		Base:    cfg.Vehicle.BasePrice,
		Options: make([]OptionAmount, 0, len(cfg.Options)),
		Total:   cfg.Vehicle.BasePrice,
	}
	for _, opt := range cfg.Options {
		q.Options = append(q.Options, OptionAmount{
			OptionID: opt.ID,
			Kind:     opt.Kind,
			Name:     opt.Name,
			Amount:   opt.Price,
		})
		q.Total = q.Total.Add(opt.Price)
	}
	q.Total = q.Total.Round(2)
	return q
}

// Deposit returns the amount collected at checkout time. New-vehicle
// configurations pay the configured percentage of the total; everything else
// pays in full, so the deposit is zero. The result never exceeds the total.
func (e *Engine) Deposit(total decimal.Decimal, kind ProductKind) decimal.Decimal {
	if kind != ProductVehicle {
		return decimal.Zero
	}
	d := total.Mul(e.depositPercent).Div(decimal.NewFromInt(100)).Round(2)
	if d.GreaterThan(total) {
		return total
	}
	return d
}
