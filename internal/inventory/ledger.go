// Package inventory holds the ingredient ledger model: stocked amounts,
// cumulative consumption, recipe requirements, and the availability
// derivations built on them. All types here are pure values; persistence and
// mutation live in the database and service layers.
package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/kopiraya-pos/api/internal/enum"
	"github.com/kopiraya-pos/api/internal/measure"
)

// LedgerEntry is the stock record for one ingredient. Quantity counts
// stocking units (e.g. 10 bags); PerUnit is the measured content of one such
// unit (e.g. 1000 g). Used accumulates consumption in PerUnit's unit and is
// only ever increased by the consumption transaction or reset by restock.
type LedgerEntry struct {
	ID          uuid.UUID
	ShopID      uuid.UUID
	Name        string
	Quantity    float64
	PerUnit     measure.Measurement
	Used        float64
	MinQuantity float64
	CostPrice   float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TotalMeasurement is the full stocked amount in PerUnit's unit.
func (e LedgerEntry) TotalMeasurement() measure.Measurement {
	return measure.New(e.Quantity*e.PerUnit.Value, e.PerUnit.Unit)
}

// Available is the amount not yet consumed, in PerUnit's unit.
func (e LedgerEntry) Available() measure.Measurement {
	return measure.New(e.Quantity*e.PerUnit.Value-e.Used, e.PerUnit.Unit)
}

// IsLowStock reports whether the remaining amount has fallen to or below the
// minimum-quantity threshold expressed in PerUnit terms.
func (e LedgerEntry) IsLowStock() bool {
	return e.Available().Value <= e.MinQuantity*e.PerUnit.Value
}

// Status derives the stock status label.
func (e LedgerEntry) Status() string {
	switch {
	case e.Quantity <= 0:
		return enum.StockStatusOutOfStock
	case e.IsLowStock():
		return enum.StockStatusLowStock
	default:
		return enum.StockStatusInStock
	}
}

// UsagePercent is the share of total stock already consumed, in [0, 100].
func (e LedgerEntry) UsagePercent() float64 {
	total := e.TotalMeasurement().Value
	if total <= 0 {
		return 0
	}
	pct := e.Used / total * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// RecipeLine binds a menu item to a required ingredient amount per single
// serving.
type RecipeLine struct {
	IngredientID   uuid.UUID
	IngredientName string
	Required       measure.Measurement
}

// SatisfiedBy reports whether one serving's requirement can be met from the
// given ledger entry. A unit mismatch between recipe and ledger makes the
// line unsatisfiable (fail-closed).
func (l RecipeLine) SatisfiedBy(entry LedgerEntry) bool {
	if l.IngredientID != entry.ID {
		return false
	}
	required, err := l.Required.Convert(entry.PerUnit.Unit)
	if err != nil {
		return false
	}
	return entry.Available().GreaterEq(required)
}

// Shortfall returns how much of the requirement (scaled by servings) the
// entry cannot cover, in the entry's unit. Zero means satisfiable; a unit
// mismatch reports the full scaled requirement in the recipe's own unit.
func (l RecipeLine) Shortfall(entry LedgerEntry, servings float64) measure.Measurement {
	scaled := l.Required.MulScalar(servings)
	required, err := scaled.Convert(entry.PerUnit.Unit)
	if err != nil {
		return scaled
	}
	short, _ := required.Sub(entry.Available())
	return short
}

// Index is a read-only view of current ledger state keyed by ingredient id.
type Index map[uuid.UUID]LedgerEntry

// Available recomputes a menu item's orderable flag against current ledger
// state: items with no recipe are always available, otherwise every line must
// be satisfiable. Must be re-evaluated after every consumption commit and
// restock, not just at order time.
func Available(recipe []RecipeLine, index Index) bool {
	for _, line := range recipe {
		entry, ok := index[line.IngredientID]
		if !ok {
			return false
		}
		if !line.SatisfiedBy(entry) {
			return false
		}
	}
	return true
}
