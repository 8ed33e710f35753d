package service

import (
	"fmt"

	"github.com/kopiraya-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Order shape bounds. The total ceiling is configurable; these are not.
const (
	maxOrderItems = 50
	maxItemQty    = 99
	maxNoteLength = 200
)

// validateShape checks everything that needs no database read: item count and
// identity, quantities, note lengths, discount range, payment method.
// Returns every violation found. Price and total-bound checks need current
// menu prices and run inside the transaction.
func validateShape(req PlaceOrderRequest) ValidationErrors {
	var errs ValidationErrors

	if len(req.Items) == 0 {
		errs = append(errs, ValidationError{Field: "items", Message: "at least one item is required"})
	}
	if len(req.Items) > maxOrderItems {
		errs = append(errs, ValidationError{
			Field:   "items",
			Message: fmt.Sprintf("at most %d distinct items allowed", maxOrderItems),
		})
	}

	// Line identity is (menu item, options combination); exact duplicates
	// should have been merged on add.
	type lineKey struct {
		menuItemID  string
		temperature string
		mode        string
	}
	seen := make(map[lineKey]bool, len(req.Items))

	for i, item := range req.Items {
		field := fmt.Sprintf("items[%d]", i)

		if item.MenuItemID == "" {
			errs = append(errs, ValidationError{Field: field + ".menu_item_id", Message: "menu_item_id is required"})
		}
		if item.Quantity < 1 || item.Quantity > maxItemQty {
			errs = append(errs, ValidationError{
				Field:   field + ".quantity",
				Message: fmt.Sprintf("quantity must be between 1 and %d", maxItemQty),
			})
		}
		if len(item.Note) > maxNoteLength {
			errs = append(errs, ValidationError{
				Field:   field + ".note",
				Message: fmt.Sprintf("note must be at most %d characters", maxNoteLength),
			})
		}
		if item.Temperature != "" && !isValidTemperature(item.Temperature) {
			errs = append(errs, ValidationError{Field: field + ".temperature", Message: "invalid temperature"})
		}
		if item.ConsumptionMode != "" && !isValidConsumptionMode(item.ConsumptionMode) {
			errs = append(errs, ValidationError{Field: field + ".consumption_mode", Message: "invalid consumption_mode"})
		}

		key := lineKey{item.MenuItemID, item.Temperature, item.ConsumptionMode}
		if seen[key] {
			errs = append(errs, ValidationError{Field: field, Message: "duplicate line item, merge quantities instead"})
		}
		seen[key] = true
	}

	if len(req.Note) > maxNoteLength {
		errs = append(errs, ValidationError{
			Field:   "note",
			Message: fmt.Sprintf("note must be at most %d characters", maxNoteLength),
		})
	}

	if req.DiscountPercent != "" {
		pct, err := decimal.NewFromString(req.DiscountPercent)
		if err != nil {
			errs = append(errs, ValidationError{Field: "discount_percent", Message: "must be a number"})
		} else if pct.IsNegative() || pct.GreaterThan(decimal.NewFromInt(100)) {
			errs = append(errs, ValidationError{Field: "discount_percent", Message: "must be between 0 and 100"})
		}
	}

	if !isValidPaymentMethod(req.PaymentMethod) {
		errs = append(errs, ValidationError{Field: "payment_method", Message: "invalid payment_method"})
	}

	return errs
}

func isValidPaymentMethod(s string) bool {
	switch s {
	case enum.PaymentMethodCash, enum.PaymentMethodQRIS,
		enum.PaymentMethodCard, enum.PaymentMethodTransfer:
		return true
	}
	return false
}

func isValidTemperature(s string) bool {
	switch s {
	case enum.TemperatureHot, enum.TemperatureIced, enum.TemperatureNone:
		return true
	}
	return false
}

func isValidConsumptionMode(s string) bool {
	switch s {
	case enum.ConsumptionModeDineIn, enum.ConsumptionModeTakeaway:
		return true
	}
	return false
}
