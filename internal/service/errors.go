package service

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by the order service.
var (
	// ErrTransactionConflict is surfaced after the in-transaction retry
	// budget is exhausted. Transient: the caller may simply resubmit.
	ErrTransactionConflict = errors.New("transaction conflict, please try again")

	ErrMenuItemNotFound   = errors.New("menu item not found in shop")
	ErrIngredientNotFound = errors.New("ingredient not found")
	ErrInvalidMenuItemID  = errors.New("invalid menu_item_id")
	ErrInvalidCustomerID  = errors.New("invalid customer_id")
)

// ValidationError describes one user-correctable violation of order shape or
// bounds.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors carries every violation found, not just the first, so the
// caller can surface the complete list. An order is refused while any are
// present.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return "invalid order: " + strings.Join(msgs, "; ")
}

// InsufficientStockError rejects an order that would overdraw an ingredient.
// The whole order is aborted; no ledger entry is written.
type InsufficientStockError struct {
	Ingredient string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %s", e.Ingredient)
}
