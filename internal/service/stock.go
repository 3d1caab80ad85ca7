package service

import (
	"fmt"

	"github.com/fathursyh/ecommerce-api/internal/domain"
)

// InsufficientStockError reports a requested quantity the product cannot
// cover, with enough detail for the caller to retry with a smaller amount.
// CurrentQuantity is set when the cart already holds a line for the product.
type InsufficientStockError struct {
	Available       int
	CurrentQuantity *int
}

func (e *InsufficientStockError) Error() string {
	if e.CurrentQuantity != nil {
		return fmt.Sprintf("insufficient stock: %d available, %d already in cart", e.Available, *e.CurrentQuantity)
	}
	return fmt.Sprintf("insufficient stock: %d available", e.Available)
}

// checkStock validates a requested quantity against current stock. The check
// is advisory: it is re-evaluated inside each mutation's transaction but
// takes no lock and reserves nothing, so two concurrent mutations can both
// pass against the same stale read.
func checkStock(product *domain.Product, requested int) *InsufficientStockError {
	if requested > product.StockQuantity {
		return &InsufficientStockError{Available: product.StockQuantity}
	}
	return nil
}
