package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID               uuid.UUID           `json:"id" db:"id"`
	Name             string              `json:"name" db:"name"`
	Slug             string              `json:"slug" db:"slug"`
	Description      string              `json:"description" db:"description"`
	ShortDescription string              `json:"short_description" db:"short_description"`
	Price            decimal.Decimal     `json:"price" db:"price"`
	SalePrice        decimal.NullDecimal `json:"sale_price" db:"sale_price"`
	StockQuantity    int                 `json:"stock_quantity" db:"stock_quantity"`
	CategoryID       uuid.UUID           `json:"category_id" db:"category_id"`
	ImageURL         string              `json:"image_url" db:"image_url"`
	IsActive         bool                `json:"is_active" db:"is_active"`
	IsFeatured       bool                `json:"is_featured" db:"is_featured"`
	CreatedAt        time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at" db:"updated_at"`
}

// EffectivePrice returns the sale price when one is set, otherwise the base
// price. Cart mutations snapshot this value onto the line item.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice.Valid {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// InStock reports whether the product has any sellable stock.
func (p *Product) InStock() bool {
	return p.StockQuantity > 0
}

// Category represents a product category
type Category struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Slug        string      `json:"slug" db:"slug"`
	Description string      `json:"description" db:"description"`
	ParentID    *uuid.UUID  `json:"parent_id" db:"parent_id"`
	ImageURL    string      `json:"image_url" db:"image_url"`
	IsActive    bool        `json:"is_active" db:"is_active"`
	SortOrder   int         `json:"sort_order" db:"sort_order"`
	Children    []*Category `json:"children,omitempty" db:"-"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}
