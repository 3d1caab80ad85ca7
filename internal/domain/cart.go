package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is the per-identity collection of line items. Exactly one of UserID
// and SessionID is set.
type Cart struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	UserID    *uuid.UUID `json:"user_id" db:"user_id"`
	SessionID *string    `json:"session_id" db:"session_id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// CartItem is one line item: a (product, quantity, snapshot price) tuple.
// Price is captured at mutation time and is not recomputed on read.
type CartItem struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	CartID    uuid.UUID       `json:"cart_id" db:"cart_id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	Price     decimal.Decimal `json:"price" db:"price"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Subtotal returns quantity * snapshot price.
func (i *CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartLine pairs a line item with the live product row it references.
type CartLine struct {
	Item    CartItem `json:"item"`
	Product Product  `json:"product"`
}

// CartAggregate is a cart together with its lines, as returned by every cart
// operation.
type CartAggregate struct {
	Cart  Cart       `json:"cart"`
	Lines []CartLine `json:"lines"`
}

// Total returns the sum of all line subtotals.
func (a *CartAggregate) Total() decimal.Decimal {
	total := decimal.Zero
	for i := range a.Lines {
		total = total.Add(a.Lines[i].Item.Subtotal())
	}
	return total
}

// ItemCount returns the total quantity across all lines.
func (a *CartAggregate) ItemCount() int {
	count := 0
	for i := range a.Lines {
		count += a.Lines[i].Item.Quantity
	}
	return count
}

// Identity names the owner of a cart: an authenticated user or a guest
// session. It is threaded explicitly through every cart operation.
type Identity struct {
	UserID    *uuid.UUID
	SessionID string
}

// UserIdentity builds an identity for an authenticated user.
func UserIdentity(userID uuid.UUID) Identity {
	return Identity{UserID: &userID}
}

// GuestIdentity builds an identity for a guest session token.
func GuestIdentity(sessionID string) Identity {
	return Identity{SessionID: sessionID}
}

// IsAuthenticated reports whether the identity belongs to a user account.
func (id Identity) IsAuthenticated() bool {
	return id.UserID != nil
}
