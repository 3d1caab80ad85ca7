package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fathursyh/ecommerce-api/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("cart item not found")
)

// CartRepository defines the interface for cart and cart item data access.
// Lookup is keyed by owning identity: an authenticated user id or a guest
// session token, never both.
type CartRepository interface {
	FindOrCreate(ctx context.Context, identity domain.Identity) (*domain.Cart, error)
	FindBySession(ctx context.Context, sessionID string) (*domain.Cart, error)
	Delete(ctx context.Context, cartID uuid.UUID) error

	FindItem(ctx context.Context, cartID, productID uuid.UUID) (*domain.CartItem, error)
	FindItemByID(ctx context.Context, itemID uuid.UUID) (*domain.CartItem, error)
	CreateItem(ctx context.Context, item *domain.CartItem) error
	UpdateItem(ctx context.Context, itemID uuid.UUID, quantity int, price decimal.Decimal) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	ListItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartLine, error)
}

type cartRepository struct {
	db DBTX
}

// NewCartRepository creates a new instance of CartRepository. The querier may
// be a *sql.DB or a *sql.Tx.
func NewCartRepository(db DBTX) CartRepository {
	return &cartRepository{db: db}
}

const cartColumns = `id, user_id, session_id, created_at, updated_at`

func scanCart(row interface{ Scan(...any) error }) (*domain.Cart, error) {
	cart := &domain.Cart{}
	err := row.Scan(
		&cart.ID,
		&cart.UserID,
		&cart.SessionID,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// FindOrCreate resolves the cart owned by the identity, creating it when
// absent. The upsert rides the unique indexes on user_id and session_id, so
// two concurrent resolutions of the same identity converge on one row.
func (r *cartRepository) FindOrCreate(ctx context.Context, identity domain.Identity) (*domain.Cart, error) {
	now := time.Now()

	var query string
	var owner any
	if identity.IsAuthenticated() {
		query = fmt.Sprintf(`
			INSERT INTO carts (id, user_id, session_id, created_at, updated_at)
			VALUES ($1, $2, NULL, $3, $3)
			ON CONFLICT (user_id) DO UPDATE SET updated_at = carts.updated_at
			RETURNING %s
		`, cartColumns)
		owner = *identity.UserID
	} else {
		query = fmt.Sprintf(`
			INSERT INTO carts (id, user_id, session_id, created_at, updated_at)
			VALUES ($1, NULL, $2, $3, $3)
			ON CONFLICT (session_id) DO UPDATE SET updated_at = carts.updated_at
			RETURNING %s
		`, cartColumns)
		owner = identity.SessionID
	}

	cart, err := scanCart(r.db.QueryRowContext(ctx, query, uuid.New(), owner, now))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve cart: %w", err)
	}

	return cart, nil
}

// FindBySession resolves a guest cart without creating one.
func (r *cartRepository) FindBySession(ctx context.Context, sessionID string) (*domain.Cart, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM carts
		WHERE session_id = $1
	`, cartColumns)

	cart, err := scanCart(r.db.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart by session: %w", err)
	}

	return cart, nil
}

// Delete removes a cart row; its items go with it via ON DELETE CASCADE.
func (r *cartRepository) Delete(ctx context.Context, cartID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCartNotFound
	}

	return nil
}

const cartItemColumns = `id, cart_id, product_id, quantity, price, created_at, updated_at`

func scanCartItem(row interface{ Scan(...any) error }) (*domain.CartItem, error) {
	item := &domain.CartItem{}
	err := row.Scan(
		&item.ID,
		&item.CartID,
		&item.ProductID,
		&item.Quantity,
		&item.Price,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// FindItem retrieves the line item for a (cart, product) pair
func (r *cartRepository) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*domain.CartItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, cartItemColumns)

	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, cartID, productID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to find cart item: %w", err)
	}

	return item, nil
}

// FindItemByID retrieves a line item by its identifier
func (r *cartRepository) FindItemByID(ctx context.Context, itemID uuid.UUID) (*domain.CartItem, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM cart_items
		WHERE id = $1
	`, cartItemColumns)

	item, err := scanCartItem(r.db.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("failed to find cart item by ID: %w", err)
	}

	return item, nil
}

// CreateItem inserts a new line item using parameterized queries
func (r *cartRepository) CreateItem(ctx context.Context, item *domain.CartItem) error {
	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, price, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		item.ID,
		item.CartID,
		item.ProductID,
		item.Quantity,
		item.Price,
		item.CreatedAt,
		item.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create cart item: %w", err)
	}

	return nil
}

// UpdateItem overwrites a line item's quantity and snapshot price
func (r *cartRepository) UpdateItem(ctx context.Context, itemID uuid.UUID, quantity int, price decimal.Decimal) error {
	query := `
		UPDATE cart_items
		SET quantity = $2, price = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, itemID, quantity, price)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCartItemNotFound
	}

	return nil
}

// DeleteItem removes a single line item
func (r *cartRepository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrCartItemNotFound
	}

	return nil
}

// DeleteItems removes every line item in the cart; the cart row persists
func (r *cartRepository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	return nil
}

// ListItems retrieves all line items joined with their live product rows.
// Items whose product has been removed are omitted.
func (r *cartRepository) ListItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartLine, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.price, ci.created_at, ci.updated_at,
		       p.id, p.name, p.slug, p.description, p.short_description, p.price, p.sale_price,
		       p.stock_quantity, p.category_id, p.image_url, p.is_active, p.is_featured,
		       p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id AND p.deleted_at IS NULL
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	lines := []domain.CartLine{}
	for rows.Next() {
		var line domain.CartLine
		err := rows.Scan(
			&line.Item.ID,
			&line.Item.CartID,
			&line.Item.ProductID,
			&line.Item.Quantity,
			&line.Item.Price,
			&line.Item.CreatedAt,
			&line.Item.UpdatedAt,
			&line.Product.ID,
			&line.Product.Name,
			&line.Product.Slug,
			&line.Product.Description,
			&line.Product.ShortDescription,
			&line.Product.Price,
			&line.Product.SalePrice,
			&line.Product.StockQuantity,
			&line.Product.CategoryID,
			&line.Product.ImageURL,
			&line.Product.IsActive,
			&line.Product.IsFeatured,
			&line.Product.CreatedAt,
			&line.Product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return lines, nil
}
