package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fathursyh/ecommerce-api/internal/domain"
	"github.com/fathursyh/ecommerce-api/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrMergeRequiresAuth = errors.New("cart merge requires an authenticated user")
)

// SyncLine is one (product, quantity) pair in a bulk cart sync payload.
type SyncLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// CartService is the cart mutation engine. Every mutation runs inside a
// single database transaction and returns the refreshed cart aggregate, or a
// typed failure detected before any write.
type CartService interface {
	Get(ctx context.Context, identity domain.Identity) (*domain.CartAggregate, error)
	AddItem(ctx context.Context, identity domain.Identity, productID uuid.UUID, quantity int) (*domain.CartAggregate, error)
	UpdateItem(ctx context.Context, identity domain.Identity, itemID uuid.UUID, quantity int) (*domain.CartAggregate, error)
	RemoveItem(ctx context.Context, identity domain.Identity, itemID uuid.UUID) (*domain.CartAggregate, error)
	Clear(ctx context.Context, identity domain.Identity) (*domain.CartAggregate, error)
	Sync(ctx context.Context, identity domain.Identity, lines []SyncLine) (*domain.CartAggregate, error)
	Merge(ctx context.Context, identity domain.Identity, guestSessionID string) (*domain.CartAggregate, error)
}

type cartService struct {
	tx repository.TxManager
}

// NewCartService creates a new instance of CartService
func NewCartService(tx repository.TxManager) CartService {
	return &cartService{tx: tx}
}

// loadAggregate builds the response payload for a cart.
func loadAggregate(ctx context.Context, carts repository.CartRepository, cart *domain.Cart) (*domain.CartAggregate, error) {
	lines, err := carts.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	return &domain.CartAggregate{Cart: *cart, Lines: lines}, nil
}

// Get resolves the identity's cart, creating it lazily on first read.
func (s *cartService) Get(ctx context.Context, identity domain.Identity) (*domain.CartAggregate, error) {
	var agg *domain.CartAggregate
	err := s.tx.WithinTx(ctx, func(carts repository.CartRepository, _ repository.ProductRepository) error {
		cart, err := carts.FindOrCreate(ctx, identity)
		if err != nil {
			return err
		}
		agg, err = loadAggregate(ctx, carts, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// AddItem adds a quantity of a product to the cart. When the cart already
// holds a line for the product, the stock check runs against the cumulative
// new total, not just the delta, and the snapshot price is refreshed.
func (s *cartService) AddItem(ctx context.Context, identity domain.Identity, productID uuid.UUID, quantity int) (*domain.CartAggregate, error) {
	var agg *domain.CartAggregate
	err := s.tx.WithinTx(ctx, func(carts repository.CartRepository, products repository.ProductRepository) error {
		cart, err := carts.FindOrCreate(ctx, identity)
		if err != nil {
			return err
		}

		product, err := products.FindByID(ctx, productID)
		if err != nil {
			return err
		}

		item, err := carts.FindItem(ctx, cart.ID, product.ID)
		switch {
		case err == nil:
			newQuantity := item.Quantity + quantity
			if stockErr := checkStock(product, newQuantity); stockErr != nil {
				current := item.Quantity
				stockErr.CurrentQuantity = &current
				return stockErr
			}
			if err := carts.UpdateItem(ctx, item.ID, newQuantity, product.EffectivePrice()); err != nil {
				return err
			}
		case errors.Is(err, repository.ErrCartItemNotFound):
			if stockErr := checkStock(product, quantity); stockErr != nil {
				return stockErr
			}
			now := time.Now()
			if err := carts.CreateItem(ctx, &domain.CartItem{
				ID:        uuid.New(),
				CartID:    cart.ID,
				ProductID: product.ID,
				Quantity:  quantity,
				Price:     product.EffectivePrice(),
				CreatedAt: now,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
		default:
			return err
		}

		agg, err = loadAggregate(ctx, carts, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// UpdateItem overwrites a line item's quantity. An item id that does not
// belong to the resolved cart reports not-found, indistinguishable from a
// missing item, so callers cannot probe other carts.
func (s *cartService) UpdateItem(ctx context.Context, identity domain.Identity, itemID uuid.UUID, quantity int) (*domain.CartAggregate, error) {
	var agg *domain.CartAggregate
	err := s.tx.WithinTx(ctx, func(carts repository.CartRepository, products repository.ProductRepository) error {
		cart, err := carts.FindOrCreate(ctx, identity)
		if err != nil {
			return err
		}

		item, err := s.ownedItem(ctx, carts, cart, itemID)
		if err != nil {
			return err
		}

		product, err := products.FindByID(ctx, item.ProductID)
		if err != nil {
			return err
		}

		if stockErr := checkStock(product, quantity); stockErr != nil {
			return stockErr
		}

		if err := carts.UpdateItem(ctx, item.ID, quantity, product.EffectivePrice()); err != nil {
			return err
		}

		agg, err = loadAggregate(ctx, carts, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// RemoveItem deletes a line item after the same ownership check as UpdateItem.
func (s *cartService) RemoveItem(ctx context.Context, identity domain.Identity, itemID uuid.UUID) (*domain.CartAggregate, error) {
	var agg *domain.CartAggregate
	err := s.tx.WithinTx(ctx, func(carts repository.CartRepository, _ repository.ProductRepository) error {
		cart, err := carts.FindOrCreate(ctx, identity)
		if err != nil {
			return err
		}

		item, err := s.ownedItem(ctx, carts, cart, itemID)
		if err != nil {
			return err
		}

		if err := carts.DeleteItem(ctx, item.ID); err != nil {
			return err
		}

		agg, err = loadAggregate(ctx, carts, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// Clear deletes every line item; the cart row itself persists.
func (s *cartService) Clear(ctx context.Context, identity domain.Identity) (*domain.CartAggregate, error) {
	var agg *domain.CartAggregate
	err := s.tx.WithinTx(ctx, func(carts repository.CartRepository, _ repository.ProductRepository) error {
		cart, err := carts.FindOrCreate(ctx, identity)
		if err != nil {
			return err
		}

		if err := carts.DeleteItems(ctx, cart.ID); err != nil {
			return err
		}

		agg, err = loadAggregate(ctx, carts, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// Sync replaces the entire cart contents with the given lines, in input
// order. Lines referencing an unknown or out-of-stock product are skipped
// silently; quantities are clamped to available stock. Duplicate product ids
// in the payload produce duplicate rows.
func (s *cartService) Sync(ctx context.Context, identity domain.Identity, lines []SyncLine) (*domain.CartAggregate, error) {
	var agg *domain.CartAggregate
	err := s.tx.WithinTx(ctx, func(carts repository.CartRepository, products repository.ProductRepository) error {
		cart, err := carts.FindOrCreate(ctx, identity)
		if err != nil {
			return err
		}

		if err := carts.DeleteItems(ctx, cart.ID); err != nil {
			return err
		}

		now := time.Now()
		for _, line := range lines {
			product, err := products.FindByID(ctx, line.ProductID)
			if errors.Is(err, repository.ErrProductNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if !product.InStock() || line.Quantity < 1 {
				continue
			}

			quantity := line.Quantity
			if quantity > product.StockQuantity {
				quantity = product.StockQuantity
			}

			if err := carts.CreateItem(ctx, &domain.CartItem{
				ID:        uuid.New(),
				CartID:    cart.ID,
				ProductID: product.ID,
				Quantity:  quantity,
				Price:     product.EffectivePrice(),
				CreatedAt: now,
				UpdatedAt: now,
			}); err != nil {
				return err
			}
		}

		agg, err = loadAggregate(ctx, carts, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// Merge consolidates a guest cart into the authenticated user's cart and
// deletes the guest cart. An absent or empty guest cart is a no-op success:
// the user's own cart is returned unchanged.
func (s *cartService) Merge(ctx context.Context, identity domain.Identity, guestSessionID string) (*domain.CartAggregate, error) {
	if !identity.IsAuthenticated() {
		return nil, ErrMergeRequiresAuth
	}

	var agg *domain.CartAggregate
	err := s.tx.WithinTx(ctx, func(carts repository.CartRepository, products repository.ProductRepository) error {
		var guestLines []domain.CartLine

		guestCart, err := carts.FindBySession(ctx, guestSessionID)
		switch {
		case errors.Is(err, repository.ErrCartNotFound):
			// Nothing to merge.
		case err != nil:
			return err
		default:
			guestLines, err = carts.ListItems(ctx, guestCart.ID)
			if err != nil {
				return err
			}
		}

		userCart, err := carts.FindOrCreate(ctx, identity)
		if err != nil {
			return err
		}

		if len(guestLines) == 0 {
			agg, err = loadAggregate(ctx, carts, userCart)
			return err
		}

		now := time.Now()
		for _, guestLine := range guestLines {
			product := guestLine.Product

			userItem, err := carts.FindItem(ctx, userCart.ID, guestLine.Item.ProductID)
			switch {
			case err == nil:
				newQuantity := userItem.Quantity + guestLine.Item.Quantity
				if newQuantity > product.StockQuantity {
					newQuantity = product.StockQuantity
				}
				if newQuantity < 1 {
					// Stock dropped to zero since the items were added; a
					// zero-quantity line must not be stored.
					if err := carts.DeleteItem(ctx, userItem.ID); err != nil {
						return err
					}
					continue
				}
				if err := carts.UpdateItem(ctx, userItem.ID, newQuantity, product.EffectivePrice()); err != nil {
					return err
				}
			case errors.Is(err, repository.ErrCartItemNotFound):
				quantity := guestLine.Item.Quantity
				if quantity > product.StockQuantity {
					quantity = product.StockQuantity
				}
				if quantity < 1 {
					continue
				}
				if err := carts.CreateItem(ctx, &domain.CartItem{
					ID:        uuid.New(),
					CartID:    userCart.ID,
					ProductID: guestLine.Item.ProductID,
					Quantity:  quantity,
					Price:     product.EffectivePrice(),
					CreatedAt: now,
					UpdatedAt: now,
				}); err != nil {
					return err
				}
			default:
				return err
			}
		}

		if err := carts.DeleteItems(ctx, guestCart.ID); err != nil {
			return err
		}
		if err := carts.Delete(ctx, guestCart.ID); err != nil {
			return err
		}

		agg, err = loadAggregate(ctx, carts, userCart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// ownedItem resolves an item id and verifies it belongs to the cart. A
// mismatch reports ErrCartItemNotFound rather than a permission error.
func (s *cartService) ownedItem(ctx context.Context, carts repository.CartRepository, cart *domain.Cart, itemID uuid.UUID) (*domain.CartItem, error) {
	item, err := carts.FindItemByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrCartItemNotFound) {
			return nil, ErrCartItemNotFound
		}
		return nil, err
	}
	if item.CartID != cart.ID {
		return nil, ErrCartItemNotFound
	}
	return item, nil
}
