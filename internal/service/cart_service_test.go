package service

import (
	"context"
	"testing"
	"time"

	"github.com/fathursyh/ecommerce-api/internal/domain"
	"github.com/fathursyh/ecommerce-api/internal/repository"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCartRepository keeps carts and items in memory, preserving item
// insertion order the way the real repository's ORDER BY created_at does.
type fakeCartRepository struct {
	carts    map[uuid.UUID]*domain.Cart
	items    []*domain.CartItem
	products *fakeProductRepository
}

func newFakeCartRepository(products *fakeProductRepository) *fakeCartRepository {
	return &fakeCartRepository{
		carts:    make(map[uuid.UUID]*domain.Cart),
		products: products,
	}
}

func (r *fakeCartRepository) FindOrCreate(_ context.Context, identity domain.Identity) (*domain.Cart, error) {
	for _, cart := range r.carts {
		if identity.IsAuthenticated() {
			if cart.UserID != nil && *cart.UserID == *identity.UserID {
				return cart, nil
			}
		} else if cart.SessionID != nil && *cart.SessionID == identity.SessionID {
			return cart, nil
		}
	}

	now := time.Now()
	cart := &domain.Cart{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
	if identity.IsAuthenticated() {
		userID := *identity.UserID
		cart.UserID = &userID
	} else {
		sessionID := identity.SessionID
		cart.SessionID = &sessionID
	}
	r.carts[cart.ID] = cart
	return cart, nil
}

func (r *fakeCartRepository) FindBySession(_ context.Context, sessionID string) (*domain.Cart, error) {
	for _, cart := range r.carts {
		if cart.SessionID != nil && *cart.SessionID == sessionID {
			return cart, nil
		}
	}
	return nil, repository.ErrCartNotFound
}

func (r *fakeCartRepository) Delete(_ context.Context, cartID uuid.UUID) error {
	if _, ok := r.carts[cartID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(r.carts, cartID)
	kept := r.items[:0]
	for _, item := range r.items {
		if item.CartID != cartID {
			kept = append(kept, item)
		}
	}
	r.items = kept
	return nil
}

func (r *fakeCartRepository) FindItem(_ context.Context, cartID, productID uuid.UUID) (*domain.CartItem, error) {
	for _, item := range r.items {
		if item.CartID == cartID && item.ProductID == productID {
			return item, nil
		}
	}
	return nil, repository.ErrCartItemNotFound
}

func (r *fakeCartRepository) FindItemByID(_ context.Context, itemID uuid.UUID) (*domain.CartItem, error) {
	for _, item := range r.items {
		if item.ID == itemID {
			return item, nil
		}
	}
	return nil, repository.ErrCartItemNotFound
}

func (r *fakeCartRepository) CreateItem(_ context.Context, item *domain.CartItem) error {
	stored := *item
	r.items = append(r.items, &stored)
	return nil
}

func (r *fakeCartRepository) UpdateItem(_ context.Context, itemID uuid.UUID, quantity int, price decimal.Decimal) error {
	for _, item := range r.items {
		if item.ID == itemID {
			item.Quantity = quantity
			item.Price = price
			item.UpdatedAt = time.Now()
			return nil
		}
	}
	return repository.ErrCartItemNotFound
}

func (r *fakeCartRepository) DeleteItem(_ context.Context, itemID uuid.UUID) error {
	for i, item := range r.items {
		if item.ID == itemID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return nil
		}
	}
	return repository.ErrCartItemNotFound
}

func (r *fakeCartRepository) DeleteItems(_ context.Context, cartID uuid.UUID) error {
	kept := r.items[:0]
	for _, item := range r.items {
		if item.CartID != cartID {
			kept = append(kept, item)
		}
	}
	r.items = kept
	return nil
}

func (r *fakeCartRepository) ListItems(_ context.Context, cartID uuid.UUID) ([]domain.CartLine, error) {
	lines := []domain.CartLine{}
	for _, item := range r.items {
		if item.CartID != cartID {
			continue
		}
		product, ok := r.products.byID[item.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, domain.CartLine{Item: *item, Product: *product})
	}
	return lines, nil
}

type fakeProductRepository struct {
	byID map[uuid.UUID]*domain.Product
}

func newFakeProductRepository(products ...*domain.Product) *fakeProductRepository {
	repo := &fakeProductRepository{byID: make(map[uuid.UUID]*domain.Product)}
	for _, product := range products {
		repo.byID[product.ID] = product
	}
	return repo
}

func (r *fakeProductRepository) Create(_ context.Context, product *domain.Product) error {
	r.byID[product.ID] = product
	return nil
}

func (r *fakeProductRepository) Update(_ context.Context, product *domain.Product) error {
	r.byID[product.ID] = product
	return nil
}

func (r *fakeProductRepository) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.byID, id)
	return nil
}

func (r *fakeProductRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	product, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

func (r *fakeProductRepository) FindBySlug(_ context.Context, slug string) (*domain.Product, error) {
	for _, product := range r.byID {
		if product.Slug == slug {
			return product, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (r *fakeProductRepository) FindRelated(_ context.Context, _ *domain.Product, _ int) ([]*domain.Product, error) {
	return nil, nil
}

func (r *fakeProductRepository) List(_ context.Context, _ repository.ProductFilter) ([]*domain.Product, int, error) {
	return nil, 0, nil
}

// fakeTxManager hands the same in-memory repositories to every closure.
type fakeTxManager struct {
	carts    *fakeCartRepository
	products *fakeProductRepository
}

func (m *fakeTxManager) WithinTx(_ context.Context, fn repository.TxFn) error {
	return fn(m.carts, m.products)
}

func newCartFixture(products ...*domain.Product) (CartService, *fakeCartRepository, *fakeProductRepository) {
	productRepo := newFakeProductRepository(products...)
	cartRepo := newFakeCartRepository(productRepo)
	svc := NewCartService(&fakeTxManager{carts: cartRepo, products: productRepo})
	return svc, cartRepo, productRepo
}

func testProduct(stock int, price string) *domain.Product {
	return &domain.Product{
		ID:            uuid.New(),
		Name:          "Widget",
		Slug:          "widget-" + uuid.New().String(),
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	}
}

func TestCartGet_CreatesEmptyCartLazily(t *testing.T) {
	svc, _, _ := newCartFixture()
	ctx := context.Background()

	agg, err := svc.Get(ctx, domain.GuestIdentity("fresh-session"))
	require.NoError(t, err)

	assert.Empty(t, agg.Lines)
	assert.True(t, agg.Total().IsZero())
	assert.Equal(t, 0, agg.ItemCount())
	require.NotNil(t, agg.Cart.SessionID)
	assert.Equal(t, "fresh-session", *agg.Cart.SessionID)
}

func TestCartAddItem_NewLineSnapshotsEffectivePrice(t *testing.T) {
	product := testProduct(10, "25.00")
	product.SalePrice = decimal.NewNullDecimal(decimal.RequireFromString("19.50"))
	svc, _, _ := newCartFixture(product)
	ctx := context.Background()

	agg, err := svc.AddItem(ctx, domain.GuestIdentity("s1"), product.ID, 3)
	require.NoError(t, err)

	require.Len(t, agg.Lines, 1)
	assert.Equal(t, 3, agg.Lines[0].Item.Quantity)
	assert.True(t, agg.Lines[0].Item.Price.Equal(decimal.RequireFromString("19.50")),
		"line must snapshot the sale price, not the base price")
	assert.True(t, agg.Total().Equal(decimal.RequireFromString("58.50")))
}

func TestCartAddItem_AccumulatesExistingLine(t *testing.T) {
	product := testProduct(10, "5.00")
	svc, _, _ := newCartFixture(product)
	ctx := context.Background()
	identity := domain.GuestIdentity("s1")

	_, err := svc.AddItem(ctx, identity, product.ID, 2)
	require.NoError(t, err)

	agg, err := svc.AddItem(ctx, identity, product.ID, 3)
	require.NoError(t, err)

	require.Len(t, agg.Lines, 1, "repeat adds must fold into one line")
	assert.Equal(t, 5, agg.Lines[0].Item.Quantity)
}

func TestCartAddItem_CumulativeStockCheck(t *testing.T) {
	product := testProduct(10, "5.00")
	svc, _, _ := newCartFixture(product)
	ctx := context.Background()
	identity := domain.GuestIdentity("s1")

	_, err := svc.AddItem(ctx, identity, product.ID, 6)
	require.NoError(t, err)

	// 6 already held, 6 more would exceed the 10 in stock.
	_, err = svc.AddItem(ctx, identity, product.ID, 6)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 10, stockErr.Available)
	require.NotNil(t, stockErr.CurrentQuantity)
	assert.Equal(t, 6, *stockErr.CurrentQuantity)

	// The failed add must not have changed the cart.
	agg, err := svc.Get(ctx, identity)
	require.NoError(t, err)
	require.Len(t, agg.Lines, 1)
	assert.Equal(t, 6, agg.Lines[0].Item.Quantity)
}

func TestCartAddItem_UnknownProduct(t *testing.T) {
	svc, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, domain.GuestIdentity("s1"), uuid.New(), 1)
	assert.ErrorIs(t, err, repository.ErrProductNotFound)
}

func TestCartAddItem_ExceedsStockOnFirstAdd(t *testing.T) {
	product := testProduct(4, "5.00")
	svc, _, _ := newCartFixture(product)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, domain.GuestIdentity("s1"), product.ID, 5)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 4, stockErr.Available)
	assert.Nil(t, stockErr.CurrentQuantity, "no current quantity when the cart holds no line yet")
}

func TestCartUpdateItem_OverwritesQuantity(t *testing.T) {
	product := testProduct(10, "5.00")
	svc, _, _ := newCartFixture(product)
	ctx := context.Background()
	identity := domain.GuestIdentity("s1")

	agg, err := svc.AddItem(ctx, identity, product.ID, 2)
	require.NoError(t, err)
	itemID := agg.Lines[0].Item.ID

	agg, err = svc.UpdateItem(ctx, identity, itemID, 7)
	require.NoError(t, err)

	require.Len(t, agg.Lines, 1)
	assert.Equal(t, 7, agg.Lines[0].Item.Quantity, "update overwrites, it does not accumulate")
}

func TestCartUpdateItem_RejectsExcessQuantity(t *testing.T) {
	product := testProduct(5, "5.00")
	svc, _, _ := newCartFixture(product)
	ctx := context.Background()
	identity := domain.GuestIdentity("s1")

	agg, err := svc.AddItem(ctx, identity, product.ID, 2)
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, identity, agg.Lines[0].Item.ID, 6)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 5, stockErr.Available)
}

func TestCartOwnership_ForeignItemReportsNotFound(t *testing.T) {
	product := testProduct(10, "5.00")
	svc, _, _ := newCartFixture(product)
	ctx := context.Background()

	ownerAgg, err := svc.AddItem(ctx, domain.GuestIdentity("owner"), product.ID, 2)
	require.NoError(t, err)
	foreignItemID := ownerAgg.Lines[0].Item.ID

	_, err = svc.UpdateItem(ctx, domain.GuestIdentity("intruder"), foreignItemID, 1)
	assert.ErrorIs(t, err, ErrCartItemNotFound, "foreign items must be indistinguishable from missing ones")

	_, err = svc.RemoveItem(ctx, domain.GuestIdentity("intruder"), foreignItemID)
	assert.ErrorIs(t, err, ErrCartItemNotFound)

	// Owner's line survives the probing.
	agg, err := svc.Get(ctx, domain.GuestIdentity("owner"))
	require.NoError(t, err)
	require.Len(t, agg.Lines, 1)
	assert.Equal(t, 2, agg.Lines[0].Item.Quantity)
}

func TestCartRemoveItem(t *testing.T) {
	product := testProduct(10, "5.00")
	svc, _, _ := newCartFixture(product)
	ctx := context.Background()
	identity := domain.GuestIdentity("s1")

	agg, err := svc.AddItem(ctx, identity, product.ID, 2)
	require.NoError(t, err)

	agg, err = svc.RemoveItem(ctx, identity, agg.Lines[0].Item.ID)
	require.NoError(t, err)
	assert.Empty(t, agg.Lines)

	_, err = svc.RemoveItem(ctx, identity, uuid.New())
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestCartClear(t *testing.T) {
	productA := testProduct(10, "5.00")
	productB := testProduct(10, "3.00")
	svc, _, _ := newCartFixture(productA, productB)
	ctx := context.Background()
	identity := domain.GuestIdentity("s1")

	_, err := svc.AddItem(ctx, identity, productA.ID, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, identity, productB.ID, 1)
	require.NoError(t, err)

	agg, err := svc.Clear(ctx, identity)
	require.NoError(t, err)

	assert.Empty(t, agg.Lines)
	assert.True(t, agg.Total().IsZero())

	// The cart row itself survives a clear.
	again, err := svc.Get(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, agg.Cart.ID, again.Cart.ID)
}

func TestCartSync_ReplacesContents(t *testing.T) {
	productA := testProduct(10, "5.00")
	productB := testProduct(10, "3.00")
	svc, _, _ := newCartFixture(productA, productB)
	ctx := context.Background()
	identity := domain.GuestIdentity("s1")

	_, err := svc.AddItem(ctx, identity, productA.ID, 9)
	require.NoError(t, err)

	agg, err := svc.Sync(ctx, identity, []SyncLine{
		{ProductID: productB.ID, Quantity: 2},
	})
	require.NoError(t, err)

	require.Len(t, agg.Lines, 1, "sync replaces, it does not merge")
	assert.Equal(t, productB.ID, agg.Lines[0].Item.ProductID)
	assert.Equal(t, 2, agg.Lines[0].Item.Quantity)
}

func TestCartSync_SkipsUnknownAndOutOfStock(t *testing.T) {
	inStock := testProduct(10, "5.00")
	outOfStock := testProduct(0, "5.00")
	svc, _, _ := newCartFixture(inStock, outOfStock)
	ctx := context.Background()

	agg, err := svc.Sync(ctx, domain.GuestIdentity("s1"), []SyncLine{
		{ProductID: uuid.New(), Quantity: 2},
		{ProductID: outOfStock.ID, Quantity: 2},
		{ProductID: inStock.ID, Quantity: 2},
	})
	require.NoError(t, err, "unusable lines are skipped, not fatal")

	require.Len(t, agg.Lines, 1)
	assert.Equal(t, inStock.ID, agg.Lines[0].Item.ProductID)
}

func TestCartSync_ClampsToStock(t *testing.T) {
	product := testProduct(3, "5.00")
	svc, _, _ := newCartFixture(product)
	ctx := context.Background()

	agg, err := svc.Sync(ctx, domain.GuestIdentity("s1"), []SyncLine{
		{ProductID: product.ID, Quantity: 99},
	})
	require.NoError(t, err)

	require.Len(t, agg.Lines, 1)
	assert.Equal(t, 3, agg.Lines[0].Item.Quantity)
}

func TestCartSync_DuplicateLinesProduceDuplicateRows(t *testing.T) {
	product := testProduct(10, "5.00")
	svc, _, _ := newCartFixture(product)
	ctx := context.Background()

	agg, err := svc.Sync(ctx, domain.GuestIdentity("s1"), []SyncLine{
		{ProductID: product.ID, Quantity: 1},
		{ProductID: product.ID, Quantity: 2},
	})
	require.NoError(t, err)

	require.Len(t, agg.Lines, 2)
	assert.Equal(t, 1, agg.Lines[0].Item.Quantity)
	assert.Equal(t, 2, agg.Lines[1].Item.Quantity)
}

func TestCartMerge_RequiresAuthenticatedIdentity(t *testing.T) {
	svc, _, _ := newCartFixture()
	ctx := context.Background()

	_, err := svc.Merge(ctx, domain.GuestIdentity("guest"), "other-session")
	assert.ErrorIs(t, err, ErrMergeRequiresAuth)
}

func TestCartMerge_AbsentGuestCartIsNoOp(t *testing.T) {
	product := testProduct(10, "5.00")
	svc, _, _ := newCartFixture(product)
	ctx := context.Background()
	user := domain.UserIdentity(uuid.New())

	_, err := svc.AddItem(ctx, user, product.ID, 2)
	require.NoError(t, err)

	agg, err := svc.Merge(ctx, user, "never-existed")
	require.NoError(t, err)

	require.Len(t, agg.Lines, 1)
	assert.Equal(t, 2, agg.Lines[0].Item.Quantity)
}

func TestCartMerge_CombinesAndClampsQuantities(t *testing.T) {
	shared := testProduct(6, "5.00")
	guestOnly := testProduct(10, "3.00")
	svc, cartRepo, _ := newCartFixture(shared, guestOnly)
	ctx := context.Background()

	user := domain.UserIdentity(uuid.New())
	guest := domain.GuestIdentity("guest-session")

	_, err := svc.AddItem(ctx, user, shared.ID, 3)
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, guest, shared.ID, 5)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, guest, guestOnly.ID, 1)
	require.NoError(t, err)

	agg, err := svc.Merge(ctx, user, "guest-session")
	require.NoError(t, err)

	require.Len(t, agg.Lines, 2)
	byProduct := map[uuid.UUID]int{}
	for _, line := range agg.Lines {
		byProduct[line.Item.ProductID] = line.Item.Quantity
	}
	// 3 + 5 exceeds the 6 in stock, so the combined line clamps.
	assert.Equal(t, 6, byProduct[shared.ID])
	assert.Equal(t, 1, byProduct[guestOnly.ID])

	// The guest cart is gone after a merge.
	_, err = cartRepo.FindBySession(ctx, "guest-session")
	assert.ErrorIs(t, err, repository.ErrCartNotFound)
}

func TestCartMerge_ZeroStockDropsLine(t *testing.T) {
	product := testProduct(5, "5.00")
	svc, _, productRepo := newCartFixture(product)
	ctx := context.Background()

	user := domain.UserIdentity(uuid.New())
	guest := domain.GuestIdentity("guest-session")

	_, err := svc.AddItem(ctx, user, product.ID, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, guest, product.ID, 2)
	require.NoError(t, err)

	// Stock sold out between the adds and the merge.
	product.StockQuantity = 0
	require.NoError(t, productRepo.Update(ctx, product))

	agg, err := svc.Merge(ctx, user, "guest-session")
	require.NoError(t, err)

	assert.Empty(t, agg.Lines, "a clamp to zero must drop the line, never store quantity 0")
}

// A cart holds at most one line per product no matter how the adds and
// updates interleave.
func TestProperty_SingleLinePerProduct(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("repeat adds never split into multiple lines", prop.ForAll(
		func(quantities []int) bool {
			product := testProduct(1_000_000, "1.00")
			svc, _, _ := newCartFixture(product)
			ctx := context.Background()
			identity := domain.GuestIdentity("s1")

			total := 0
			for _, quantity := range quantities {
				agg, err := svc.AddItem(ctx, identity, product.ID, quantity)
				if err != nil {
					return false
				}
				total += quantity
				if len(agg.Lines) != 1 {
					return false
				}
				if agg.Lines[0].Item.Quantity != total {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, gen.IntRange(1, 50)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
