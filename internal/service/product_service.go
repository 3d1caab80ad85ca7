package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fathursyh/ecommerce-api/internal/domain"
	"github.com/fathursyh/ecommerce-api/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const relatedProductLimit = 8

// ProductInput carries the writable fields of a product for admin CRUD.
type ProductInput struct {
	Name             string
	Slug             string
	Description      string
	ShortDescription string
	Price            decimal.Decimal
	SalePrice        *decimal.Decimal
	StockQuantity    int
	CategoryID       uuid.UUID
	ImageURL         string
	IsActive         bool
	IsFeatured       bool
}

// ProductService defines the interface for catalog product business logic
type ProductService interface {
	List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error)
	Featured(ctx context.Context, limit int) ([]*domain.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Product, error)
	Related(ctx context.Context, id uuid.UUID) ([]*domain.Product, error)
	Create(ctx context.Context, input ProductInput) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
	}
}

// List retrieves products matching the filter with a total count
func (s *productService) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, int, error) {
	return s.productRepo.List(ctx, filter)
}

// Featured retrieves active featured products
func (s *productService) Featured(ctx context.Context, limit int) ([]*domain.Product, error) {
	active := true
	featured := true
	products, _, err := s.productRepo.List(ctx, repository.ProductFilter{
		IsActive:   &active,
		IsFeatured: &featured,
		SortBy:     "created_at",
		SortOrder:  repository.SortOrderDesc,
		Page:       1,
		PageSize:   limit,
	})
	return products, err
}

// GetByID retrieves a product by ID
func (s *productService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return s.productRepo.FindByID(ctx, id)
}

// GetBySlug retrieves a product by slug
func (s *productService) GetBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return s.productRepo.FindBySlug(ctx, slug)
}

// Related retrieves active products from the same category
func (s *productService) Related(ctx context.Context, id uuid.UUID) ([]*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.productRepo.FindRelated(ctx, product, relatedProductLimit)
}

// Create validates the category reference and inserts a new product,
// generating a slug from the name when none is supplied
func (s *productService) Create(ctx context.Context, input ProductInput) (*domain.Product, error) {
	if _, err := s.categoryRepo.FindByID(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	now := time.Now()
	product := &domain.Product{
		ID:               uuid.New(),
		Name:             input.Name,
		Slug:             input.Slug,
		Description:      input.Description,
		ShortDescription: input.ShortDescription,
		Price:            input.Price,
		StockQuantity:    input.StockQuantity,
		CategoryID:       input.CategoryID,
		ImageURL:         input.ImageURL,
		IsActive:         input.IsActive,
		IsFeatured:       input.IsFeatured,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if product.Slug == "" {
		product.Slug = slugify(input.Name)
	}
	if input.SalePrice != nil {
		product.SalePrice = decimal.NullDecimal{Decimal: *input.SalePrice, Valid: true}
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// Update overwrites an existing product's writable fields
func (s *productService) Update(ctx context.Context, id uuid.UUID, input ProductInput) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if product.CategoryID != input.CategoryID {
		if _, err := s.categoryRepo.FindByID(ctx, input.CategoryID); err != nil {
			return nil, err
		}
	}

	product.Name = input.Name
	product.Slug = input.Slug
	if product.Slug == "" {
		product.Slug = slugify(input.Name)
	}
	product.Description = input.Description
	product.ShortDescription = input.ShortDescription
	product.Price = input.Price
	product.SalePrice = decimal.NullDecimal{}
	if input.SalePrice != nil {
		product.SalePrice = decimal.NullDecimal{Decimal: *input.SalePrice, Valid: true}
	}
	product.StockQuantity = input.StockQuantity
	product.CategoryID = input.CategoryID
	product.ImageURL = input.ImageURL
	product.IsActive = input.IsActive
	product.IsFeatured = input.IsFeatured
	product.UpdatedAt = time.Now()

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}

	return product, nil
}

// Delete soft-deletes a product
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}
