package service

import (
	"context"
	"time"

	"github.com/fathursyh/ecommerce-api/internal/domain"
	"github.com/fathursyh/ecommerce-api/internal/repository"

	"github.com/google/uuid"
)

// CategoryInput carries the writable fields of a category for admin CRUD.
type CategoryInput struct {
	Name        string
	Slug        string
	Description string
	ParentID    *uuid.UUID
	ImageURL    string
	IsActive    bool
	SortOrder   int
}

// CategoryService defines the interface for category business logic
type CategoryService interface {
	List(ctx context.Context, filter repository.CategoryFilter) ([]*domain.Category, error)
	Tree(ctx context.Context) ([]*domain.Category, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	Create(ctx context.Context, input CategoryInput) (*domain.Category, error)
	Update(ctx context.Context, id uuid.UUID, input CategoryInput) (*domain.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
}

// NewCategoryService creates a new instance of CategoryService
func NewCategoryService(categoryRepo repository.CategoryRepository) CategoryService {
	return &categoryService{categoryRepo: categoryRepo}
}

// List retrieves categories matching the filter
func (s *categoryService) List(ctx context.Context, filter repository.CategoryFilter) ([]*domain.Category, error) {
	return s.categoryRepo.List(ctx, filter)
}

// Tree returns active root categories with their children nested beneath
// them, preserving sort order.
func (s *categoryService) Tree(ctx context.Context) ([]*domain.Category, error) {
	active := true
	categories, err := s.categoryRepo.List(ctx, repository.CategoryFilter{IsActive: &active})
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*domain.Category, len(categories))
	for _, category := range categories {
		byID[category.ID] = category
	}

	roots := []*domain.Category{}
	for _, category := range categories {
		if category.ParentID == nil {
			roots = append(roots, category)
			continue
		}
		if parent, ok := byID[*category.ParentID]; ok {
			parent.Children = append(parent.Children, category)
		} else {
			// Orphaned by an inactive parent; surface it at the root.
			roots = append(roots, category)
		}
	}

	return roots, nil
}

// Get retrieves a category by ID
func (s *categoryService) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return s.categoryRepo.FindByID(ctx, id)
}

// Create inserts a new category, generating a slug from the name when none is
// supplied
func (s *categoryService) Create(ctx context.Context, input CategoryInput) (*domain.Category, error) {
	if input.ParentID != nil {
		if _, err := s.categoryRepo.FindByID(ctx, *input.ParentID); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	category := &domain.Category{
		ID:          uuid.New(),
		Name:        input.Name,
		Slug:        input.Slug,
		Description: input.Description,
		ParentID:    input.ParentID,
		ImageURL:    input.ImageURL,
		IsActive:    input.IsActive,
		SortOrder:   input.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if category.Slug == "" {
		category.Slug = slugify(input.Name)
	}

	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

// Update overwrites an existing category's writable fields
func (s *categoryService) Update(ctx context.Context, id uuid.UUID, input CategoryInput) (*domain.Category, error) {
	category, err := s.categoryRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.ParentID != nil {
		if _, err := s.categoryRepo.FindByID(ctx, *input.ParentID); err != nil {
			return nil, err
		}
	}

	category.Name = input.Name
	category.Slug = input.Slug
	if category.Slug == "" {
		category.Slug = slugify(input.Name)
	}
	category.Description = input.Description
	category.ParentID = input.ParentID
	category.ImageURL = input.ImageURL
	category.IsActive = input.IsActive
	category.SortOrder = input.SortOrder
	category.UpdatedAt = time.Now()

	if err := s.categoryRepo.Update(ctx, category); err != nil {
		return nil, err
	}

	return category, nil
}

// Delete removes a category unless live products still reference it
func (s *categoryService) Delete(ctx context.Context, id uuid.UUID) error {
	count, err := s.categoryRepo.CountProducts(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return repository.ErrCategoryHasProducts
	}

	return s.categoryRepo.Delete(ctx, id)
}
