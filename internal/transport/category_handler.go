package transport

import (
	"errors"
	"net/http"

	"github.com/fathursyh/ecommerce-api/internal/domain"
	"github.com/fathursyh/ecommerce-api/internal/middleware"
	"github.com/fathursyh/ecommerce-api/internal/repository"
	"github.com/fathursyh/ecommerce-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CategoryRequest represents the admin create/update payload
type CategoryRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Slug        string  `json:"slug" validate:"omitempty,max=255"`
	Description string  `json:"description"`
	ParentID    *string `json:"parent_id" validate:"omitempty,uuid"`
	ImageURL    string  `json:"image_url"`
	IsActive    bool    `json:"is_active"`
	SortOrder   int     `json:"sort_order"`
}

// CategoryResponse represents shaped category data
type CategoryResponse struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	Description string             `json:"description"`
	ParentID    *string            `json:"parent_id"`
	ImageURL    string             `json:"image_url"`
	IsActive    bool               `json:"is_active"`
	SortOrder   int                `json:"sort_order"`
	Children    []CategoryResponse `json:"children,omitempty"`
}

// CategoryHandler handles HTTP requests for catalog categories
type CategoryHandler struct {
	categoryService service.CategoryService
	logger          *zap.Logger
}

// NewCategoryHandler creates a new CategoryHandler
func NewCategoryHandler(categoryService service.CategoryService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
		logger:          logger,
	}
}

// RegisterRoutes registers all category routes
func (h *CategoryHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/v1/categories", func(r chi.Router) {
		// Public routes
		r.Get("/", h.List)
		r.Get("/tree", h.Tree)
		r.Get("/{categoryID}", h.Get)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(adminMiddleware)
			r.Post("/", h.Create)
			r.Put("/{categoryID}", h.Update)
			r.Delete("/{categoryID}", h.Delete)
		})
	})
}

// List handles the flat category listing
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := repository.CategoryFilter{
		Search:   query.Get("search"),
		RootOnly: query.Get("root_only") == "true",
	}
	if raw := query.Get("is_active"); raw != "" {
		value := raw == "true" || raw == "1"
		filter.IsActive = &value
	}
	if raw := query.Get("parent_id"); raw != "" {
		parentID, err := uuid.Parse(raw)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid parent_id")
			return
		}
		filter.ParentID = &parentID
	}

	categories, err := h.categoryService.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list categories", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list categories")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeCategories(categories))
}

// Tree handles the nested category listing
func (h *CategoryHandler) Tree(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categoryService.Tree(r.Context())
	if err != nil {
		h.logger.Error("Failed to build category tree", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to build category tree")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeCategories(categories))
}

// Get handles retrieving a single category
func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uuid.Parse(chi.URLParam(r, "categoryID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	category, err := h.categoryService.Get(r.Context(), categoryID)
	if err != nil {
		h.respondCategoryError(w, "get category", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeCategory(category))
}

// Create handles admin category creation
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeCategory(w, r)
	if !ok {
		return
	}

	category, err := h.categoryService.Create(r.Context(), input)
	if err != nil {
		h.respondCategoryError(w, "create category", err)
		return
	}

	h.logger.Info("Category created", zap.String("category_id", category.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, shapeCategory(category))
}

// Update handles admin category updates
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uuid.Parse(chi.URLParam(r, "categoryID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	input, ok := h.decodeCategory(w, r)
	if !ok {
		return
	}

	category, err := h.categoryService.Update(r.Context(), categoryID, input)
	if err != nil {
		h.respondCategoryError(w, "update category", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeCategory(category))
}

// Delete handles admin category deletion
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	categoryID, err := uuid.Parse(chi.URLParam(r, "categoryID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
		return
	}

	if err := h.categoryService.Delete(r.Context(), categoryID); err != nil {
		h.respondCategoryError(w, "delete category", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "category deleted"})
}

func (h *CategoryHandler) decodeCategory(w http.ResponseWriter, r *http.Request) (service.CategoryInput, bool) {
	var req CategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Category request validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return service.CategoryInput{}, false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return service.CategoryInput{}, false
	}

	input := service.CategoryInput{
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		IsActive:    req.IsActive,
		SortOrder:   req.SortOrder,
	}
	if req.ParentID != nil {
		parentID, err := uuid.Parse(*req.ParentID)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid parent id")
			return service.CategoryInput{}, false
		}
		input.ParentID = &parentID
	}

	return input, true
}

func (h *CategoryHandler) respondCategoryError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrCategoryNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "category not found")
	case errors.Is(err, repository.ErrCategorySlugExists):
		middleware.RespondWithError(w, http.StatusConflict, "category with this slug already exists")
	case errors.Is(err, repository.ErrCategoryHasProducts):
		middleware.RespondWithError(w, http.StatusConflict, "category still has products")
	default:
		h.logger.Error("Category operation failed", zap.String("op", op), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

func shapeCategory(category *domain.Category) CategoryResponse {
	resp := CategoryResponse{
		ID:          category.ID.String(),
		Name:        category.Name,
		Slug:        category.Slug,
		Description: category.Description,
		ImageURL:    category.ImageURL,
		IsActive:    category.IsActive,
		SortOrder:   category.SortOrder,
	}
	if category.ParentID != nil {
		parentID := category.ParentID.String()
		resp.ParentID = &parentID
	}
	for _, child := range category.Children {
		resp.Children = append(resp.Children, shapeCategory(child))
	}
	return resp
}

func shapeCategories(categories []*domain.Category) []CategoryResponse {
	shaped := make([]CategoryResponse, 0, len(categories))
	for _, category := range categories {
		shaped = append(shaped, shapeCategory(category))
	}
	return shaped
}
