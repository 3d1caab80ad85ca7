package transport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fathursyh/ecommerce-api/internal/domain"
	"github.com/fathursyh/ecommerce-api/internal/middleware"
	"github.com/fathursyh/ecommerce-api/internal/repository"
	"github.com/fathursyh/ecommerce-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultFeaturedLimit = 12

// ProductRequest represents the admin create/update payload
type ProductRequest struct {
	Name             string  `json:"name" validate:"required,max=255"`
	Slug             string  `json:"slug" validate:"omitempty,max=255"`
	Description      string  `json:"description"`
	ShortDescription string  `json:"short_description" validate:"omitempty,max=500"`
	Price            string  `json:"price" validate:"required"`
	SalePrice        *string `json:"sale_price"`
	StockQuantity    int     `json:"stock_quantity" validate:"gte=0"`
	CategoryID       string  `json:"category_id" validate:"required,uuid"`
	ImageURL         string  `json:"image_url"`
	IsActive         bool    `json:"is_active"`
	IsFeatured       bool    `json:"is_featured"`
}

// ProductResponse represents shaped product data
type ProductResponse struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Slug             string              `json:"slug"`
	Description      string              `json:"description"`
	ShortDescription string              `json:"short_description"`
	Price            decimal.Decimal     `json:"price"`
	SalePrice        decimal.NullDecimal `json:"sale_price"`
	EffectivePrice   decimal.Decimal     `json:"effective_price"`
	StockQuantity    int                 `json:"stock_quantity"`
	InStock          bool                `json:"in_stock"`
	CategoryID       string              `json:"category_id"`
	ImageURL         string              `json:"image_url"`
	IsActive         bool                `json:"is_active"`
	IsFeatured       bool                `json:"is_featured"`
}

// ProductListResponse wraps a product page with pagination metadata
type ProductListResponse struct {
	Data     []ProductResponse `json:"data"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// ProductHandler handles HTTP requests for catalog products
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/v1/products", func(r chi.Router) {
		// Public routes
		r.Get("/", h.List)
		r.Get("/featured", h.Featured)
		r.Get("/{productID}", h.Get)
		r.Get("/{productID}/related", h.Related)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Use(adminMiddleware)
			r.Post("/", h.Create)
			r.Put("/{productID}", h.Update)
			r.Delete("/{productID}", h.Delete)
		})
	})
}

// List handles the filtered product listing
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProductFilter(r)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	products, total, err := h.productService.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Data:     shapeProducts(products),
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

// Featured handles the featured-products listing
func (h *ProductHandler) Featured(w http.ResponseWriter, r *http.Request) {
	limit := defaultFeaturedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	products, err := h.productService.Featured(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list featured products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list featured products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeProducts(products))
}

// Get handles retrieving a single product by id or slug
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	param := chi.URLParam(r, "productID")

	var product *domain.Product
	var err error
	if productID, parseErr := uuid.Parse(param); parseErr == nil {
		product, err = h.productService.GetByID(r.Context(), productID)
	} else {
		product, err = h.productService.GetBySlug(r.Context(), param)
	}

	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to get product", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeProduct(product))
}

// Related handles listing products related to one product
func (h *ProductHandler) Related(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	products, err := h.productService.Related(r.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			middleware.RespondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("Failed to list related products", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list related products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeProducts(products))
}

// Create handles admin product creation
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Create(r.Context(), input)
	if err != nil {
		h.respondProductError(w, "create product", err)
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, shapeProduct(product))
}

// Update handles admin product updates
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	input, ok := h.decodeProduct(w, r)
	if !ok {
		return
	}

	product, err := h.productService.Update(r.Context(), productID, input)
	if err != nil {
		h.respondProductError(w, "update product", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeProduct(product))
}

// Delete handles admin product deletion
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.productService.Delete(r.Context(), productID); err != nil {
		h.respondProductError(w, "delete product", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

func (h *ProductHandler) decodeProduct(w http.ResponseWriter, r *http.Request) (service.ProductInput, bool) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product request validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return service.ProductInput{}, false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return service.ProductInput{}, false
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid price")
		return service.ProductInput{}, false
	}

	var salePrice *decimal.Decimal
	if req.SalePrice != nil {
		parsed, err := decimal.NewFromString(*req.SalePrice)
		if err != nil || parsed.IsNegative() {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid sale price")
			return service.ProductInput{}, false
		}
		salePrice = &parsed
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid category id")
		return service.ProductInput{}, false
	}

	return service.ProductInput{
		Name:             req.Name,
		Slug:             req.Slug,
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		Price:            price,
		SalePrice:        salePrice,
		StockQuantity:    req.StockQuantity,
		CategoryID:       categoryID,
		ImageURL:         req.ImageURL,
		IsActive:         req.IsActive,
		IsFeatured:       req.IsFeatured,
	}, true
}

func (h *ProductHandler) respondProductError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, repository.ErrCategoryNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "category not found")
	case errors.Is(err, repository.ErrProductSlugExists):
		middleware.RespondWithError(w, http.StatusConflict, "product with this slug already exists")
	default:
		h.logger.Error("Product operation failed", zap.String("op", op), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

func shapeProduct(product *domain.Product) ProductResponse {
	return ProductResponse{
		ID:               product.ID.String(),
		Name:             product.Name,
		Slug:             product.Slug,
		Description:      product.Description,
		ShortDescription: product.ShortDescription,
		Price:            product.Price,
		SalePrice:        product.SalePrice,
		EffectivePrice:   product.EffectivePrice(),
		StockQuantity:    product.StockQuantity,
		InStock:          product.InStock(),
		CategoryID:       product.CategoryID.String(),
		ImageURL:         product.ImageURL,
		IsActive:         product.IsActive,
		IsFeatured:       product.IsFeatured,
	}
}

func shapeProducts(products []*domain.Product) []ProductResponse {
	shaped := make([]ProductResponse, 0, len(products))
	for _, product := range products {
		shaped = append(shaped, shapeProduct(product))
	}
	return shaped
}

func parseProductFilter(r *http.Request) (repository.ProductFilter, error) {
	query := r.URL.Query()
	filter := repository.ProductFilter{
		CategorySlug: query.Get("category_slug"),
		Search:       query.Get("search"),
		SortBy:       query.Get("sort_by"),
		SortOrder:    repository.SortOrder(query.Get("sort_order")),
		Page:         1,
		PageSize:     15,
	}

	if raw := query.Get("category_id"); raw != "" {
		categoryID, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid category_id")
		}
		filter.CategoryID = &categoryID
	}

	if raw := query.Get("is_active"); raw != "" {
		value := raw == "true" || raw == "1"
		filter.IsActive = &value
	}
	if raw := query.Get("is_featured"); raw != "" {
		value := raw == "true" || raw == "1"
		filter.IsFeatured = &value
	}
	if raw := query.Get("in_stock"); raw != "" {
		value := raw == "true" || raw == "1"
		filter.InStock = &value
	}
	if raw := query.Get("min_price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, errors.New("invalid min_price")
		}
		filter.MinPrice = &price
	}
	if raw := query.Get("max_price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, errors.New("invalid max_price")
		}
		filter.MaxPrice = &price
	}
	if raw := query.Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if raw := query.Get("per_page"); raw != "" {
		if pageSize, err := strconv.Atoi(raw); err == nil && pageSize > 0 && pageSize <= 100 {
			filter.PageSize = pageSize
		}
	}

	return filter, nil
}
