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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SessionHeader carries the guest session token. When a guest request
// arrives without one, the handler mints a token and echoes it back in the
// response so the client can persist it.
const SessionHeader = "X-Session-ID"

// AddCartItemRequest represents the add-to-cart request payload
type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// UpdateCartItemRequest represents the cart item update request payload
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// SyncCartRequest represents the bulk cart sync request payload
type SyncCartRequest struct {
	Items []SyncCartItem `json:"items" validate:"required,dive"`
}

// SyncCartItem is one line in a sync payload
type SyncCartItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// MergeCartRequest represents the guest-cart merge request payload
type MergeCartRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// CartItemResponse is one shaped cart line
type CartItemResponse struct {
	ID        string          `json:"id"`
	Product   ProductResponse `json:"product"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// CartResponse is the shaped cart aggregate returned by every cart endpoint
type CartResponse struct {
	ID         string             `json:"id"`
	UserID     *string            `json:"user_id"`
	SessionID  *string            `json:"session_id"`
	Items      []CartItemResponse `json:"items"`
	Total      decimal.Decimal    `json:"total"`
	ItemsCount int                `json:"items_count"`
}

// CartHandler handles HTTP requests for cart operations
type CartHandler struct {
	cartService service.CartService
	logger      *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(cartService service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		logger:      logger,
	}
}

// RegisterRoutes registers all cart routes. The optional-auth middleware
// lets the same endpoints serve guests and authenticated shoppers; merge
// alone requires authentication.
func (h *CartHandler) RegisterRoutes(r chi.Router, optionalAuth, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/", h.GetCart)
			r.Post("/items", h.AddItem)
			r.Put("/items/{itemID}", h.UpdateItem)
			r.Delete("/items/{itemID}", h.RemoveItem)
			r.Delete("/", h.Clear)
			r.Post("/sync", h.Sync)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/merge", h.Merge)
		})
	})
}

// identity resolves the request's cart identity. Guests without a session
// token get one minted here; the repository never invents a session.
func (h *CartHandler) identity(w http.ResponseWriter, r *http.Request) domain.Identity {
	if userIDStr, ok := middleware.GetUserID(r.Context()); ok {
		if userID, err := uuid.Parse(userIDStr); err == nil {
			return domain.UserIdentity(userID)
		}
	}

	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		sessionID = uuid.New().String()
		w.Header().Set(SessionHeader, sessionID)
	}
	return domain.GuestIdentity(sessionID)
}

// GetCart handles retrieving the cart for the current identity
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	identity := h.identity(w, r)

	cart, err := h.cartService.Get(r.Context(), identity)
	if err != nil {
		h.respondCartError(w, "get cart", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeCart(cart))
}

// AddItem handles adding a product to the cart
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	identity := h.identity(w, r)

	cart, err := h.cartService.AddItem(r.Context(), identity, productID, req.Quantity)
	if err != nil {
		h.respondCartError(w, "add cart item", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, shapeCart(cart))
}

// UpdateItem handles overwriting a cart item's quantity
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid cart item id")
		return
	}

	var req UpdateCartItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	identity := h.identity(w, r)

	cart, err := h.cartService.UpdateItem(r.Context(), identity, itemID, req.Quantity)
	if err != nil {
		h.respondCartError(w, "update cart item", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeCart(cart))
}

// RemoveItem handles deleting a single cart item
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid cart item id")
		return
	}

	identity := h.identity(w, r)

	cart, err := h.cartService.RemoveItem(r.Context(), identity, itemID)
	if err != nil {
		h.respondCartError(w, "remove cart item", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeCart(cart))
}

// Clear handles emptying the cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	identity := h.identity(w, r)

	cart, err := h.cartService.Clear(r.Context(), identity)
	if err != nil {
		h.respondCartError(w, "clear cart", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeCart(cart))
}

// Sync handles replacing the entire cart contents
func (h *CartHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncCartRequest
	if !h.decode(w, r, &req) {
		return
	}

	lines := make([]service.SyncLine, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
			return
		}
		lines = append(lines, service.SyncLine{ProductID: productID, Quantity: item.Quantity})
	}

	identity := h.identity(w, r)

	cart, err := h.cartService.Sync(r.Context(), identity, lines)
	if err != nil {
		h.respondCartError(w, "sync cart", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeCart(cart))
}

// Merge handles consolidating a guest cart into the authenticated user's cart
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req MergeCartRequest
	if !h.decode(w, r, &req) {
		return
	}

	userIDStr, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "user must be authenticated")
		return
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		middleware.RespondWithError(w, http.StatusUnauthorized, "user must be authenticated")
		return
	}

	cart, err := h.cartService.Merge(r.Context(), domain.UserIdentity(userID), req.SessionID)
	if err != nil {
		h.respondCartError(w, "merge carts", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, shapeCart(cart))
}

func (h *CartHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		h.logger.Debug("Cart request validation failed", zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respondCartError maps typed cart failures onto HTTP responses
func (h *CartHandler) respondCartError(w http.ResponseWriter, op string, err error) {
	var stockErr *service.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		details := map[string]interface{}{"available_stock": stockErr.Available}
		if stockErr.CurrentQuantity != nil {
			details["current_cart_quantity"] = *stockErr.CurrentQuantity
		}
		middleware.RespondWithErrorDetails(w, http.StatusUnprocessableEntity, "insufficient stock available", details)
	case errors.Is(err, service.ErrCartItemNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "cart item not found")
	case errors.Is(err, repository.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrMergeRequiresAuth):
		middleware.RespondWithError(w, http.StatusUnauthorized, "user must be authenticated")
	default:
		h.logger.Error("Cart operation failed", zap.String("op", op), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

func shapeCart(agg *domain.CartAggregate) CartResponse {
	items := make([]CartItemResponse, 0, len(agg.Lines))
	for i := range agg.Lines {
		line := &agg.Lines[i]
		items = append(items, CartItemResponse{
			ID:        line.Item.ID.String(),
			Product:   shapeProduct(&line.Product),
			Quantity:  line.Item.Quantity,
			UnitPrice: line.Item.Price,
			Subtotal:  line.Item.Subtotal(),
		})
	}

	resp := CartResponse{
		ID:         agg.Cart.ID.String(),
		SessionID:  agg.Cart.SessionID,
		Items:      items,
		Total:      agg.Total(),
		ItemsCount: agg.ItemCount(),
	}
	if agg.Cart.UserID != nil {
		userID := agg.Cart.UserID.String()
		resp.UserID = &userID
	}
	return resp
}
