// Package handler содержит HTTP-обработчики API витрины.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/assistant"
	"github.com/mmeshcher/storefront/internal/content"
	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/payment"
	"github.com/mmeshcher/storefront/internal/ratelimit"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/service"
	"github.com/mmeshcher/storefront/internal/tracking"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error

	RegisterUser(ctx context.Context, email, name, password string) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context, page, limit int) ([]model.User, int, error)
	UpdateUserRole(ctx context.Context, id int64, role model.Role) error

	ListProducts(ctx context.Context, f model.ProductFilter) (*service.ProductPage, error)
	GetProduct(ctx context.Context, id int64, includeInactive bool) (*model.Product, error)
	ListReviews(ctx context.Context, productID int64) ([]model.Review, error)
	AddReview(ctx context.Context, userID, productID int64, rating int, comment string) (*model.Review, error)
	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	GetCart(ctx context.Context, userID int64) (*service.CartSummary, error)
	AddToCart(ctx context.Context, userID, productID int64, variant string, qty int) (*service.CartSummary, error)
	UpdateCartItem(ctx context.Context, userID, productID int64, variant string, qty int) (*service.CartSummary, error)
	RemoveCartItem(ctx context.Context, userID, productID int64, variant string) (*service.CartSummary, error)
	ClearCart(ctx context.Context, userID int64) (*service.CartSummary, error)
	ApplyCoupon(ctx context.Context, userID int64, code string) (*service.CartSummary, error)
	RemoveCoupon(ctx context.Context, userID int64) (*service.CartSummary, error)

	ValidateCoupon(ctx context.Context, userID int64, code string, subtotal int64) (*service.CouponQuote, error)
	ListCoupons(ctx context.Context) ([]model.Coupon, error)
	CreateCoupon(ctx context.Context, c model.Coupon) (*model.Coupon, error)
	UpdateCoupon(ctx context.Context, c model.Coupon) (*model.Coupon, error)
	DeleteCoupon(ctx context.Context, id int64) error

	CreateCartCheckout(ctx context.Context, userID int64) (*payment.Session, error)
	CreateSingleCheckout(ctx context.Context, userID int64, req service.SingleCheckout) (*payment.Session, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error

	ListUserOrders(ctx context.Context, userID int64) ([]model.Order, error)
	GetUserOrder(ctx context.Context, userID, orderID int64) (*model.Order, error)
	GetOrderBySession(ctx context.Context, userID int64, sessionID string) (*model.Order, error)
	GetOrderTracking(ctx context.Context, userID, orderID int64) (*tracking.View, error)
	TrackPublic(ctx context.Context, trackingNumber string) (*tracking.PublicView, error)
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, int, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus, location, note string) (*model.Order, error)
	UpdateOrderTracking(ctx context.Context, id int64, in service.TrackingInput) (*model.Order, error)
	Stats(ctx context.Context) (model.StoreStats, error)

	Settings() model.StoreSettings
	UpdateSettings(ctx context.Context, next model.StoreSettings) (model.StoreSettings, error)
}

// Assistant определяет контракт помощника покупателя.
type Assistant interface {
	Enabled() bool
	Chat(ctx context.Context, userID int64, message string, history []assistant.Message) (*assistant.Answer, error)
}

// Handler реализует HTTP-обработчики API витрины.
type Handler struct {
	service        Service
	assistant      Assistant
	content        content.Store
	limiter        ratelimit.Limiter
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// Нулевой limiter заменяется ограничителем, пропускающим все запросы.
func NewHandler(
	s Service,
	a Assistant,
	store content.Store,
	limiter ratelimit.Limiter,
	logger *zap.Logger,
	auth *middleware.AuthMiddleware,
) *Handler {
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	if store == nil {
		store = content.NewMemoryStore()
	}
	return &Handler{
		service:        s,
		assistant:      a,
		content:        store,
		limiter:        limiter,
		logger:         logger,
		authMiddleware: auth,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// writeServiceError переводит ошибку бизнес-логики в HTTP-ответ.
// Неизвестные ошибки логируются, клиент получает только текст статуса.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, msg string, fields ...zap.Field) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	case errors.Is(err, repository.ErrUserExists),
		errors.Is(err, repository.ErrCouponExists),
		errors.Is(err, repository.ErrTrackingNumberTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrCouponInvalid),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, content.ErrInvalidContent),
		errors.Is(err, assistant.ErrInvalidMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrMaintenance),
		errors.Is(err, assistant.ErrAssistantDisabled),
		errors.Is(err, assistant.ErrBusy):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func currentUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
	}
	return userID, ok
}

// currentRole читает роль пользователя из хранилища для повторной проверки прав администратора.
func (h *Handler) currentRole(ctx context.Context, userID int64) (model.Role, error) {
	u, err := h.service.GetUser(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		h.logger.Error("role lookup error", zap.Int64("userID", userID), zap.Error(err))
		return "", err
	}
	return u.Role, nil
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string) int {
	v, _ := strconv.Atoi(r.URL.Query().Get(name))
	return v
}
