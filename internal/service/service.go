// Package service реализует бизнес-логику витрины.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/payment"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/settings"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCouponInvalid      = errors.New("coupon is not applicable")
	ErrInvalidStatus      = errors.New("invalid order status")
	ErrInvalidWebhook     = errors.New("invalid webhook")
	ErrMaintenance        = errors.New("store is in maintenance mode")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Ping(ctx context.Context) error
	Close() error

	CreateUser(ctx context.Context, email, name string, passwordHash []byte, role model.Role) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	ListUsers(ctx context.Context, page, limit int) ([]model.User, int, error)
	UpdateUserRole(ctx context.Context, id int64, role model.Role) error

	ListProducts(ctx context.Context, f model.ProductFilter) ([]model.Product, int, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error)
	CreateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	UpdateProduct(ctx context.Context, p model.Product) (*model.Product, error)
	DeactivateProduct(ctx context.Context, id int64) error
	ListReviews(ctx context.Context, productID int64) ([]model.Review, error)
	SaveReview(ctx context.Context, rv model.Review) (*model.Review, error)

	GetCart(ctx context.Context, userID int64) (*model.Cart, error)
	AddCartItem(ctx context.Context, cartID, productID int64, variant string, quantity int) error
	SetCartItemQuantity(ctx context.Context, cartID, productID int64, variant string, quantity int) error
	RemoveCartItem(ctx context.Context, cartID, productID int64, variant string) error
	ClearCart(ctx context.Context, cartID int64) error
	SetCartCoupon(ctx context.Context, cartID int64, code *string) error

	ListCoupons(ctx context.Context) ([]model.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error)
	CreateCoupon(ctx context.Context, c model.Coupon) (*model.Coupon, error)
	UpdateCoupon(ctx context.Context, c model.Coupon) (*model.Coupon, error)
	DeactivateCoupon(ctx context.Context, id int64) error
	CouponUsedByUser(ctx context.Context, couponID, userID int64) (bool, error)

	ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error)
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, int, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	GetOrderByTrackingNumber(ctx context.Context, trackingNumber string) (*model.Order, error)
	GetOrderBySession(ctx context.Context, sessionID string) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, ev model.TrackingEvent) error
	UpdateOrderTracking(ctx context.Context, id int64, u repository.TrackingUpdate) error
	Stats(ctx context.Context) (model.StoreStats, error)

	RecordPaymentEvent(ctx context.Context, ev model.PaymentEvent) (bool, error)
	ListPendingPaymentEvents(ctx context.Context, maxAttempts, limit int) ([]model.PaymentEvent, error)
	MarkPaymentEventFailed(ctx context.Context, sessionID, lastError string) error
	FulfillOrder(ctx context.Context, in repository.FulfillmentInput) (repository.FulfillmentResult, error)
	CancelPendingOrder(ctx context.Context, sessionID, reason string) (bool, error)

	GetSettings(ctx context.Context) (*model.StoreSettings, error)
	SaveSettings(ctx context.Context, s model.StoreSettings) error
}

// Options содержит параметры сервиса, не относящиеся к хранилищу.
type Options struct {
	// ClientURL: адрес клиентского приложения для ссылок возврата из оплаты.
	ClientURL string
	// Currency используется, если в настройках магазина валюта не задана.
	Currency string
	// AdminEmail: адрес, который при регистрации получает роль администратора.
	AdminEmail string
	// MaxFulfillmentAttempts ограничивает число повторных попыток выполнения заказа.
	MaxFulfillmentAttempts int
}

// Service содержит бизнес-логику витрины.
type Service struct {
	repo     Repository
	gateway  payment.Gateway
	settings *settings.Holder
	logger   *zap.Logger
	opts     Options

	now               func() time.Time
	newTrackingNumber func() string
}

// NewService создаёт новый сервис с указанным репозиторием и платёжным шлюзом.
func NewService(repo Repository, gateway payment.Gateway, holder *settings.Holder, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxFulfillmentAttempts <= 0 {
		opts.MaxFulfillmentAttempts = 10
	}
	return &Service{
		repo:              repo,
		gateway:           gateway,
		settings:          holder,
		logger:            logger,
		opts:              opts,
		now:               time.Now,
		newTrackingNumber: generateTrackingNumber,
	}
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

func generateTrackingNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "SF" + strings.ToUpper(id[:16])
}
