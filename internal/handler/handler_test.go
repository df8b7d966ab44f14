package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

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

type stubService struct {
	user    *model.User
	userErr error

	// role хранится как текущая роль пользователя, когда user не задан.
	role model.Role

	product *model.Product
	reviews []model.Review

	cart *service.CartSummary

	session     *payment.Session
	checkoutErr error
	webhookErr  error
	webhookSig  string

	order      *model.Order
	orderErr   error
	stats      model.StoreStats
	settings   model.StoreSettings
	settingErr error
	pingErr    error
}

func (s *stubService) RegisterUser(context.Context, string, string, string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) AuthenticateUser(context.Context, string, string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubService) GetUser(_ context.Context, id int64) (*model.User, error) {
	if s.user != nil || s.userErr != nil {
		return s.user, s.userErr
	}
	if s.role == "" {
		return nil, repository.ErrNotFound
	}
	return &model.User{ID: id, Role: s.role}, nil
}

func (s *stubService) ListUsers(context.Context, int, int) ([]model.User, int, error) {
	return nil, 0, nil
}

func (s *stubService) UpdateUserRole(context.Context, int64, model.Role) error { return nil }

func (s *stubService) ListProducts(_ context.Context, f model.ProductFilter) (*service.ProductPage, error) {
	var products []model.Product
	if s.product != nil {
		products = append(products, *s.product)
	}
	return &service.ProductPage{Products: products, Total: len(products), Page: 1, Limit: 20}, nil
}

func (s *stubService) GetProduct(context.Context, int64, bool) (*model.Product, error) {
	if s.product == nil {
		return nil, repository.ErrNotFound
	}
	return s.product, nil
}

func (s *stubService) ListReviews(context.Context, int64) ([]model.Review, error) {
	return s.reviews, nil
}

func (s *stubService) AddReview(_ context.Context, userID, productID int64, rating int, comment string) (*model.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating", service.ErrInvalidInput)
	}
	return &model.Review{ID: 1, ProductID: productID, UserID: userID, Rating: rating, Comment: comment}, nil
}

func (s *stubService) CreateProduct(_ context.Context, p model.Product) (*model.Product, error) {
	p.ID = 10
	return &p, nil
}

func (s *stubService) UpdateProduct(_ context.Context, p model.Product) (*model.Product, error) {
	return &p, nil
}

func (s *stubService) DeleteProduct(context.Context, int64) error { return nil }

func (s *stubService) cartSummary() (*service.CartSummary, error) {
	if s.cart == nil {
		return &service.CartSummary{Cart: &model.Cart{}}, nil
	}
	return s.cart, nil
}

func (s *stubService) GetCart(context.Context, int64) (*service.CartSummary, error) {
	return s.cartSummary()
}

func (s *stubService) AddToCart(context.Context, int64, int64, string, int) (*service.CartSummary, error) {
	return s.cartSummary()
}

func (s *stubService) UpdateCartItem(context.Context, int64, int64, string, int) (*service.CartSummary, error) {
	return s.cartSummary()
}

func (s *stubService) RemoveCartItem(context.Context, int64, int64, string) (*service.CartSummary, error) {
	return s.cartSummary()
}

func (s *stubService) ClearCart(context.Context, int64) (*service.CartSummary, error) {
	return s.cartSummary()
}

func (s *stubService) ApplyCoupon(context.Context, int64, string) (*service.CartSummary, error) {
	return s.cartSummary()
}

func (s *stubService) RemoveCoupon(context.Context, int64) (*service.CartSummary, error) {
	return s.cartSummary()
}

func (s *stubService) ValidateCoupon(_ context.Context, _ int64, code string, subtotal int64) (*service.CouponQuote, error) {
	if code != "SAVE10" {
		return nil, fmt.Errorf("%w: unknown code", service.ErrCouponInvalid)
	}
	c := &model.Coupon{Code: code, Type: model.CouponPercentage, Value: 10}
	return &service.CouponQuote{Coupon: c, Subtotal: subtotal, Discount: subtotal / 10}, nil
}

func (s *stubService) ListCoupons(context.Context) ([]model.Coupon, error) { return nil, nil }

func (s *stubService) CreateCoupon(context.Context, model.Coupon) (*model.Coupon, error) {
	return nil, repository.ErrCouponExists
}

func (s *stubService) UpdateCoupon(_ context.Context, c model.Coupon) (*model.Coupon, error) {
	return &c, nil
}

func (s *stubService) DeleteCoupon(context.Context, int64) error { return nil }

func (s *stubService) CreateCartCheckout(context.Context, int64) (*payment.Session, error) {
	return s.session, s.checkoutErr
}

func (s *stubService) CreateSingleCheckout(context.Context, int64, service.SingleCheckout) (*payment.Session, error) {
	return s.session, s.checkoutErr
}

func (s *stubService) HandleWebhook(_ context.Context, _ []byte, signature string) error {
	s.webhookSig = signature
	return s.webhookErr
}

func (s *stubService) ListUserOrders(context.Context, int64) ([]model.Order, error) {
	if s.order == nil {
		return nil, s.orderErr
	}
	return []model.Order{*s.order}, s.orderErr
}

func (s *stubService) GetUserOrder(context.Context, int64, int64) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubService) GetOrderBySession(context.Context, int64, string) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubService) GetOrderTracking(context.Context, int64, int64) (*tracking.View, error) {
	if s.orderErr != nil {
		return nil, s.orderErr
	}
	v := tracking.Build(*s.order)
	return &v, nil
}

func (s *stubService) TrackPublic(context.Context, string) (*tracking.PublicView, error) {
	if s.orderErr != nil {
		return nil, s.orderErr
	}
	v := tracking.Public(*s.order)
	return &v, nil
}

func (s *stubService) ListOrders(context.Context, model.OrderFilter) ([]model.Order, int, error) {
	return nil, 0, nil
}

func (s *stubService) GetOrder(context.Context, int64) (*model.Order, error) { return s.order, s.orderErr }

func (s *stubService) UpdateOrderStatus(_ context.Context, _ int64, status model.OrderStatus, _, _ string) (*model.Order, error) {
	if !status.Valid() {
		return nil, service.ErrInvalidStatus
	}
	o := *s.order
	o.Status = status
	return &o, nil
}

func (s *stubService) UpdateOrderTracking(context.Context, int64, service.TrackingInput) (*model.Order, error) {
	return nil, repository.ErrTrackingNumberTaken
}

func (s *stubService) Stats(context.Context) (model.StoreStats, error) { return s.stats, nil }

func (s *stubService) Settings() model.StoreSettings { return s.settings }

func (s *stubService) UpdateSettings(_ context.Context, next model.StoreSettings) (model.StoreSettings, error) {
	if s.settingErr != nil {
		return model.StoreSettings{}, s.settingErr
	}
	return next, nil
}

func (s *stubService) Ping(context.Context) error { return s.pingErr }

type stubAssistant struct {
	enabled bool
	answer  *assistant.Answer
	err     error
}

func (a *stubAssistant) Enabled() bool { return a.enabled }

func (a *stubAssistant) Chat(context.Context, int64, string, []assistant.Message) (*assistant.Answer, error) {
	return a.answer, a.err
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string) (bool, error) { return false, nil }

func newTestHandler(t *testing.T, svc Service, a Assistant, limiter ratelimit.Limiter) *Handler {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	auth := middleware.NewAuthMiddleware("test-secret")

	return NewHandler(svc, a, content.NewMemoryStore(), limiter, logger, auth)
}

func authCookie(t *testing.T, h *Handler, userID int64, role model.Role) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	if err := h.authMiddleware.SetAuthCookie(rec, userID, role); err != nil {
		t.Fatalf("set auth cookie: %v", err)
	}
	return rec.Result().Cookies()[0]
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.SetupRouter().ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func TestRegister_Success(t *testing.T) {
	svc := &stubService{user: &model.User{ID: 42, Email: "user@example.com", Role: model.RoleUser}}
	h := newTestHandler(t, svc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, registerRequest{
		Email:    "user@example.com",
		Password: "password1",
	}))
	rec := serve(h, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Fatalf("auth cookie was not set")
	}
}

func TestRegister_Conflict(t *testing.T) {
	svc := &stubService{userErr: repository.ErrUserExists}
	h := newTestHandler(t, svc, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, registerRequest{
		Email:    "user@example.com",
		Password: "password1",
	}))
	if rec := serve(h, req); rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "bad credentials", err: service.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{name: "storage failure", err: context.DeadlineExceeded, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{userErr: tt.err}, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", jsonBody(t, loginRequest{
				Email:    "user@example.com",
				Password: "password1",
			}))
			rec := serve(h, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusInternalServerError && strings.Contains(rec.Body.String(), "deadline") {
				t.Fatalf("internal error leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestMe_RequiresAuth(t *testing.T) {
	h := newTestHandler(t, &stubService{}, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestGetProduct_HidesFloorPrice(t *testing.T) {
	floor := int64(2500)
	svc := &stubService{
		product: &model.Product{ID: 5, Name: "Shirt", Price: 4000, FloorPrice: &floor, Active: true},
		reviews: []model.Review{{ID: 1, UserName: "Ann", Rating: 5}},
		role:    model.RoleAdmin,
	}
	h := newTestHandler(t, svc, nil, nil)

	for _, path := range []string{"/api/products/5", "/api/products"} {
		rec := serve(h, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want %d", path, rec.Code, http.StatusOK)
		}
		if strings.Contains(rec.Body.String(), "floor_price") || strings.Contains(rec.Body.String(), "2500") {
			t.Fatalf("%s: floor price leaked: %s", path, rec.Body.String())
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/products/5", nil)
	req.AddCookie(authCookie(t, h, 1, model.RoleAdmin))
	rec := serve(h, req)
	if !strings.Contains(rec.Body.String(), `"floor_price":2500`) {
		t.Fatalf("admin response misses floor price: %s", rec.Body.String())
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	h := newTestHandler(t, &stubService{}, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/products/9", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/api/products/abc", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCheckout(t *testing.T) {
	tests := []struct {
		name string
		svc  *stubService
		want int
	}{
		{
			name: "session created",
			svc:  &stubService{session: &payment.Session{ID: "cs_1", URL: "https://pay.example/cs_1"}},
			want: http.StatusOK,
		},
		{
			name: "insufficient stock",
			svc:  &stubService{checkoutErr: fmt.Errorf("%w: Shirt", service.ErrInsufficientStock)},
			want: http.StatusBadRequest,
		},
		{
			name: "empty cart",
			svc:  &stubService{checkoutErr: service.ErrEmptyCart},
			want: http.StatusBadRequest,
		},
		{
			name: "maintenance",
			svc:  &stubService{checkoutErr: service.ErrMaintenance},
			want: http.StatusServiceUnavailable,
		},
		{
			name: "provider failure",
			svc:  &stubService{checkoutErr: errors.New("stripe: connection reset")},
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.svc, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/payment/create-checkout-session", nil)
			req.AddCookie(authCookie(t, h, 42, model.RoleUser))
			rec := serve(h, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK {
				var resp checkoutResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.URL != "https://pay.example/cs_1" {
					t.Fatalf("url = %q", resp.URL)
				}
			}
			if tt.want == http.StatusInternalServerError && strings.Contains(rec.Body.String(), "stripe") {
				t.Fatalf("internal error leaked: %s", rec.Body.String())
			}
		})
	}
}

func TestSingleCheckout_RequiresProduct(t *testing.T) {
	h := newTestHandler(t, &stubService{}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/payment/create-single-checkout", strings.NewReader(`{"quantity":1}`))
	req.AddCookie(authCookie(t, h, 42, model.RoleUser))
	if rec := serve(h, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestWebhook(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "processed", want: http.StatusOK},
		{name: "bad signature", err: fmt.Errorf("%w: %w", service.ErrInvalidWebhook, payment.ErrInvalidSignature), want: http.StatusBadRequest},
		{name: "fulfillment failure is acknowledged", err: errors.New("fulfill order: deadlock"), want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{webhookErr: tt.err}
			h := newTestHandler(t, svc, nil, nil)

			req := httptest.NewRequest(http.MethodPost, "/api/payment/webhook", strings.NewReader(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			rec := serve(h, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if svc.webhookSig != "t=1,v1=abc" {
				t.Fatalf("signature = %q, want header value", svc.webhookSig)
			}
			if tt.want == http.StatusOK && !strings.Contains(rec.Body.String(), `"received":true`) {
				t.Fatalf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestTrackOrder_PublicViewHasNoPII(t *testing.T) {
	order := &model.Order{
		ID:     3,
		UserID: 42,
		Email:  "buyer@example.com",
		Status: model.OrderStatusShipped,
		Items:  []model.OrderItem{{ProductID: 5, Name: "Shirt", Price: 4000, Quantity: 2}},
		Shipping: &model.Shipping{
			Name:           "Jane Buyer",
			Line1:          "1 Main St",
			City:           "Springfield",
			PostalCode:     "12345",
			Country:        "US",
			Carrier:        "UPS",
			TrackingNumber: "SF0123456789ABCDEF",
		},
		CreatedAt: time.Now().Add(-72 * time.Hour),
	}
	h := newTestHandler(t, &stubService{order: order}, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/payment/track/SF0123456789ABCDEF", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	body := rec.Body.String()
	for _, secret := range []string{"buyer@example.com", "Jane Buyer", "1 Main St", "Springfield", "12345"} {
		if strings.Contains(body, secret) {
			t.Fatalf("public tracking leaked %q: %s", secret, body)
		}
	}
	if !strings.Contains(body, "SF0123456789ABCDEF") {
		t.Fatalf("tracking number missing: %s", body)
	}
}

func TestTrackOrder_NotFound(t *testing.T) {
	h := newTestHandler(t, &stubService{orderErr: repository.ErrNotFound}, nil, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/payment/track/NOPE", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetOrder_OtherUser(t *testing.T) {
	h := newTestHandler(t, &stubService{orderErr: repository.ErrNotFound}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/payment/orders/3", nil)
	req.AddCookie(authCookie(t, h, 42, model.RoleUser))
	if rec := serve(h, req); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestGetSessionOrder(t *testing.T) {
	order := &model.Order{ID: 3, UserID: 42, Status: model.OrderStatusPending, Subtotal: 8000, Discount: 800, ShippingAmount: 500, Total: 7700}

	tests := []struct {
		name string
		svc  *stubService
		want int
	}{
		{name: "found", svc: &stubService{order: order}, want: http.StatusOK},
		{name: "not processed yet", svc: &stubService{orderErr: repository.ErrNotFound}, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.svc, nil, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/payment/session/cs_test_1", nil)
			req.AddCookie(authCookie(t, h, 42, model.RoleUser))
			rec := serve(h, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want != http.StatusOK {
				return
			}

			var resp orderResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != model.OrderStatusPending || resp.ShippingAmount != 500 || resp.Total != 7700 {
				t.Fatalf("unexpected order: %+v", resp)
			}
		})
	}

	h := newTestHandler(t, &stubService{order: order}, nil, nil)
	if rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/payment/session/cs_test_1", nil)); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestCart_JSONResponse(t *testing.T) {
	code := "SAVE10"
	svc := &stubService{cart: &service.CartSummary{
		Cart:     &model.Cart{Items: []model.CartItem{{ProductID: 5, Name: "Shirt", Price: 4000, Quantity: 2}}, CouponCode: &code},
		Subtotal: 8000,
		Discount: 800,
		Shipping: 500,
		Tax:      576,
		Total:    8276,
	}}
	h := newTestHandler(t, svc, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.AddCookie(authCookie(t, h, 42, model.RoleUser))
	rec := serve(h, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q, want application/json", ct)
	}

	var resp cartResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 8276 || resp.Tax != 576 || len(resp.Items) != 1 || resp.CouponCode == nil || *resp.CouponCode != "SAVE10" {
		t.Fatalf("unexpected cart: %+v", resp)
	}
}

func TestValidateCoupon(t *testing.T) {
	h := newTestHandler(t, &stubService{}, nil, nil)
	cookie := authCookie(t, h, 42, model.RoleUser)

	req := httptest.NewRequest(http.MethodPost, "/api/coupons/validate", strings.NewReader(`{"code":"SAVE10","subtotal":5000}`))
	req.AddCookie(cookie)
	rec := serve(h, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var resp couponQuoteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Discount != 500 || resp.Total != 4500 {
		t.Fatalf("unexpected quote: %+v", resp)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/coupons/validate", strings.NewReader(`{"code":"BOGUS"}`))
	req.AddCookie(cookie)
	if rec := serve(h, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestChat(t *testing.T) {
	answer := &assistant.Answer{
		Message:  "Try this shirt",
		Products: []model.Product{{ID: 5, Name: "Shirt", Price: 4000, Active: true}},
		Tier:     assistant.TierDirect,
	}

	tests := []struct {
		name      string
		assistant *stubAssistant
		limiter   ratelimit.Limiter
		want      int
	}{
		{name: "answered", assistant: &stubAssistant{enabled: true, answer: answer}, want: http.StatusOK},
		{name: "disabled", assistant: &stubAssistant{}, want: http.StatusServiceUnavailable},
		{name: "rate limited", assistant: &stubAssistant{enabled: true, answer: answer}, limiter: denyLimiter{}, want: http.StatusTooManyRequests},
		{name: "provider busy", assistant: &stubAssistant{enabled: true, err: assistant.ErrBusy}, want: http.StatusServiceUnavailable},
		{name: "empty message", assistant: &stubAssistant{enabled: true, err: assistant.ErrInvalidMessage}, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{}, tt.assistant, tt.limiter)

			req := httptest.NewRequest(http.MethodPost, "/api/assistant/chat", strings.NewReader(`{"message":"a shirt?"}`))
			req.AddCookie(authCookie(t, h, 42, model.RoleUser))
			rec := serve(h, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK {
				var resp chatResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if resp.Tier != assistant.TierDirect.String() || len(resp.Products) != 1 {
					t.Fatalf("unexpected answer: %+v", resp)
				}
			}
		})
	}
}

func TestAdminRoutes(t *testing.T) {
	svc := &stubService{
		stats: model.StoreStats{Users: 3, Orders: 2, Revenue: 15400},
		order: &model.Order{ID: 3, Status: model.OrderStatusPaid},
		role:  model.RoleAdmin,
	}
	h := newTestHandler(t, svc, nil, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		role   model.Role
		want   int
	}{
		{name: "user is forbidden", method: http.MethodGet, path: "/api/admin/stats", role: model.RoleUser, want: http.StatusForbidden},
		{name: "stats", method: http.MethodGet, path: "/api/admin/stats", role: model.RoleAdmin, want: http.StatusOK},
		{name: "status update", method: http.MethodPut, path: "/api/admin/orders/3/status", body: `{"status":"shipped"}`, role: model.RoleAdmin, want: http.StatusOK},
		{name: "unknown status", method: http.MethodPut, path: "/api/admin/orders/3/status", body: `{"status":"lost"}`, role: model.RoleAdmin, want: http.StatusBadRequest},
		{name: "tracking number taken", method: http.MethodPut, path: "/api/admin/orders/3/tracking", body: `{"tracking_number":"X1"}`, role: model.RoleAdmin, want: http.StatusConflict},
		{name: "duplicate coupon", method: http.MethodPost, path: "/api/admin/coupons", body: `{"code":"SAVE10","type":"percentage","value":10}`, role: model.RoleAdmin, want: http.StatusConflict},
		{name: "invalid homepage", method: http.MethodPut, path: "/api/admin/homepage", body: `{"hero_title":""}`, role: model.RoleAdmin, want: http.StatusBadRequest},
		{name: "homepage", method: http.MethodPut, path: "/api/admin/homepage", body: `{"hero_title":"Sale"}`, role: model.RoleAdmin, want: http.StatusOK},
		{name: "product created", method: http.MethodPost, path: "/api/admin/products", body: `{"name":"Hat","price":1500,"stock":3}`, role: model.RoleAdmin, want: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.AddCookie(authCookie(t, h, 1, tt.role))
			rec := serve(h, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/content/homepage", nil))
	if !strings.Contains(rec.Body.String(), `"hero_title":"Sale"`) {
		t.Fatalf("homepage update not visible: %s", rec.Body.String())
	}
}

func TestAdminRoutes_DemotedAdminIsForbidden(t *testing.T) {
	tests := []struct {
		name string
		svc  *stubService
		want int
	}{
		{name: "demoted", svc: &stubService{role: model.RoleUser}, want: http.StatusForbidden},
		{name: "deleted", svc: &stubService{}, want: http.StatusForbidden},
		{name: "lookup failed", svc: &stubService{userErr: errors.New("db down")}, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, tt.svc, nil, nil)

			// токен выпущен, пока пользователь был администратором
			req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
			req.AddCookie(authCookie(t, h, 1, model.RoleAdmin))
			if rec := serve(h, req); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestUpdateSettings_Invalid(t *testing.T) {
	svc := &stubService{settingErr: fmt.Errorf("%w: store name is required", service.ErrInvalidInput), role: model.RoleAdmin}
	h := newTestHandler(t, svc, nil, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/settings", strings.NewReader(`{"store_name":""}`))
	req.AddCookie(authCookie(t, h, 1, model.RoleAdmin))
	if rec := serve(h, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestPublicSettings(t *testing.T) {
	svc := &stubService{settings: model.StoreSettings{StoreName: "Shop", Currency: "usd", AssistantEnabled: true}}
	h := newTestHandler(t, svc, &stubAssistant{enabled: false}, nil)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/settings/public", nil))

	var resp publicSettingsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StoreName != "Shop" || resp.AssistantEnabled {
		t.Fatalf("unexpected settings: %+v", resp)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "ok", want: http.StatusOK},
		{name: "db down", err: errors.New("connection refused"), want: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(t, &stubService{pingErr: tt.err}, nil, nil)
			rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/health", nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
