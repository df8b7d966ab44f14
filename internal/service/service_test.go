package service

import (
	"context"
	"errors"
	"sync"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/payment"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/settings"
)

type stubRepo struct {
	mu sync.Mutex

	createUserErr error
	createdRole   model.Role
	users         map[string]*model.User

	products map[int64]model.Product
	reviews  []model.Review

	cart      *model.Cart
	cartCalls []string

	coupons    map[string]*model.Coupon
	couponUsed bool

	orders map[int64]*model.Order

	recordErr      error
	events         map[string]model.PaymentEvent
	fulfillErr     error
	fulfillResult  repository.FulfillmentResult
	fulfillInputs  []repository.FulfillmentInput
	failedSessions []string
	sessionStatus  map[string]model.OrderStatus
	cancelled      []string
	cancelErr      error

	trackingUpdates []repository.TrackingUpdate
	statusEvents    []model.TrackingEvent

	storedSettings *model.StoreSettings
	savedSettings  []model.StoreSettings
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		users:    map[string]*model.User{},
		products: map[int64]model.Product{},
		cart:     &model.Cart{ID: 7, UserID: 42},
		coupons:  map[string]*model.Coupon{},
		orders:   map[int64]*model.Order{},
		events:   map[string]model.PaymentEvent{},

		sessionStatus: map[string]model.OrderStatus{},
	}
}

func (s *stubRepo) Ping(context.Context) error { return nil }

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(_ context.Context, email, name string, hash []byte, role model.Role) (*model.User, error) {
	if s.createUserErr != nil {
		return nil, s.createUserErr
	}
	s.createdRole = role
	u := &model.User{ID: int64(len(s.users) + 1), Email: email, Name: name, PasswordHash: hash, Role: role}
	s.users[email] = u
	return u, nil
}

func (s *stubRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := s.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (s *stubRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return &model.User{ID: id, Email: "buyer@example.com", Role: model.RoleUser}, nil
}

func (s *stubRepo) ListUsers(context.Context, int, int) ([]model.User, int, error) { return nil, 0, nil }

func (s *stubRepo) UpdateUserRole(context.Context, int64, model.Role) error { return nil }

func (s *stubRepo) ListProducts(_ context.Context, f model.ProductFilter) ([]model.Product, int, error) {
	var res []model.Product
	for _, p := range s.products {
		if f.OnlyActive && !p.Active {
			continue
		}
		res = append(res, p)
	}
	return res, len(res), nil
}

func (s *stubRepo) GetProduct(_ context.Context, id int64) (*model.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *stubRepo) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]model.Product, error) {
	res := make(map[int64]model.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			res[id] = p
		}
	}
	return res, nil
}

func (s *stubRepo) CreateProduct(_ context.Context, p model.Product) (*model.Product, error) {
	p.ID = int64(len(s.products) + 1)
	s.products[p.ID] = p
	return &p, nil
}

func (s *stubRepo) UpdateProduct(_ context.Context, p model.Product) (*model.Product, error) {
	s.products[p.ID] = p
	return &p, nil
}

func (s *stubRepo) DeactivateProduct(context.Context, int64) error { return nil }

func (s *stubRepo) ListReviews(context.Context, int64) ([]model.Review, error) { return s.reviews, nil }

func (s *stubRepo) SaveReview(_ context.Context, rv model.Review) (*model.Review, error) {
	s.reviews = append(s.reviews, rv)
	return &rv, nil
}

func (s *stubRepo) GetCart(context.Context, int64) (*model.Cart, error) {
	c := *s.cart
	c.Items = append([]model.CartItem(nil), s.cart.Items...)
	return &c, nil
}

func (s *stubRepo) AddCartItem(_ context.Context, _ int64, productID int64, variant string, qty int) error {
	s.cartCalls = append(s.cartCalls, "add")
	p := s.products[productID]
	for i, it := range s.cart.Items {
		if it.ProductID == productID && it.Variant == variant {
			s.cart.Items[i].Quantity += qty
			return nil
		}
	}
	s.cart.Items = append(s.cart.Items, model.CartItem{ProductID: productID, Name: p.Name, Price: p.Price, Quantity: qty, Variant: variant})
	return nil
}

func (s *stubRepo) SetCartItemQuantity(_ context.Context, _ int64, productID int64, variant string, qty int) error {
	s.cartCalls = append(s.cartCalls, "set")
	for i, it := range s.cart.Items {
		if it.ProductID == productID && it.Variant == variant {
			s.cart.Items[i].Quantity = qty
		}
	}
	return nil
}

func (s *stubRepo) RemoveCartItem(context.Context, int64, int64, string) error {
	s.cartCalls = append(s.cartCalls, "remove")
	return nil
}

func (s *stubRepo) ClearCart(context.Context, int64) error {
	s.cartCalls = append(s.cartCalls, "clear")
	s.cart.Items = nil
	s.cart.CouponCode = nil
	return nil
}

func (s *stubRepo) SetCartCoupon(_ context.Context, _ int64, code *string) error {
	s.cartCalls = append(s.cartCalls, "coupon")
	s.cart.CouponCode = code
	return nil
}

func (s *stubRepo) ListCoupons(context.Context) ([]model.Coupon, error) { return nil, nil }

func (s *stubRepo) GetCouponByCode(_ context.Context, code string) (*model.Coupon, error) {
	c, ok := s.coupons[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (s *stubRepo) CreateCoupon(_ context.Context, c model.Coupon) (*model.Coupon, error) {
	if _, ok := s.coupons[c.Code]; ok {
		return nil, repository.ErrCouponExists
	}
	s.coupons[c.Code] = &c
	return &c, nil
}

func (s *stubRepo) UpdateCoupon(_ context.Context, c model.Coupon) (*model.Coupon, error) { return &c, nil }

func (s *stubRepo) DeactivateCoupon(context.Context, int64) error { return nil }

func (s *stubRepo) CouponUsedByUser(context.Context, int64, int64) (bool, error) {
	return s.couponUsed, nil
}

func (s *stubRepo) ListOrdersByUser(_ context.Context, userID int64) ([]model.Order, error) {
	var res []model.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (s *stubRepo) ListOrders(context.Context, model.OrderFilter) ([]model.Order, int, error) {
	return nil, 0, nil
}

func (s *stubRepo) GetOrder(_ context.Context, id int64) (*model.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (s *stubRepo) GetOrderByTrackingNumber(_ context.Context, number string) (*model.Order, error) {
	for _, o := range s.orders {
		if o.Shipping != nil && o.Shipping.TrackingNumber == number {
			c := *o
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubRepo) GetOrderBySession(_ context.Context, sessionID string) (*model.Order, error) {
	for _, o := range s.orders {
		if o.StripeSessionID == sessionID {
			c := *o
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubRepo) UpdateOrderStatus(_ context.Context, id int64, ev model.TrackingEvent) error {
	o, ok := s.orders[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.Status = ev.Status
	s.statusEvents = append(s.statusEvents, ev)
	return nil
}

func (s *stubRepo) UpdateOrderTracking(_ context.Context, id int64, u repository.TrackingUpdate) error {
	if _, ok := s.orders[id]; !ok {
		return repository.ErrNotFound
	}
	s.trackingUpdates = append(s.trackingUpdates, u)
	return nil
}

func (s *stubRepo) Stats(context.Context) (model.StoreStats, error) { return model.StoreStats{}, nil }

func (s *stubRepo) RecordPaymentEvent(_ context.Context, ev model.PaymentEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return false, s.recordErr
	}
	if old, ok := s.events[ev.SessionID]; ok && old.EventID == ev.EventID {
		return false, nil
	}
	s.events[ev.SessionID] = ev
	return true, nil
}

func (s *stubRepo) ListPendingPaymentEvents(_ context.Context, maxAttempts, limit int) ([]model.PaymentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []model.PaymentEvent
	for _, ev := range s.events {
		if ev.ProcessedAt == nil && ev.Attempts < maxAttempts && len(res) < limit {
			res = append(res, ev)
		}
	}
	return res, nil
}

func (s *stubRepo) MarkPaymentEventFailed(_ context.Context, sessionID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedSessions = append(s.failedSessions, sessionID)
	if ev, ok := s.events[sessionID]; ok {
		ev.Attempts++
		s.events[sessionID] = ev
	}
	return nil
}

func (s *stubRepo) FulfillOrder(_ context.Context, in repository.FulfillmentInput) (repository.FulfillmentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fulfillInputs = append(s.fulfillInputs, in)
	if s.fulfillErr != nil {
		return repository.FulfillmentResult{}, s.fulfillErr
	}
	status := in.Status
	if status == "" {
		status = model.OrderStatusPaid
	}
	s.markProcessed(in.SessionID)

	if current, ok := s.sessionStatus[in.SessionID]; ok {
		res := repository.FulfillmentResult{OrderID: s.fulfillResult.OrderID}
		if current == model.OrderStatusPending && status == model.OrderStatusPaid {
			s.sessionStatus[in.SessionID] = status
			res.Confirmed = true
		}
		return res, nil
	}
	s.sessionStatus[in.SessionID] = status
	res := s.fulfillResult
	res.Created = true
	return res, nil
}

func (s *stubRepo) CancelPendingOrder(_ context.Context, sessionID, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelErr != nil {
		return false, s.cancelErr
	}
	s.markProcessed(sessionID)
	if s.sessionStatus[sessionID] != model.OrderStatusPending {
		return false, nil
	}
	s.sessionStatus[sessionID] = model.OrderStatusCancelled
	s.cancelled = append(s.cancelled, sessionID)
	return true, nil
}

func (s *stubRepo) markProcessed(sessionID string) {
	if ev, ok := s.events[sessionID]; ok && ev.ProcessedAt == nil {
		now := ev.CreatedAt
		ev.ProcessedAt = &now
		s.events[sessionID] = ev
	}
}

func (s *stubRepo) GetSettings(context.Context) (*model.StoreSettings, error) {
	if s.storedSettings == nil {
		return nil, repository.ErrNotFound
	}
	return s.storedSettings, nil
}

func (s *stubRepo) SaveSettings(_ context.Context, st model.StoreSettings) error {
	s.savedSettings = append(s.savedSettings, st)
	return nil
}

type stubGateway struct {
	requests []payment.CheckoutRequest
	promo    map[string]string
	event    *payment.Event
	parseErr error
	createErr error
}

func (g *stubGateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.requests = append(g.requests, req)
	return &payment.Session{ID: "cs_test_1", URL: "https://checkout.example/cs_test_1"}, nil
}

func (g *stubGateway) ResolvePromotionCode(_ context.Context, code string) (string, error) {
	if id, ok := g.promo[code]; ok {
		return id, nil
	}
	return "", payment.ErrPromotionNotFound
}

func (g *stubGateway) ParseWebhook([]byte, string) (*payment.Event, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	if g.event == nil {
		return nil, errors.New("no event")
	}
	return g.event, nil
}

func newTestService(repo *stubRepo, gw *stubGateway, st model.StoreSettings) *Service {
	svc := NewService(repo, gw, settings.NewHolder(st), nil, Options{
		ClientURL:              "http://shop.test/",
		Currency:               "usd",
		MaxFulfillmentAttempts: 3,
	})
	svc.newTrackingNumber = func() string { return "SFTEST0001" }
	return svc
}

func testSettings() model.StoreSettings {
	return model.StoreSettings{StoreName: "Test", Currency: "usd", ShippingFee: 500, FreeShippingThreshold: 10000, TaxRate: "0"}
}
