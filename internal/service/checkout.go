package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/payment"
	"github.com/mmeshcher/storefront/internal/pricing"
	"github.com/mmeshcher/storefront/internal/validation"
)

// SingleCheckout описывает покупку одного товара без корзины.
type SingleCheckout struct {
	ProductID  int64
	Quantity   int
	Variant    string
	CouponCode string
}

type checkoutLine struct {
	productID int64
	variant   string
	quantity  int
}

// CreateCartCheckout создаёт сессию оплаты для содержимого корзины пользователя.
func (s *Service) CreateCartCheckout(ctx context.Context, userID int64) (*payment.Session, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]checkoutLine, 0, len(cart.Items))
	for _, it := range cart.Items {
		lines = append(lines, checkoutLine{productID: it.ProductID, variant: it.Variant, quantity: it.Quantity})
	}

	var coupon string
	if cart.CouponCode != nil {
		coupon = *cart.CouponCode
	}

	return s.createCheckout(ctx, userID, cart.ID, lines, coupon)
}

// CreateSingleCheckout создаёт сессию оплаты для одного товара.
func (s *Service) CreateSingleCheckout(ctx context.Context, userID int64, req SingleCheckout) (*payment.Session, error) {
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	if req.ProductID <= 0 || !validation.IsValidQuantity(req.Quantity) {
		return nil, fmt.Errorf("%w: product and quantity are required", ErrInvalidInput)
	}

	lines := []checkoutLine{{productID: req.ProductID, variant: req.Variant, quantity: req.Quantity}}
	return s.createCheckout(ctx, userID, 0, lines, req.CouponCode)
}

// createCheckout проверяет позиции по актуальному каталогу, фиксирует цены и создаёт сессию у провайдера.
// При нехватке остатка сессия не создаётся.
func (s *Service) createCheckout(ctx context.Context, userID, cartID int64, lines []checkoutLine, couponCode string) (*payment.Session, error) {
	store := s.currentSettings()
	if store.MaintenanceMode {
		return nil, ErrMaintenance
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	items, err := s.snapshotItems(ctx, lines)
	if err != nil {
		return nil, err
	}
	subtotal := pricing.Subtotal(items)
	tax := pricing.Tax(store, subtotal)

	req := payment.CheckoutRequest{
		Items:             items,
		Currency:          s.currency(store),
		CustomerEmail:     user.Email,
		ClientReferenceID: strconv.FormatInt(userID, 10),
		SuccessURL:        s.clientURL("/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         s.clientURL("/cart"),
		ShippingFee:       pricing.Shipping(store, subtotal),
		TaxAmount:         tax,
		Metadata: payment.Metadata{
			UserID: userID,
			CartID: cartID,
			Email:  user.Email,
			Items:  items,
			Tax:    tax,
		},
	}

	if err := s.attachCoupon(ctx, &req, userID, couponCode, subtotal); err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, req)
	if err != nil {
		if errors.Is(err, payment.ErrMetadataTooLarge) {
			return nil, fmt.Errorf("%w: too many items for one checkout", ErrInvalidInput)
		}
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	s.logger.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.Int64("user_id", userID),
		zap.Int64("subtotal", subtotal),
		zap.Int64("tax", tax),
	)
	return session, nil
}

// snapshotItems строит позиции заказа по ценам каталога, а не по данным клиента.
func (s *Service) snapshotItems(ctx context.Context, lines []checkoutLine) ([]model.OrderItem, error) {
	ids := make([]int64, 0, len(lines))
	wanted := make(map[int64]int, len(lines))
	for _, l := range lines {
		if _, ok := wanted[l.productID]; !ok {
			ids = append(ids, l.productID)
		}
		wanted[l.productID] += l.quantity
	}

	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]model.OrderItem, 0, len(lines))
	for _, l := range lines {
		p, ok := products[l.productID]
		if !ok {
			return nil, fmt.Errorf("%w: product %d", ErrProductUnavailable, l.productID)
		}
		if err := checkProduct(&p, l.variant, wanted[l.productID]); err != nil {
			return nil, err
		}

		var image string
		if len(p.Images) > 0 {
			image = p.Images[0]
		}
		items = append(items, model.OrderItem{
			ProductID: p.ID,
			Name:      p.Name,
			Image:     image,
			Price:     pricing.UnitPrice(p),
			Quantity:  l.quantity,
			Variant:   l.variant,
		})
	}
	return items, nil
}

// attachCoupon привязывает к сессии промокод провайдера. Если купон не задан или промокода
// у провайдера нет, покупателю разрешается ввести промокод на странице оплаты.
func (s *Service) attachCoupon(ctx context.Context, req *payment.CheckoutRequest, userID int64, code string, subtotal int64) error {
	if strings.TrimSpace(code) == "" {
		req.AllowPromotionCodes = true
		return nil
	}

	quote, err := s.ValidateCoupon(ctx, userID, code, subtotal)
	if err != nil {
		return err
	}
	c := quote.Coupon

	promo := c.StripePromotion
	if promo == "" {
		promo, err = s.gateway.ResolvePromotionCode(ctx, c.Code)
		if err != nil && !errors.Is(err, payment.ErrPromotionNotFound) {
			return fmt.Errorf("resolve promotion code: %w", err)
		}
	}

	if promo == "" {
		s.logger.Warn("coupon has no provider promotion code", zap.String("code", c.Code))
		req.AllowPromotionCodes = true
		return nil
	}

	req.PromotionCodeID = promo
	req.Metadata.CouponCode = c.Code
	return nil
}

func (s *Service) currency(store model.StoreSettings) string {
	if store.Currency != "" {
		return strings.ToLower(store.Currency)
	}
	if s.opts.Currency != "" {
		return strings.ToLower(s.opts.Currency)
	}
	return "usd"
}

func (s *Service) clientURL(path string) string {
	return strings.TrimRight(s.opts.ClientURL, "/") + path
}
