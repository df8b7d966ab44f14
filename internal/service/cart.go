package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/pricing"
	"github.com/mmeshcher/storefront/internal/validation"
)

// CartSummary описывает корзину вместе с рассчитанными суммами.
type CartSummary struct {
	Cart     *model.Cart
	Subtotal int64
	Discount int64
	Shipping int64
	Tax      int64
	Total    int64
	// CouponError содержит причину, по которой применённый купон сейчас не действует.
	CouponError string
}

// GetCart возвращает корзину пользователя с итогами.
func (s *Service) GetCart(ctx context.Context, userID int64) (*CartSummary, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.summarize(ctx, userID, cart)
}

func (s *Service) summarize(ctx context.Context, userID int64, cart *model.Cart) (*CartSummary, error) {
	sum := &CartSummary{Cart: cart, Subtotal: pricing.CartSubtotal(cart.Items)}

	if cart.CouponCode != nil && len(cart.Items) > 0 {
		quote, err := s.ValidateCoupon(ctx, userID, *cart.CouponCode, sum.Subtotal)
		switch {
		case err == nil:
			sum.Discount = quote.Discount
		case errors.Is(err, ErrCouponInvalid):
			sum.CouponError = err.Error()
		default:
			return nil, err
		}
	}

	if len(cart.Items) > 0 {
		store := s.currentSettings()
		sum.Shipping = pricing.Shipping(store, sum.Subtotal)
		// Скидка провайдера распространяется и на строку налога, поэтому налог считается от суммы со скидкой.
		sum.Tax = pricing.Tax(store, sum.Subtotal-sum.Discount)
	}
	sum.Total = sum.Subtotal - sum.Discount + sum.Tax + sum.Shipping
	return sum, nil
}

// AddToCart добавляет товар в корзину. Количество суммируется с уже лежащим в корзине.
func (s *Service) AddToCart(ctx context.Context, userID, productID int64, variant string, qty int) (*CartSummary, error) {
	if !validation.IsValidQuantity(qty) {
		return nil, fmt.Errorf("%w: quantity", ErrInvalidInput)
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	inCart := 0
	for _, it := range cart.Items {
		if it.ProductID == productID && it.Variant == variant {
			inCart = it.Quantity
		}
	}

	if err := s.checkAvailability(ctx, productID, variant, inCart+qty); err != nil {
		return nil, err
	}

	if err := s.repo.AddCartItem(ctx, cart.ID, productID, variant, qty); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// UpdateCartItem устанавливает количество позиции. Нулевое количество удаляет позицию.
func (s *Service) UpdateCartItem(ctx context.Context, userID, productID int64, variant string, qty int) (*CartSummary, error) {
	if qty == 0 {
		return s.RemoveCartItem(ctx, userID, productID, variant)
	}
	if !validation.IsValidQuantity(qty) {
		return nil, fmt.Errorf("%w: quantity", ErrInvalidInput)
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.checkAvailability(ctx, productID, variant, qty); err != nil {
		return nil, err
	}
	if err := s.repo.SetCartItemQuantity(ctx, cart.ID, productID, variant, qty); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// RemoveCartItem удаляет позицию из корзины.
func (s *Service) RemoveCartItem(ctx context.Context, userID, productID int64, variant string) (*CartSummary, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RemoveCartItem(ctx, cart.ID, productID, variant); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// ClearCart очищает корзину и снимает купон.
func (s *Service) ClearCart(ctx context.Context, userID int64) (*CartSummary, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ClearCart(ctx, cart.ID); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// ApplyCoupon проверяет купон на текущей корзине и сохраняет его.
func (s *Service) ApplyCoupon(ctx context.Context, userID int64, code string) (*CartSummary, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	quote, err := s.ValidateCoupon(ctx, userID, code, pricing.CartSubtotal(cart.Items))
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetCartCoupon(ctx, cart.ID, &quote.Coupon.Code); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// RemoveCoupon снимает купон с корзины.
func (s *Service) RemoveCoupon(ctx context.Context, userID int64) (*CartSummary, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetCartCoupon(ctx, cart.ID, nil); err != nil {
		return nil, err
	}
	return s.GetCart(ctx, userID)
}

// checkAvailability проверяет, что товар продаётся, вариант существует и остатка хватает на qty.
func (s *Service) checkAvailability(ctx context.Context, productID int64, variant string, qty int) error {
	p, err := s.GetProduct(ctx, productID, false)
	if err != nil {
		return err
	}
	return checkProduct(p, variant, qty)
}

func checkProduct(p *model.Product, variant string, qty int) error {
	if !p.Active {
		return fmt.Errorf("%w: %s", ErrProductUnavailable, p.Name)
	}
	if variant != "" && !slices.Contains(p.Variants, variant) {
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidInput, variant)
	}
	if qty > p.Stock {
		return fmt.Errorf("%w: only %d of %s left", ErrInsufficientStock, p.Stock, p.Name)
	}
	return nil
}
