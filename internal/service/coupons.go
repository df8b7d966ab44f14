package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/pricing"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/validation"
)

// CouponQuote описывает результат проверки купона для суммы заказа.
type CouponQuote struct {
	Coupon   *model.Coupon
	Subtotal int64
	Discount int64
}

// ValidateCoupon проверяет применимость купона к заказу пользователя на указанную сумму.
func (s *Service) ValidateCoupon(ctx context.Context, userID int64, code string, subtotal int64) (*CouponQuote, error) {
	code = validation.NormalizeCouponCode(code)
	if !validation.IsValidCouponCode(code) {
		return nil, fmt.Errorf("%w: malformed code", ErrCouponInvalid)
	}

	c, err := s.repo.GetCouponByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown code", ErrCouponInvalid)
		}
		return nil, err
	}

	switch {
	case !c.Active:
		return nil, fmt.Errorf("%w: inactive", ErrCouponInvalid)
	case c.ExpiresAt != nil && !s.now().Before(*c.ExpiresAt):
		return nil, fmt.Errorf("%w: expired", ErrCouponInvalid)
	case c.MaxUses != nil && c.UsedCount >= *c.MaxUses:
		return nil, fmt.Errorf("%w: usage limit reached", ErrCouponInvalid)
	case subtotal < c.MinOrderAmount:
		return nil, fmt.Errorf("%w: minimum order amount is %s", ErrCouponInvalid, pricing.FromCents(c.MinOrderAmount).StringFixed(2))
	case c.Negotiation != nil && c.Negotiation.UserID != nil && *c.Negotiation.UserID != userID:
		return nil, fmt.Errorf("%w: issued to another customer", ErrCouponInvalid)
	}

	used, err := s.repo.CouponUsedByUser(ctx, c.ID, userID)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, fmt.Errorf("%w: already used", ErrCouponInvalid)
	}

	return &CouponQuote{
		Coupon:   c,
		Subtotal: subtotal,
		Discount: pricing.CouponDiscount(*c, subtotal),
	}, nil
}

// ListCoupons возвращает все купоны.
func (s *Service) ListCoupons(ctx context.Context) ([]model.Coupon, error) {
	return s.repo.ListCoupons(ctx)
}

// CreateCoupon создаёт купон.
func (s *Service) CreateCoupon(ctx context.Context, c model.Coupon) (*model.Coupon, error) {
	if err := validateCoupon(&c); err != nil {
		return nil, err
	}
	return s.repo.CreateCoupon(ctx, c)
}

// UpdateCoupon изменяет купон.
func (s *Service) UpdateCoupon(ctx context.Context, c model.Coupon) (*model.Coupon, error) {
	if c.ID <= 0 {
		return nil, fmt.Errorf("%w: coupon id", ErrInvalidInput)
	}
	if err := validateCoupon(&c); err != nil {
		return nil, err
	}
	return s.repo.UpdateCoupon(ctx, c)
}

// DeleteCoupon деактивирует купон. История использований сохраняется.
func (s *Service) DeleteCoupon(ctx context.Context, id int64) error {
	return s.repo.DeactivateCoupon(ctx, id)
}

func validateCoupon(c *model.Coupon) error {
	c.Code = validation.NormalizeCouponCode(c.Code)
	if !validation.IsValidCouponCode(c.Code) {
		return fmt.Errorf("%w: code", ErrInvalidInput)
	}

	switch c.Type {
	case model.CouponPercentage:
		if c.Value <= 0 || c.Value > 100 {
			return fmt.Errorf("%w: percentage must be between 1 and 100", ErrInvalidInput)
		}
	case model.CouponFixed:
		if c.Value <= 0 {
			return fmt.Errorf("%w: value must be positive", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: coupon type", ErrInvalidInput)
	}

	if c.MinOrderAmount < 0 {
		return fmt.Errorf("%w: minimum order amount", ErrInvalidInput)
	}
	if c.MaxUses != nil && *c.MaxUses <= 0 {
		return fmt.Errorf("%w: max uses", ErrInvalidInput)
	}
	return nil
}
