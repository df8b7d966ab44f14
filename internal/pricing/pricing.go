// Package pricing содержит денежные расчёты витрины: цены, промежуточные итоги и скидки.
//
// Суммы передаются в центах, промежуточные вычисления выполняются в десятичной арифметике.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/storefront/internal/model"
)

// ErrInvalidRate возвращается при разборе некорректной ставки налога.
var ErrInvalidRate = errors.New("invalid tax rate")

var hundred = decimal.NewFromInt(100)

// UnitPrice возвращает цену, по которой товар продаётся сейчас.
// Цена со скидкой учитывается, только если она положительна и меньше обычной.
func UnitPrice(p model.Product) int64 {
	if p.DiscountedPrice != nil && *p.DiscountedPrice > 0 && *p.DiscountedPrice < p.Price {
		return *p.DiscountedPrice
	}
	return p.Price
}

// Subtotal возвращает сумму price × quantity по всем позициям.
func Subtotal(items []model.OrderItem) int64 {
	sum := decimal.Zero
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		sum = sum.Add(decimal.NewFromInt(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum.IntPart()
}

// CartSubtotal возвращает сумму позиций корзины.
func CartSubtotal(items []model.CartItem) int64 {
	lines := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, model.OrderItem{Price: it.Price, Quantity: it.Quantity})
	}
	return Subtotal(lines)
}

// DiscountFromCharged возвращает скидку как разницу между промежуточным итогом и фактически
// списанной суммой. Отрицательная разница обнуляется.
func DiscountFromCharged(subtotal, charged int64) int64 {
	d := decimal.NewFromInt(subtotal).Sub(decimal.NewFromInt(charged))
	if d.IsNegative() {
		return 0
	}
	return d.IntPart()
}

// CouponDiscount рассчитывает скидку по купону для указанного промежуточного итога.
// Процентный купон ограничен 100%, фиксированный не превышает итог.
// Купон, не достигший минимальной суммы заказа, даёт нулевую скидку.
func CouponDiscount(c model.Coupon, subtotal int64) int64 {
	if subtotal <= 0 || c.Value <= 0 || subtotal < c.MinOrderAmount {
		return 0
	}

	switch c.Type {
	case model.CouponPercentage:
		pct := decimal.NewFromInt(c.Value)
		if pct.GreaterThan(hundred) {
			pct = hundred
		}
		return decimal.NewFromInt(subtotal).Mul(pct).Div(hundred).Round(0).IntPart()
	case model.CouponFixed:
		if c.Value > subtotal {
			return subtotal
		}
		return c.Value
	default:
		return 0
	}
}

// Shipping возвращает стоимость доставки по настройкам магазина.
func Shipping(settings model.StoreSettings, subtotal int64) int64 {
	if settings.FreeShippingThreshold > 0 && subtotal >= settings.FreeShippingThreshold {
		return 0
	}
	return settings.ShippingFee
}

// ParseTaxRate разбирает ставку налога в процентах. Пустая строка означает нулевую ставку.
func ParseTaxRate(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	rate, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidRate, s)
	}
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return decimal.Zero, fmt.Errorf("%w: %s is outside [0, 100]", ErrInvalidRate, s)
	}
	return rate, nil
}

// Tax возвращает налог с облагаемой суммы по ставке из настроек, округлённый до цента.
// Некорректная ставка даёт нулевой налог: настройки проверяются при сохранении.
func Tax(settings model.StoreSettings, taxable int64) int64 {
	if taxable <= 0 {
		return 0
	}
	rate, err := ParseTaxRate(settings.TaxRate)
	if err != nil || rate.IsZero() {
		return 0
	}
	return ToCents(FromCents(taxable).Mul(rate).Div(hundred))
}

// ToCents округляет десятичную сумму до центов.
func ToCents(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromCents переводит центы в десятичную сумму.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
