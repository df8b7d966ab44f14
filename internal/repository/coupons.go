package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront/internal/model"
)

const couponColumns = `id, code, type, value, min_order_amount, max_uses, used_count, expires_at, active,
	stripe_promotion, negotiation, created_at`

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var (
		c           model.Coupon
		typ         string
		negotiation []byte
	)
	err := row.Scan(&c.ID, &c.Code, &typ, &c.Value, &c.MinOrderAmount, &c.MaxUses, &c.UsedCount,
		&c.ExpiresAt, &c.Active, &c.StripePromotion, &negotiation, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Type = model.CouponType(typ)

	if len(negotiation) > 0 {
		var n model.CouponNegotiation
		if err := json.Unmarshal(negotiation, &n); err != nil {
			return nil, fmt.Errorf("decode negotiation: %w", err)
		}
		c.Negotiation = &n
	}
	return &c, nil
}

func encodeNegotiation(n *model.CouponNegotiation) ([]byte, error) {
	if n == nil {
		return nil, nil
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode negotiation: %w", err)
	}
	return data, nil
}

// ListCoupons возвращает все купоны, новые сначала.
func (r *PostgresRepository) ListCoupons(ctx context.Context) ([]model.Coupon, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("select coupons: %w", err)
	}
	defer rows.Close()

	var res []model.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scan coupon: %w", err)
		}
		res = append(res, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// GetCouponByCode возвращает купон по коду.
func (r *PostgresRepository) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE code = $1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

// CreateCoupon создаёт купон.
func (r *PostgresRepository) CreateCoupon(ctx context.Context, c model.Coupon) (*model.Coupon, error) {
	negotiation, err := encodeNegotiation(c.Negotiation)
	if err != nil {
		return nil, err
	}

	created, err := scanCoupon(r.pool.QueryRow(ctx,
		`INSERT INTO coupons (code, type, value, min_order_amount, max_uses, expires_at, active, stripe_promotion, negotiation)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+couponColumns,
		c.Code, string(c.Type), c.Value, c.MinOrderAmount, c.MaxUses, c.ExpiresAt, c.Active, c.StripePromotion, negotiation,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrCouponExists, c.Code)
		}
		return nil, fmt.Errorf("create coupon: %w", err)
	}
	return created, nil
}

// UpdateCoupon обновляет купон. Счётчик использований не изменяется.
func (r *PostgresRepository) UpdateCoupon(ctx context.Context, c model.Coupon) (*model.Coupon, error) {
	negotiation, err := encodeNegotiation(c.Negotiation)
	if err != nil {
		return nil, err
	}

	updated, err := scanCoupon(r.pool.QueryRow(ctx,
		`UPDATE coupons
		 SET code = $2, type = $3, value = $4, min_order_amount = $5, max_uses = $6, expires_at = $7,
		     active = $8, stripe_promotion = $9, negotiation = $10
		 WHERE id = $1
		 RETURNING `+couponColumns,
		c.ID, c.Code, string(c.Type), c.Value, c.MinOrderAmount, c.MaxUses, c.ExpiresAt, c.Active, c.StripePromotion, negotiation,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrCouponExists, c.Code)
		}
		return nil, fmt.Errorf("update coupon: %w", err)
	}
	return updated, nil
}

// DeactivateCoupon отключает купон. История использований сохраняется.
func (r *PostgresRepository) DeactivateCoupon(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE coupons SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate coupon: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CouponUsedByUser сообщает, использовал ли пользователь купон в каком-либо заказе.
func (r *PostgresRepository) CouponUsedByUser(ctx context.Context, couponID, userID int64) (bool, error) {
	var used bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2)`,
		couponID, userID,
	).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check coupon usage: %w", err)
	}
	return used, nil
}
