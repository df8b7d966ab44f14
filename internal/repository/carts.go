package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront/internal/model"
)

// GetCart возвращает корзину пользователя, создавая пустую при первом обращении.
// Название, цена и изображение позиции берутся из текущего состояния товара.
func (r *PostgresRepository) GetCart(ctx context.Context, userID int64) (*model.Cart, error) {
	cart := &model.Cart{UserID: userID}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO carts (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING id, coupon_code, updated_at`,
		userID,
	).Scan(&cart.ID, &cart.CouponCode, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT ci.product_id, p.name, COALESCE(p.images[1], ''),
		        `+effectivePrice+`, ci.quantity, ci.variant
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.cart_id = $1
		 ORDER BY p.name, ci.variant`,
		cart.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.CartItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Image, &it.Price, &it.Quantity, &it.Variant); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		cart.Items = append(cart.Items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return cart, nil
}

// AddCartItem увеличивает количество позиции корзины, добавляя её при отсутствии.
func (r *PostgresRepository) AddCartItem(ctx context.Context, cartID, productID int64, variant string, quantity int) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO cart_items (cart_id, product_id, variant, quantity) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cart_id, product_id, variant) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		cartID, productID, variant, quantity,
	)
	if err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}
	return r.touchCart(ctx, cartID)
}

// SetCartItemQuantity задаёт количество существующей позиции корзины.
func (r *PostgresRepository) SetCartItemQuantity(ctx context.Context, cartID, productID int64, variant string, quantity int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = $4 WHERE cart_id = $1 AND product_id = $2 AND variant = $3`,
		cartID, productID, variant, quantity,
	)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return r.touchCart(ctx, cartID)
}

// RemoveCartItem удаляет позицию из корзины.
func (r *PostgresRepository) RemoveCartItem(ctx context.Context, cartID, productID int64, variant string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id = $1 AND product_id = $2 AND variant = $3`,
		cartID, productID, variant,
	)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return r.touchCart(ctx, cartID)
}

// ClearCart удаляет все позиции корзины и применённый купон.
func (r *PostgresRepository) ClearCart(ctx context.Context, cartID int64) error {
	return r.WithinTransaction(ctx, func(tx pgx.Tx) error {
		return clearCart(ctx, tx, cartID)
	})
}

func clearCart(ctx context.Context, q querier, cartID int64) error {
	if _, err := q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}
	if _, err := q.Exec(ctx, `UPDATE carts SET coupon_code = NULL, updated_at = now() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("clear cart coupon: %w", err)
	}
	return nil
}

// SetCartCoupon применяет купон к корзине; nil снимает купон.
func (r *PostgresRepository) SetCartCoupon(ctx context.Context, cartID int64, code *string) error {
	_, err := r.pool.Exec(ctx, `UPDATE carts SET coupon_code = $2, updated_at = now() WHERE id = $1`, cartID, code)
	if err != nil {
		return fmt.Errorf("set cart coupon: %w", err)
	}
	return nil
}

func (r *PostgresRepository) touchCart(ctx context.Context, cartID int64) error {
	if _, err := r.pool.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}
