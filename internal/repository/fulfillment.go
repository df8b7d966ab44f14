package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront/internal/model"
)

// FulfillmentInput содержит всё необходимое для создания заказа по завершённой оплате.
type FulfillmentInput struct {
	SessionID      string
	UserID         int64
	CartID         int64
	Email          string
	Items          []model.OrderItem
	Subtotal       int64
	Discount       int64
	ShippingAmount int64
	Tax            int64
	Total          int64
	CouponCode     string
	Shipping       *model.Shipping
	TrackingNumber string
	// Status: paid для полученной оплаты, pending для отложенной. Пустое значение означает paid.
	Status model.OrderStatus
}

// FulfillmentResult описывает итог выполнения заказа.
type FulfillmentResult struct {
	OrderID int64
	// Created равен false, если заказ для сессии уже существовал и побочные эффекты не выполнялись.
	Created bool
	// StockShortfall содержит товары, остатка которых не хватило; их остаток обнулён.
	StockShortfall []int64
	// CouponMissing равен true, если купон из метаданных не найден.
	CouponMissing bool
	// CartCleared равен true, если исходная корзина покупателя очищена.
	CartCleared bool
	// Confirmed равен true, если ранее созданный заказ в ожидании оплаты переведён в paid.
	Confirmed bool
}

// FulfillOrder в одной транзакции создаёт заказ, списывает остатки, фиксирует использование купона,
// очищает корзину и помечает платёжное событие обработанным.
//
// Заказ вставляется с ON CONFLICT по идентификатору сессии: повторная доставка того же события
// не создаёт второго заказа и не повторяет остальные побочные эффекты. Если заказ уже существует
// в статусе pending, а пришло подтверждение оплаты, заказ переводится в paid.
func (r *PostgresRepository) FulfillOrder(ctx context.Context, in FulfillmentInput) (FulfillmentResult, error) {
	items, err := json.Marshal(in.Items)
	if err != nil {
		return FulfillmentResult{}, fmt.Errorf("encode items: %w", err)
	}
	address, err := encodeShippingAddress(in.Shipping)
	if err != nil {
		return FulfillmentResult{}, err
	}

	var userID *int64
	if in.UserID > 0 {
		userID = &in.UserID
	}
	var trackingNumber *string
	if in.TrackingNumber != "" {
		trackingNumber = &in.TrackingNumber
	}
	status := in.Status
	if status == "" {
		status = model.OrderStatusPaid
	}

	var res FulfillmentResult
	err = r.withRetry(ctx, func() error {
		res = FulfillmentResult{}
		return r.WithinTransaction(ctx, func(tx pgx.Tx) error {
			err := tx.QueryRow(ctx,
				`INSERT INTO orders (user_id, stripe_session_id, email, status, items, subtotal, discount,
				                     shipping_amount, tax, total, coupon_code, shipping_address, tracking_number)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
				 ON CONFLICT (stripe_session_id) DO NOTHING
				 RETURNING id`,
				userID, in.SessionID, in.Email, string(status), items, in.Subtotal, in.Discount,
				in.ShippingAmount, in.Tax, in.Total, in.CouponCode, address, trackingNumber,
			).Scan(&res.OrderID)

			if errors.Is(err, pgx.ErrNoRows) {
				if err := confirmExistingOrder(ctx, tx, in.SessionID, status, &res); err != nil {
					return err
				}
				return markEventProcessed(ctx, tx, in.SessionID)
			}
			if err != nil {
				return fmt.Errorf("insert order: %w", err)
			}
			res.Created = true

			if err := insertTrackingEvent(ctx, tx, res.OrderID, statusEvent(status)); err != nil {
				return err
			}

			for _, it := range in.Items {
				short, err := decrementStock(ctx, tx, it.ProductID, it.Quantity)
				if err != nil {
					return err
				}
				if short {
					res.StockShortfall = append(res.StockShortfall, it.ProductID)
				}
			}

			if in.CouponCode != "" {
				found, err := redeemCoupon(ctx, tx, in.CouponCode, userID, res.OrderID)
				if err != nil {
					return err
				}
				res.CouponMissing = !found
			}

			if in.CartID > 0 && userID != nil {
				tag, err := tx.Exec(ctx,
					`UPDATE carts SET coupon_code = NULL, updated_at = now() WHERE id = $1 AND user_id = $2`,
					in.CartID, *userID,
				)
				if err != nil {
					return fmt.Errorf("clear cart coupon: %w", err)
				}
				if tag.RowsAffected() == 1 {
					if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, in.CartID); err != nil {
						return fmt.Errorf("clear cart items: %w", err)
					}
					res.CartCleared = true
				}
			}

			return markEventProcessed(ctx, tx, in.SessionID)
		})
	})
	if err != nil {
		return FulfillmentResult{}, err
	}

	return res, nil
}

// confirmExistingOrder находит заказ повторно доставленной сессии и, если оплата
// подтверждена, переводит его из pending в paid.
func confirmExistingOrder(ctx context.Context, tx pgx.Tx, sessionID string, status model.OrderStatus, res *FulfillmentResult) error {
	var current string
	if err := tx.QueryRow(ctx,
		`SELECT id, status FROM orders WHERE stripe_session_id = $1 FOR UPDATE`,
		sessionID,
	).Scan(&res.OrderID, &current); err != nil {
		return fmt.Errorf("select existing order: %w", err)
	}

	if status != model.OrderStatusPaid || model.OrderStatus(current) != model.OrderStatusPending {
		return nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
		res.OrderID, string(model.OrderStatusPaid),
	); err != nil {
		return fmt.Errorf("confirm order: %w", err)
	}
	res.Confirmed = true
	return insertTrackingEvent(ctx, tx, res.OrderID, statusEvent(model.OrderStatusPaid))
}

func statusEvent(status model.OrderStatus) model.TrackingEvent {
	if status == model.OrderStatusPending {
		return model.TrackingEvent{Status: status, Description: "Awaiting payment confirmation"}
	}
	return model.TrackingEvent{Status: status, Description: "Payment confirmed"}
}

// CancelPendingOrder отменяет заказ сессии, оплата которой не прошла, и возвращает товары на склад.
// Заказы в других статусах не изменяются. Платёжное событие помечается обработанным в той же транзакции.
// Возвращает true, если заказ был отменён.
func (r *PostgresRepository) CancelPendingOrder(ctx context.Context, sessionID, reason string) (bool, error) {
	var cancelled bool
	err := r.withRetry(ctx, func() error {
		cancelled = false
		return r.WithinTransaction(ctx, func(tx pgx.Tx) error {
			var (
				orderID int64
				raw     []byte
			)
			err := tx.QueryRow(ctx,
				`SELECT id, items FROM orders WHERE stripe_session_id = $1 AND status = $2 FOR UPDATE`,
				sessionID, string(model.OrderStatusPending),
			).Scan(&orderID, &raw)
			if errors.Is(err, pgx.ErrNoRows) {
				return markEventProcessed(ctx, tx, sessionID)
			}
			if err != nil {
				return fmt.Errorf("select pending order: %w", err)
			}

			var items []model.OrderItem
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &items); err != nil {
					return fmt.Errorf("decode items: %w", err)
				}
			}

			if _, err := tx.Exec(ctx,
				`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
				orderID, string(model.OrderStatusCancelled),
			); err != nil {
				return fmt.Errorf("cancel order: %w", err)
			}

			for _, it := range items {
				if _, err := tx.Exec(ctx,
					`UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
					it.ProductID, it.Quantity,
				); err != nil {
					return fmt.Errorf("restock product %d: %w", it.ProductID, err)
				}
			}

			if err := insertTrackingEvent(ctx, tx, orderID, model.TrackingEvent{
				Status:      model.OrderStatusCancelled,
				Description: reason,
			}); err != nil {
				return err
			}

			cancelled = true
			return markEventProcessed(ctx, tx, sessionID)
		})
	})
	if err != nil {
		return false, err
	}
	return cancelled, nil
}

// decrementStock уменьшает остаток товара, не опуская его ниже нуля.
// Возвращает true, если остатка не хватило на всё количество.
func decrementStock(ctx context.Context, tx pgx.Tx, productID int64, quantity int) (bool, error) {
	var stock int
	err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id = $1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("lock product %d: %w", productID, err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE products SET stock = GREATEST(stock - $2, 0), updated_at = now() WHERE id = $1`,
		productID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("decrement stock %d: %w", productID, err)
	}

	return stock < quantity, nil
}

// redeemCoupon фиксирует использование купона заказом. Счётчик увеличивается не более одного раза на заказ.
func redeemCoupon(ctx context.Context, tx pgx.Tx, code string, userID *int64, orderID int64) (bool, error) {
	var couponID int64
	err := tx.QueryRow(ctx, `SELECT id FROM coupons WHERE code = $1`, code).Scan(&couponID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select coupon: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO coupon_usages (coupon_id, user_id, order_id) VALUES ($1, $2, $3)
		 ON CONFLICT (coupon_id, order_id) DO NOTHING`,
		couponID, userID, orderID,
	)
	if err != nil {
		return false, fmt.Errorf("insert coupon usage: %w", err)
	}

	if tag.RowsAffected() == 1 {
		if _, err := tx.Exec(ctx, `UPDATE coupons SET used_count = used_count + 1 WHERE id = $1`, couponID); err != nil {
			return false, fmt.Errorf("increment coupon usage: %w", err)
		}
	}

	return true, nil
}

func markEventProcessed(ctx context.Context, q querier, sessionID string) error {
	_, err := q.Exec(ctx,
		`UPDATE payment_events SET processed_at = now(), attempts = attempts + 1, last_error = ''
		 WHERE session_id = $1 AND processed_at IS NULL`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("mark payment event processed: %w", err)
	}
	return nil
}
