package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront/internal/model"
)

const orderColumns = `id, user_id, stripe_session_id, email, status, items, subtotal, discount, shipping_amount, tax,
	total, coupon_code, shipping_address, carrier, tracking_number, estimated_delivery, created_at, updated_at`

// shippingAddress хранится в JSONB; данные перевозчика лежат в отдельных колонках.
type shippingAddress struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func encodeShippingAddress(s *model.Shipping) ([]byte, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(shippingAddress{
		Name:       s.Name,
		Line1:      s.Line1,
		Line2:      s.Line2,
		City:       s.City,
		State:      s.State,
		PostalCode: s.PostalCode,
		Country:    s.Country,
	})
	if err != nil {
		return nil, fmt.Errorf("encode shipping address: %w", err)
	}
	return data, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o              model.Order
		userID         *int64
		status         string
		items          []byte
		address        []byte
		carrier        string
		trackingNumber *string
		eta            *time.Time
	)
	err := row.Scan(&o.ID, &userID, &o.StripeSessionID, &o.Email, &status, &items,
		&o.Subtotal, &o.Discount, &o.ShippingAmount, &o.Tax, &o.Total, &o.CouponCode,
		&address, &carrier, &trackingNumber, &eta, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if userID != nil {
		o.UserID = *userID
	}
	o.Status = model.OrderStatus(status)

	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
	}

	if len(address) > 0 || carrier != "" || trackingNumber != nil || eta != nil {
		o.Shipping = &model.Shipping{Carrier: carrier, EstimatedDelivery: eta}
		if trackingNumber != nil {
			o.Shipping.TrackingNumber = *trackingNumber
		}
		if len(address) > 0 {
			var a shippingAddress
			if err := json.Unmarshal(address, &a); err != nil {
				return nil, fmt.Errorf("decode shipping address: %w", err)
			}
			o.Shipping.Name = a.Name
			o.Shipping.Line1 = a.Line1
			o.Shipping.Line2 = a.Line2
			o.Shipping.City = a.City
			o.Shipping.State = a.State
			o.Shipping.PostalCode = a.PostalCode
			o.Shipping.Country = a.Country
		}
	}

	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	var res []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		res = append(res, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// ListOrdersByUser возвращает заказы пользователя, новые сначала.
func (r *PostgresRepository) ListOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return collectOrders(rows)
}

// ListOrders возвращает страницу заказов для администратора и их общее количество.
func (r *PostgresRepository) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, int, error) {
	limit, offset := pageArgs(f.Page, f.Limit)
	status := string(f.Status)

	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE $1 = '' OR status = $1`,
		status,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE $1 = '' OR status = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`,
		status, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select orders: %w", err)
	}

	res, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

// GetOrder возвращает заказ вместе с историей отслеживания.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return r.getOrderWithHistory(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetOrderByTrackingNumber возвращает заказ по трек-номеру.
func (r *PostgresRepository) GetOrderByTrackingNumber(ctx context.Context, trackingNumber string) (*model.Order, error) {
	return r.getOrderWithHistory(ctx, `SELECT `+orderColumns+` FROM orders WHERE tracking_number = $1`, trackingNumber)
}

// GetOrderBySession возвращает заказ по идентификатору платёжной сессии.
func (r *PostgresRepository) GetOrderBySession(ctx context.Context, sessionID string) (*model.Order, error) {
	return r.getOrderWithHistory(ctx, `SELECT `+orderColumns+` FROM orders WHERE stripe_session_id = $1`, sessionID)
}

func (r *PostgresRepository) getOrderWithHistory(ctx context.Context, query string, arg any) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT status, location, description, created_at
		 FROM order_tracking_events
		 WHERE order_id = $1
		 ORDER BY created_at, id`,
		o.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("select tracking events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ev     model.TrackingEvent
			status string
		)
		if err := rows.Scan(&status, &ev.Location, &ev.Description, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("scan tracking event: %w", err)
		}
		ev.Status = model.OrderStatus(status)
		o.History = append(o.History, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return o, nil
}

func insertTrackingEvent(ctx context.Context, q querier, orderID int64, ev model.TrackingEvent) error {
	_, err := q.Exec(ctx,
		`INSERT INTO order_tracking_events (order_id, status, location, description) VALUES ($1, $2, $3, $4)`,
		orderID, string(ev.Status), ev.Location, ev.Description,
	)
	if err != nil {
		return fmt.Errorf("insert tracking event: %w", err)
	}
	return nil
}

// UpdateOrderStatus меняет статус заказа и дописывает событие в историю отслеживания.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id int64, ev model.TrackingEvent) error {
	return r.withRetry(ctx, func() error {
		return r.WithinTransaction(ctx, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx,
				`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
				id, string(ev.Status),
			)
			if err != nil {
				return fmt.Errorf("update order status: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
			return insertTrackingEvent(ctx, tx, id, ev)
		})
	})
}

// TrackingUpdate описывает изменение данных доставки заказа.
type TrackingUpdate struct {
	Carrier           string
	TrackingNumber    string
	EstimatedDelivery *time.Time
	Event             *model.TrackingEvent
}

// UpdateOrderTracking обновляет перевозчика, трек-номер и срок доставки; при наличии дописывает событие.
func (r *PostgresRepository) UpdateOrderTracking(ctx context.Context, id int64, u TrackingUpdate) error {
	var trackingNumber *string
	if u.TrackingNumber != "" {
		trackingNumber = &u.TrackingNumber
	}

	return r.withRetry(ctx, func() error {
		return r.WithinTransaction(ctx, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx,
				`UPDATE orders
				 SET carrier = $2, tracking_number = $3, estimated_delivery = $4, updated_at = now()
				 WHERE id = $1`,
				id, u.Carrier, trackingNumber, u.EstimatedDelivery,
			)
			if err != nil {
				if isUniqueViolation(err) {
					return ErrTrackingNumberTaken
				}
				return fmt.Errorf("update tracking: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return ErrNotFound
			}
			if u.Event == nil {
				return nil
			}
			return insertTrackingEvent(ctx, tx, id, *u.Event)
		})
	})
}

// Stats возвращает сводку по магазину. Выручка учитывает только невозвращённые и неотменённые заказы.
func (r *PostgresRepository) Stats(ctx context.Context) (model.StoreStats, error) {
	var s model.StoreStats
	err := r.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM users),
		   (SELECT COUNT(*) FROM products WHERE active),
		   (SELECT COUNT(*) FROM orders),
		   (SELECT COALESCE(SUM(total), 0) FROM orders WHERE status NOT IN ($1, $2)),
		   (SELECT COUNT(*) FROM orders WHERE status IN ($3, $4))`,
		string(model.OrderStatusCancelled), string(model.OrderStatusRefunded),
		string(model.OrderStatusPaid), string(model.OrderStatusProcessing),
	).Scan(&s.Users, &s.Products, &s.Orders, &s.Revenue, &s.PendingShip)
	if err != nil {
		return s, fmt.Errorf("select stats: %w", err)
	}
	return s, nil
}
