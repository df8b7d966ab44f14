package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/storefront/internal/model"
)

const paymentEventColumns = `session_id, event_id, payload, attempts, last_error, processed_at, created_at`

func scanPaymentEvent(row pgx.Row) (*model.PaymentEvent, error) {
	var ev model.PaymentEvent
	err := row.Scan(&ev.SessionID, &ev.EventID, &ev.Payload, &ev.Attempts, &ev.LastError, &ev.ProcessedAt, &ev.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// RecordPaymentEvent сохраняет проверенное событие оплаты до его обработки.
// Новое событие той же сессии (например, подтверждение отложенной оплаты) заменяет
// сохранённое и снова ставится в очередь. Возвращает false, если это событие уже было сохранено.
func (r *PostgresRepository) RecordPaymentEvent(ctx context.Context, ev model.PaymentEvent) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO payment_events (session_id, event_id, payload) VALUES ($1, $2, $3)
		 ON CONFLICT (session_id) DO UPDATE
		 SET event_id = EXCLUDED.event_id, payload = EXCLUDED.payload,
		     attempts = 0, last_error = '', processed_at = NULL
		 WHERE payment_events.event_id <> EXCLUDED.event_id`,
		ev.SessionID, ev.EventID, ev.Payload,
	)
	if err != nil {
		return false, fmt.Errorf("insert payment event: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListPendingPaymentEvents возвращает необработанные события, число попыток которых меньше maxAttempts.
func (r *PostgresRepository) ListPendingPaymentEvents(ctx context.Context, maxAttempts, limit int) ([]model.PaymentEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentEventColumns+`
		 FROM payment_events
		 WHERE processed_at IS NULL AND attempts < $1
		 ORDER BY created_at
		 LIMIT $2`,
		maxAttempts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending payment events: %w", err)
	}
	defer rows.Close()

	var res []model.PaymentEvent
	for rows.Next() {
		ev, err := scanPaymentEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment event: %w", err)
		}
		res = append(res, *ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// MarkPaymentEventFailed увеличивает счётчик попыток и сохраняет текст последней ошибки.
func (r *PostgresRepository) MarkPaymentEventFailed(ctx context.Context, sessionID, lastError string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE payment_events SET attempts = attempts + 1, last_error = $2 WHERE session_id = $1`,
		sessionID, lastError,
	)
	if err != nil {
		return fmt.Errorf("mark payment event failed: %w", err)
	}
	return nil
}
