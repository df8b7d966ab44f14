package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/payment"
	"github.com/mmeshcher/storefront/internal/pricing"
	"github.com/mmeshcher/storefront/internal/repository"
)

const pendingBatchSize = 50

// HandleWebhook проверяет подпись уведомления провайдера и обрабатывает событие.
// Ошибка подписи оборачивается в ErrInvalidWebhook; до проверки подписи ничего не изменяется.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.gateway.ParseWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWebhook, err)
	}
	return s.HandlePaymentEvent(ctx, ev)
}

// HandlePaymentEvent сохраняет проверенное событие сессии в outbox и обрабатывает его.
// Неудачная попытка остаётся в outbox и будет повторена фоновым процессом.
func (s *Service) HandlePaymentEvent(ctx context.Context, ev *payment.Event) error {
	if !payment.IsSessionEvent(ev.Type) {
		s.logger.Debug("payment event ignored", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
		return nil
	}
	if ev.SessionID == "" {
		return fmt.Errorf("%w: event %s has no session", ErrInvalidInput, ev.ID)
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode payment event: %w", err)
	}

	inserted, err := s.repo.RecordPaymentEvent(ctx, model.PaymentEvent{
		SessionID: ev.SessionID,
		EventID:   ev.ID,
		Payload:   raw,
	})
	if err != nil {
		return err
	}
	if !inserted {
		s.logger.Info("payment event redelivered", zap.String("session_id", ev.SessionID), zap.String("event_id", ev.ID))
	}

	return s.process(ctx, ev)
}

// process выполняет заказ либо отменяет его, если отложенная оплата не прошла.
func (s *Service) process(ctx context.Context, ev *payment.Event) error {
	if ev.Type != payment.EventAsyncPaymentFailed {
		return s.fulfill(ctx, ev)
	}

	log := s.logger.With(zap.String("session_id", ev.SessionID))
	cancelled, err := s.repo.CancelPendingOrder(ctx, ev.SessionID, "Payment failed")
	if err != nil {
		if markErr := s.repo.MarkPaymentEventFailed(ctx, ev.SessionID, err.Error()); markErr != nil {
			log.Error("failed to record fulfillment failure", zap.Error(markErr))
		}
		return fmt.Errorf("cancel order: %w", err)
	}
	if cancelled {
		log.Info("order cancelled after failed payment")
	}
	return nil
}

func (s *Service) fulfill(ctx context.Context, ev *payment.Event) error {
	log := s.logger.With(zap.String("session_id", ev.SessionID))

	md, err := payment.DecodeMetadata(ev.Metadata)
	if err != nil {
		log.Warn("session metadata is malformed, fulfilling with partial data", zap.Error(err))
	}
	if md.UserID == 0 && ev.ClientReferenceID != "" {
		if id, err := strconv.ParseInt(ev.ClientReferenceID, 10, 64); err == nil && id > 0 {
			md.UserID = id
		}
	}

	status := model.OrderStatusPaid
	if !ev.Paid() {
		status = model.OrderStatusPending
	}

	subtotal := pricing.Subtotal(md.Items)
	charged := ev.Charged()

	email := ev.Email
	if email == "" {
		email = md.Email
	}

	res, err := s.repo.FulfillOrder(ctx, repository.FulfillmentInput{
		SessionID:      ev.SessionID,
		UserID:         md.UserID,
		CartID:         md.CartID,
		Email:          email,
		Items:          md.Items,
		Subtotal:       subtotal,
		Discount:       pricing.DiscountFromCharged(subtotal+md.Tax, charged),
		ShippingAmount: ev.ShippingAmount,
		Tax:            md.Tax,
		Total:          ev.AmountTotal,
		Status:         status,
		CouponCode:     md.CouponCode,
		Shipping:       ev.Shipping,
		TrackingNumber: s.newTrackingNumber(),
	})
	if err != nil {
		if markErr := s.repo.MarkPaymentEventFailed(ctx, ev.SessionID, err.Error()); markErr != nil {
			log.Error("failed to record fulfillment failure", zap.Error(markErr))
		}
		return fmt.Errorf("fulfill order: %w", err)
	}

	if res.Confirmed {
		log.Info("order payment confirmed", zap.Int64("order_id", res.OrderID))
		return nil
	}
	if !res.Created {
		log.Info("order already fulfilled", zap.Int64("order_id", res.OrderID))
		return nil
	}

	log.Info("order fulfilled",
		zap.Int64("order_id", res.OrderID),
		zap.String("status", string(status)),
		zap.Int64("subtotal", subtotal),
		zap.Int64("charged", charged),
		zap.Bool("cart_cleared", res.CartCleared),
	)
	if len(res.StockShortfall) > 0 {
		log.Warn("stock shortfall after payment", zap.Int64("order_id", res.OrderID), zap.Int64s("product_ids", res.StockShortfall))
	}
	if res.CouponMissing {
		log.Warn("coupon from session not found", zap.Int64("order_id", res.OrderID), zap.String("code", md.CouponCode))
	}
	return nil
}

// FulfillPending повторно выполняет сохранённые, но не обработанные события.
// Возвращает число успешно обработанных событий.
func (s *Service) FulfillPending(ctx context.Context) (int, error) {
	events, err := s.repo.ListPendingPaymentEvents(ctx, s.opts.MaxFulfillmentAttempts, pendingBatchSize)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, pe := range events {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}

		var ev payment.Event
		if err := json.Unmarshal(pe.Payload, &ev); err != nil {
			s.logger.Error("stored payment event is unreadable", zap.String("session_id", pe.SessionID), zap.Error(err))
			if markErr := s.repo.MarkPaymentEventFailed(ctx, pe.SessionID, err.Error()); markErr != nil {
				s.logger.Error("failed to record fulfillment failure", zap.Error(markErr))
			}
			continue
		}

		if err := s.process(ctx, &ev); err != nil {
			s.logger.Warn("fulfillment retry failed",
				zap.String("session_id", pe.SessionID),
				zap.Int("attempt", pe.Attempts+1),
				zap.Error(err),
			)
			continue
		}
		done++
	}
	return done, nil
}

// StartFulfillmentRetries запускает фоновый процесс повторного выполнения заказов.
func (s *Service) StartFulfillmentRetries(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.FulfillPending(ctx)
				if err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Error("fulfillment retry batch failed", zap.Error(err))
					continue
				}
				if n > 0 {
					s.logger.Info("pending orders fulfilled", zap.Int("count", n))
				}
			}
		}
	}()
}
