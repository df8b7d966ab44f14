package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/tracking"
	"github.com/mmeshcher/storefront/internal/validation"
)

// ListUserOrders возвращает заказы пользователя.
func (s *Service) ListUserOrders(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID)
}

// GetUserOrder возвращает заказ, если он принадлежит пользователю.
// Чужой заказ неотличим от несуществующего.
func (s *Service) GetUserOrder(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

// GetOrderBySession возвращает заказ пользователя, созданный по платёжной сессии.
// Пока уведомление об оплате не обработано, возвращается ErrNotFound.
func (s *Service) GetOrderBySession(ctx context.Context, userID int64, sessionID string) (*model.Order, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, repository.ErrNotFound
	}
	o, err := s.repo.GetOrderBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return o, nil
}

// GetOrderTracking возвращает хронологию доставки заказа пользователя.
func (s *Service) GetOrderTracking(ctx context.Context, userID, orderID int64) (*tracking.View, error) {
	o, err := s.GetUserOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	v := tracking.Build(*o)
	return &v, nil
}

// TrackPublic ищет заказ по трек-номеру и возвращает сокращённую проекцию без данных покупателя.
func (s *Service) TrackPublic(ctx context.Context, trackingNumber string) (*tracking.PublicView, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if !validation.IsValidTrackingNumber(trackingNumber) {
		return nil, repository.ErrNotFound
	}
	o, err := s.repo.GetOrderByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	v := tracking.Public(*o)
	return &v, nil
}

// ListOrders возвращает страницу заказов для административного раздела.
func (s *Service) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	return s.repo.ListOrders(ctx, f)
}

// GetOrder возвращает любой заказ.
func (s *Service) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// UpdateOrderStatus меняет статус заказа и дописывает запись в историю.
func (s *Service) UpdateOrderStatus(ctx context.Context, id int64, status model.OrderStatus, location, note string) (*model.Order, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	err := s.repo.UpdateOrderStatus(ctx, id, model.TrackingEvent{
		Status:      status,
		Location:    strings.TrimSpace(location),
		Description: strings.TrimSpace(note),
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetOrder(ctx, id)
}

// TrackingInput описывает изменение данных доставки из административного раздела.
// Пустые поля сохраняют текущие значения.
type TrackingInput struct {
	Carrier           string
	TrackingNumber    string
	EstimatedDelivery *time.Time
	Location          string
	Description       string
}

// UpdateOrderTracking обновляет данные доставки заказа.
func (s *Service) UpdateOrderTracking(ctx context.Context, id int64, in TrackingInput) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	in.TrackingNumber = strings.TrimSpace(in.TrackingNumber)
	if in.TrackingNumber != "" && !validation.IsValidTrackingNumber(in.TrackingNumber) {
		return nil, fmt.Errorf("%w: tracking number", ErrInvalidInput)
	}

	u := repository.TrackingUpdate{
		Carrier:           strings.TrimSpace(in.Carrier),
		TrackingNumber:    in.TrackingNumber,
		EstimatedDelivery: in.EstimatedDelivery,
	}
	if o.Shipping != nil {
		if u.Carrier == "" {
			u.Carrier = o.Shipping.Carrier
		}
		if u.TrackingNumber == "" {
			u.TrackingNumber = o.Shipping.TrackingNumber
		}
		if u.EstimatedDelivery == nil {
			u.EstimatedDelivery = o.Shipping.EstimatedDelivery
		}
	}

	location, description := strings.TrimSpace(in.Location), strings.TrimSpace(in.Description)
	if location != "" || description != "" {
		u.Event = &model.TrackingEvent{Status: o.Status, Location: location, Description: description}
	}

	if err := s.repo.UpdateOrderTracking(ctx, id, u); err != nil {
		return nil, err
	}
	return s.repo.GetOrder(ctx, id)
}

// Stats возвращает сводку для панели администратора.
func (s *Service) Stats(ctx context.Context) (model.StoreStats, error) {
	return s.repo.Stats(ctx)
}
