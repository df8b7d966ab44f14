package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/service"
)

const maxWebhookBody = 1 << 20

type checkoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateCheckoutSession создаёт платёжную сессию для содержимого корзины.
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	session, err := h.service.CreateCartCheckout(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "create checkout session error", zap.Int64("userID", userID))
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{SessionID: session.ID, URL: session.URL})
}

type singleCheckoutRequest struct {
	ProductID  int64  `json:"product_id"`
	Quantity   int    `json:"quantity"`
	Variant    string `json:"variant"`
	CouponCode string `json:"coupon_code"`
}

// CreateSingleCheckout создаёт платёжную сессию для покупки одного товара.
func (h *Handler) CreateSingleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req singleCheckoutRequest
	if err := decodeJSON(r, &req); err != nil || req.ProductID <= 0 {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	session, err := h.service.CreateSingleCheckout(r.Context(), userID, service.SingleCheckout(req))
	if err != nil {
		h.writeServiceError(w, err, "create single checkout error", zap.Int64("userID", userID), zap.Int64("productID", req.ProductID))
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{SessionID: session.ID, URL: session.URL})
}

type webhookResponse struct {
	Received bool `json:"received"`
}

// Webhook принимает события платёжного провайдера.
// Неверная подпись отклоняется с 400, остальные ошибки логируются и подтверждаются 200:
// неудачное выполнение заказа повторяется фоновым процессом.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	err = h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidWebhook) {
			h.logger.Warn("rejected webhook", zap.Error(err))
			writeError(w, http.StatusBadRequest, "invalid signature")
			return
		}
		h.logger.Error("webhook processing error", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, webhookResponse{Received: true})
}

// ListOrders возвращает заказы текущего пользователя.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListUserOrders(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "list orders error", zap.Int64("userID", userID))
		return
	}
	writeJSON(w, http.StatusOK, newOrdersResponse(orders))
}

// GetOrder возвращает заказ текущего пользователя.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	o, err := h.service.GetUserOrder(r.Context(), userID, orderID)
	if err != nil {
		h.writeServiceError(w, err, "get order error", zap.Int64("userID", userID), zap.Int64("orderID", orderID))
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(*o))
}

// GetSessionOrder возвращает заказ, созданный по платёжной сессии, для страницы успешной оплаты.
// Пока уведомление провайдера не обработано, ответ 404 и клиент повторяет запрос.
func (h *Handler) GetSessionOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")

	o, err := h.service.GetOrderBySession(r.Context(), userID, sessionID)
	if err != nil {
		h.writeServiceError(w, err, "get session order error", zap.Int64("userID", userID), zap.String("sessionID", sessionID))
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(*o))
}

// GetOrderTracking возвращает ход доставки заказа текущего пользователя.
func (h *Handler) GetOrderTracking(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	view, err := h.service.GetOrderTracking(r.Context(), userID, orderID)
	if err != nil {
		h.writeServiceError(w, err, "get order tracking error", zap.Int64("userID", userID), zap.Int64("orderID", orderID))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// TrackOrder возвращает публичный статус доставки по трек-номеру без данных покупателя.
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "trackingNumber")

	view, err := h.service.TrackPublic(r.Context(), number)
	if err != nil {
		h.writeServiceError(w, err, "track order error", zap.String("trackingNumber", number))
		return
	}
	writeJSON(w, http.StatusOK, view)
}
