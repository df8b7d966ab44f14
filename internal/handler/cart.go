package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/service"
)

func (h *Handler) writeCart(w http.ResponseWriter, status int, summary *service.CartSummary) {
	writeJSON(w, status, newCartResponse(summary))
}

// GetCart возвращает корзину текущего пользователя с итогами.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "get cart error", zap.Int64("userID", userID))
		return
	}
	h.writeCart(w, http.StatusOK, summary)
}

type cartItemRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant"`
}

// AddCartItem добавляет товар в корзину.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil || req.ProductID <= 0 {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	summary, err := h.service.AddToCart(r.Context(), userID, req.ProductID, req.Variant, req.Quantity)
	if err != nil {
		h.writeServiceError(w, err, "add cart item error", zap.Int64("userID", userID), zap.Int64("productID", req.ProductID))
		return
	}
	h.writeCart(w, http.StatusOK, summary)
}

// UpdateCartItem меняет количество товара в корзине. Нулевое количество удаляет позицию.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	summary, err := h.service.UpdateCartItem(r.Context(), userID, productID, req.Variant, req.Quantity)
	if err != nil {
		h.writeServiceError(w, err, "update cart item error", zap.Int64("userID", userID), zap.Int64("productID", productID))
		return
	}
	h.writeCart(w, http.StatusOK, summary)
}

// RemoveCartItem удаляет позицию из корзины. Вариант передаётся параметром variant.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	summary, err := h.service.RemoveCartItem(r.Context(), userID, productID, r.URL.Query().Get("variant"))
	if err != nil {
		h.writeServiceError(w, err, "remove cart item error", zap.Int64("userID", userID), zap.Int64("productID", productID))
		return
	}
	h.writeCart(w, http.StatusOK, summary)
}

// ClearCart очищает корзину.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.ClearCart(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "clear cart error", zap.Int64("userID", userID))
		return
	}
	h.writeCart(w, http.StatusOK, summary)
}

type couponCodeRequest struct {
	Code     string `json:"code"`
	Subtotal *int64 `json:"subtotal,omitempty"`
}

// ApplyCoupon применяет купон к корзине.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req couponCodeRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "coupon code is required")
		return
	}

	summary, err := h.service.ApplyCoupon(r.Context(), userID, req.Code)
	if err != nil {
		h.writeServiceError(w, err, "apply coupon error", zap.Int64("userID", userID))
		return
	}
	h.writeCart(w, http.StatusOK, summary)
}

// RemoveCoupon снимает купон с корзины.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.RemoveCoupon(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "remove coupon error", zap.Int64("userID", userID))
		return
	}
	h.writeCart(w, http.StatusOK, summary)
}

type couponQuoteResponse struct {
	Code     string `json:"code"`
	Type     string `json:"type"`
	Value    int64  `json:"value"`
	Subtotal int64  `json:"subtotal"`
	Discount int64  `json:"discount"`
	Total    int64  `json:"total"`
}

// ValidateCoupon проверяет купон без применения. Без суммы в запросе используется сумма корзины.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req couponCodeRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Code) == "" {
		writeError(w, http.StatusBadRequest, "coupon code is required")
		return
	}

	var subtotal int64
	if req.Subtotal != nil {
		subtotal = *req.Subtotal
	} else {
		summary, err := h.service.GetCart(r.Context(), userID)
		if err != nil {
			h.writeServiceError(w, err, "get cart error", zap.Int64("userID", userID))
			return
		}
		subtotal = summary.Subtotal
	}

	quote, err := h.service.ValidateCoupon(r.Context(), userID, req.Code, subtotal)
	if err != nil {
		h.writeServiceError(w, err, "validate coupon error", zap.Int64("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, couponQuoteResponse{
		Code:     quote.Coupon.Code,
		Type:     string(quote.Coupon.Type),
		Value:    quote.Coupon.Value,
		Subtotal: quote.Subtotal,
		Discount: quote.Discount,
		Total:    quote.Subtotal - quote.Discount,
	})
}
