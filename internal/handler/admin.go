package handler

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/service"
)

// ListUsers возвращает страницу пользователей.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := queryInt(r, "page"), queryInt(r, "limit")
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	users, total, err := h.service.ListUsers(r.Context(), page, limit)
	if err != nil {
		h.writeServiceError(w, err, "list users error")
		return
	}

	resp := pageResponse[userResponse]{Items: make([]userResponse, 0, len(users)), Total: total, Page: page, Limit: limit}
	for i := range users {
		resp.Items = append(resp.Items, newUserResponse(&users[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

type roleRequest struct {
	Role model.Role `json:"role"`
}

// UpdateUserRole меняет роль пользователя.
func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req roleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	if err := h.service.UpdateUserRole(r.Context(), id, req.Role); err != nil {
		h.writeServiceError(w, err, "update user role error", zap.Int64("userID", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminGetProduct возвращает товар со всеми полями, включая минимальную цену.
func (h *Handler) AdminGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), id, true)
	if err != nil {
		h.writeServiceError(w, err, "get product error", zap.Int64("productID", id))
		return
	}
	writeJSON(w, http.StatusOK, newAdminProductResponse(*p))
}

// AdminListProducts возвращает товары каталога, включая снятые с продажи.
func (h *Handler) AdminListProducts(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListProducts(r.Context(), productFilterFromQuery(r))
	if err != nil {
		h.writeServiceError(w, err, "list products error")
		return
	}

	resp := pageResponse[adminProductResponse]{
		Items: make([]adminProductResponse, 0, len(page.Products)),
		Total: page.Total,
		Page:  page.Page,
		Limit: page.Limit,
	}
	for _, p := range page.Products {
		resp.Items = append(resp.Items, newAdminProductResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateProduct добавляет товар в каталог.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	p, err := h.service.CreateProduct(r.Context(), req.toModel(0))
	if err != nil {
		h.writeServiceError(w, err, "create product error")
		return
	}
	writeJSON(w, http.StatusCreated, newAdminProductResponse(*p))
}

// UpdateProduct изменяет товар каталога.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), req.toModel(id))
	if err != nil {
		h.writeServiceError(w, err, "update product error", zap.Int64("productID", id))
		return
	}
	writeJSON(w, http.StatusOK, newAdminProductResponse(*p))
}

// DeleteProduct снимает товар с продажи.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "delete product error", zap.Int64("productID", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func newAdminOrderResponse(o model.Order) adminOrderResponse {
	return adminOrderResponse{orderResponse: newOrderResponse(o), UserID: o.UserID, StripeSessionID: o.StripeSessionID}
}

// AdminListOrders возвращает страницу заказов с фильтром по статусу.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	f := model.OrderFilter{
		Status: model.OrderStatus(r.URL.Query().Get("status")),
		Page:   queryInt(r, "page"),
		Limit:  queryInt(r, "limit"),
	}

	orders, total, err := h.service.ListOrders(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, err, "list orders error")
		return
	}

	resp := pageResponse[adminOrderResponse]{Items: make([]adminOrderResponse, 0, len(orders)), Total: total, Page: f.Page, Limit: f.Limit}
	for _, o := range orders {
		resp.Items = append(resp.Items, newAdminOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AdminGetOrder возвращает любой заказ.
func (h *Handler) AdminGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	o, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get order error", zap.Int64("orderID", id))
		return
	}
	writeJSON(w, http.StatusOK, newAdminOrderResponse(*o))
}

type statusRequest struct {
	Status   model.OrderStatus `json:"status"`
	Location string            `json:"location"`
	Note     string            `json:"note"`
}

// UpdateOrderStatus меняет статус заказа и добавляет запись в историю доставки.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	o, err := h.service.UpdateOrderStatus(r.Context(), id, req.Status, req.Location, req.Note)
	if err != nil {
		h.writeServiceError(w, err, "update order status error", zap.Int64("orderID", id))
		return
	}
	writeJSON(w, http.StatusOK, newAdminOrderResponse(*o))
}

type trackingRequest struct {
	Carrier           string     `json:"carrier"`
	TrackingNumber    string     `json:"tracking_number"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
	Location          string     `json:"location"`
	Description       string     `json:"description"`
}

// UpdateOrderTracking меняет данные перевозчика заказа.
func (h *Handler) UpdateOrderTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req trackingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	o, err := h.service.UpdateOrderTracking(r.Context(), id, service.TrackingInput(req))
	if err != nil {
		h.writeServiceError(w, err, "update order tracking error", zap.Int64("orderID", id))
		return
	}
	writeJSON(w, http.StatusOK, newAdminOrderResponse(*o))
}

// ListCoupons возвращает все купоны.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.service.ListCoupons(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "list coupons error")
		return
	}

	resp := make([]couponResponse, 0, len(coupons))
	for _, c := range coupons {
		resp = append(resp, newCouponResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateCoupon создаёт купон.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	c, err := h.service.CreateCoupon(r.Context(), req.toModel(0))
	if err != nil {
		h.writeServiceError(w, err, "create coupon error")
		return
	}
	writeJSON(w, http.StatusCreated, newCouponResponse(*c))
}

// UpdateCoupon изменяет купон.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req couponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	c, err := h.service.UpdateCoupon(r.Context(), req.toModel(id))
	if err != nil {
		h.writeServiceError(w, err, "update coupon error", zap.Int64("couponID", id))
		return
	}
	writeJSON(w, http.StatusOK, newCouponResponse(*c))
}

// DeleteCoupon деактивирует купон.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteCoupon(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "delete coupon error", zap.Int64("couponID", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSettings возвращает все настройки магазина.
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Settings())
}

// UpdateSettings сохраняет настройки магазина.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req model.StoreSettings
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	s, err := h.service.UpdateSettings(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "update settings error")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Stats возвращает сводку для панели администратора.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "stats error")
		return
	}
	writeJSON(w, http.StatusOK, statsResponse(st))
}
