package handler

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
)

func productFilterFromQuery(r *http.Request) model.ProductFilter {
	q := r.URL.Query()
	f := model.ProductFilter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Sort:     q.Get("sort"),
		Page:     queryInt(r, "page"),
		Limit:    queryInt(r, "limit"),
	}
	if v, err := strconv.ParseInt(q.Get("min_price"), 10, 64); err == nil {
		f.MinPrice = &v
	}
	if v, err := strconv.ParseInt(q.Get("max_price"), 10, 64); err == nil {
		f.MaxPrice = &v
	}
	return f
}

// ListProducts возвращает страницу активных товаров каталога.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f := productFilterFromQuery(r)
	f.OnlyActive = true

	page, err := h.service.ListProducts(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, err, "list products error")
		return
	}

	writeJSON(w, http.StatusOK, pageResponse[productResponse]{
		Items: newProductsResponse(page.Products),
		Total: page.Total,
		Page:  page.Page,
		Limit: page.Limit,
	})
}

type productDetailResponse struct {
	productResponse
	Reviews []reviewResponse `json:"reviews"`
}

// GetProduct возвращает карточку товара вместе с отзывами.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.service.GetProduct(r.Context(), id, false)
	if err != nil {
		h.writeServiceError(w, err, "get product error", zap.Int64("productID", id))
		return
	}

	reviews, err := h.service.ListReviews(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "list reviews error", zap.Int64("productID", id))
		return
	}

	resp := productDetailResponse{productResponse: newProductResponse(*p), Reviews: make([]reviewResponse, 0, len(reviews))}
	for _, rv := range reviews {
		resp.Reviews = append(resp.Reviews, newReviewResponse(rv))
	}
	writeJSON(w, http.StatusOK, resp)
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// AddReview сохраняет отзыв текущего пользователя о товаре.
func (h *Handler) AddReview(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	productID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	rv, err := h.service.AddReview(r.Context(), userID, productID, req.Rating, req.Comment)
	if err != nil {
		h.writeServiceError(w, err, "add review error", zap.Int64("userID", userID), zap.Int64("productID", productID))
		return
	}
	writeJSON(w, http.StatusCreated, newReviewResponse(*rv))
}
