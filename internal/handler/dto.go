package handler

import (
	"time"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/pricing"
	"github.com/mmeshcher/storefront/internal/service"
)

type userResponse struct {
	ID        int64      `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      model.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

func newUserResponse(u *model.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
}

// productResponse не содержит минимальной цены: она нужна только при торге за купон.
type productResponse struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	Images          []string  `json:"images"`
	Variants        []string  `json:"variants"`
	Price           int64     `json:"price"`
	DiscountedPrice *int64    `json:"discounted_price,omitempty"`
	EffectivePrice  int64     `json:"effective_price"`
	Stock           int       `json:"stock"`
	Active          bool      `json:"active"`
	Rating          float64   `json:"rating"`
	ReviewCount     int       `json:"review_count"`
	CreatedAt       time.Time `json:"created_at"`
}

func newProductResponse(p model.Product) productResponse {
	images, variants := p.Images, p.Variants
	if images == nil {
		images = []string{}
	}
	if variants == nil {
		variants = []string{}
	}
	return productResponse{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Category:        p.Category,
		Images:          images,
		Variants:        variants,
		Price:           p.Price,
		DiscountedPrice: p.DiscountedPrice,
		EffectivePrice:  pricing.UnitPrice(p),
		Stock:           p.Stock,
		Active:          p.Active,
		Rating:          p.Rating,
		ReviewCount:     p.ReviewCount,
		CreatedAt:       p.CreatedAt,
	}
}

func newProductsResponse(products []model.Product) []productResponse {
	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, newProductResponse(p))
	}
	return resp
}

type adminProductResponse struct {
	productResponse
	FloorPrice *int64    `json:"floor_price,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func newAdminProductResponse(p model.Product) adminProductResponse {
	return adminProductResponse{productResponse: newProductResponse(p), FloorPrice: p.FloorPrice, UpdatedAt: p.UpdatedAt}
}

type productRequest struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Images          []string `json:"images"`
	Variants        []string `json:"variants"`
	Price           int64    `json:"price"`
	DiscountedPrice *int64   `json:"discounted_price"`
	FloorPrice      *int64   `json:"floor_price"`
	Stock           int      `json:"stock"`
	Active          *bool    `json:"active"`
}

func (req productRequest) toModel(id int64) model.Product {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return model.Product{
		ID:              id,
		Name:            req.Name,
		Description:     req.Description,
		Category:        req.Category,
		Images:          req.Images,
		Variants:        req.Variants,
		Price:           req.Price,
		DiscountedPrice: req.DiscountedPrice,
		FloorPrice:      req.FloorPrice,
		Stock:           req.Stock,
		Active:          active,
	}
}

type reviewResponse struct {
	ID        int64     `json:"id"`
	UserName  string    `json:"user_name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func newReviewResponse(rv model.Review) reviewResponse {
	return reviewResponse{ID: rv.ID, UserName: rv.UserName, Rating: rv.Rating, Comment: rv.Comment, CreatedAt: rv.CreatedAt}
}

type cartItemResponse struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant,omitempty"`
}

type cartResponse struct {
	Items       []cartItemResponse `json:"items"`
	CouponCode  *string            `json:"coupon_code"`
	CouponError string             `json:"coupon_error,omitempty"`
	Subtotal    int64              `json:"subtotal"`
	Discount    int64              `json:"discount"`
	Shipping    int64              `json:"shipping"`
	Tax         int64              `json:"tax"`
	Total       int64              `json:"total"`
}

func newCartResponse(s *service.CartSummary) cartResponse {
	items := make([]cartItemResponse, 0, len(s.Cart.Items))
	for _, it := range s.Cart.Items {
		items = append(items, cartItemResponse(it))
	}
	return cartResponse{
		Items:       items,
		CouponCode:  s.Cart.CouponCode,
		CouponError: s.CouponError,
		Subtotal:    s.Subtotal,
		Discount:    s.Discount,
		Shipping:    s.Shipping,
		Tax:         s.Tax,
		Total:       s.Total,
	}
}

type couponResponse struct {
	ID              int64                    `json:"id"`
	Code            string                   `json:"code"`
	Type            model.CouponType         `json:"type"`
	Value           int64                    `json:"value"`
	MinOrderAmount  int64                    `json:"min_order_amount"`
	MaxUses         *int                     `json:"max_uses,omitempty"`
	UsedCount       int                      `json:"used_count"`
	ExpiresAt       *time.Time               `json:"expires_at,omitempty"`
	Active          bool                     `json:"active"`
	StripePromotion string                   `json:"stripe_promotion,omitempty"`
	Negotiation     *model.CouponNegotiation `json:"negotiation,omitempty"`
	CreatedAt       time.Time                `json:"created_at"`
}

func newCouponResponse(c model.Coupon) couponResponse {
	return couponResponse{
		ID:              c.ID,
		Code:            c.Code,
		Type:            c.Type,
		Value:           c.Value,
		MinOrderAmount:  c.MinOrderAmount,
		MaxUses:         c.MaxUses,
		UsedCount:       c.UsedCount,
		ExpiresAt:       c.ExpiresAt,
		Active:          c.Active,
		StripePromotion: c.StripePromotion,
		Negotiation:     c.Negotiation,
		CreatedAt:       c.CreatedAt,
	}
}

type couponRequest struct {
	Code            string                   `json:"code"`
	Type            model.CouponType         `json:"type"`
	Value           int64                    `json:"value"`
	MinOrderAmount  int64                    `json:"min_order_amount"`
	MaxUses         *int                     `json:"max_uses"`
	ExpiresAt       *time.Time               `json:"expires_at"`
	Active          *bool                    `json:"active"`
	StripePromotion string                   `json:"stripe_promotion"`
	Negotiation     *model.CouponNegotiation `json:"negotiation"`
}

func (req couponRequest) toModel(id int64) model.Coupon {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return model.Coupon{
		ID:              id,
		Code:            req.Code,
		Type:            req.Type,
		Value:           req.Value,
		MinOrderAmount:  req.MinOrderAmount,
		MaxUses:         req.MaxUses,
		ExpiresAt:       req.ExpiresAt,
		Active:          active,
		StripePromotion: req.StripePromotion,
		Negotiation:     req.Negotiation,
	}
}

type orderResponse struct {
	ID             int64                 `json:"id"`
	Status         model.OrderStatus     `json:"status"`
	Email          string                `json:"email"`
	Items          []model.OrderItem     `json:"items"`
	Subtotal       int64                 `json:"subtotal"`
	Discount       int64                 `json:"discount"`
	ShippingAmount int64                 `json:"shipping_amount"`
	Tax            int64                 `json:"tax"`
	Total          int64                 `json:"total"`
	CouponCode     string                `json:"coupon_code,omitempty"`
	Shipping       *model.Shipping       `json:"shipping,omitempty"`
	History        []model.TrackingEvent `json:"history"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

func newOrderResponse(o model.Order) orderResponse {
	items, history := o.Items, o.History
	if items == nil {
		items = []model.OrderItem{}
	}
	if history == nil {
		history = []model.TrackingEvent{}
	}
	return orderResponse{
		ID:             o.ID,
		Status:         o.Status,
		Email:          o.Email,
		Items:          items,
		Subtotal:       o.Subtotal,
		Discount:       o.Discount,
		ShippingAmount: o.ShippingAmount,
		Tax:            o.Tax,
		Total:          o.Total,
		CouponCode:     o.CouponCode,
		Shipping:       o.Shipping,
		History:        history,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func newOrdersResponse(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, newOrderResponse(o))
	}
	return resp
}

type adminOrderResponse struct {
	orderResponse
	UserID          int64  `json:"user_id"`
	StripeSessionID string `json:"stripe_session_id"`
}

type pageResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type publicSettingsResponse struct {
	StoreName             string `json:"store_name"`
	Currency              string `json:"currency"`
	ShippingFee           int64  `json:"shipping_fee"`
	FreeShippingThreshold int64  `json:"free_shipping_threshold"`
	TaxRate               string `json:"tax_rate"`
	SupportEmail          string `json:"support_email,omitempty"`
	AssistantEnabled      bool   `json:"assistant_enabled"`
	MaintenanceMode       bool   `json:"maintenance_mode"`
}

type statsResponse struct {
	Users       int64 `json:"users"`
	Products    int64 `json:"products"`
	Orders      int64 `json:"orders"`
	Revenue     int64 `json:"revenue"`
	PendingShip int64 `json:"pending_shipment"`
}
