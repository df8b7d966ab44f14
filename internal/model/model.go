// Package model содержит доменные сущности витрины интернет-магазина.
//
// Все денежные суммы хранятся в центах (int64).
package model

import "time"

// Role описывает роль пользователя.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User представляет зарегистрированного покупателя или администратора.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// Product описывает товар каталога.
//
// FloorPrice используется только при торге за купон и никогда не отдаётся в публичных ответах.
type Product struct {
	ID              int64
	Name            string
	Description     string
	Category        string
	Images          []string
	Variants        []string
	Price           int64
	DiscountedPrice *int64
	FloorPrice      *int64
	Stock           int
	Active          bool
	Rating          float64
	ReviewCount     int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Review описывает отзыв покупателя о товаре.
type Review struct {
	ID        int64
	ProductID int64
	UserID    int64
	UserName  string
	Rating    int
	Comment   string
	CreatedAt time.Time
}

// ProductFilter задаёт параметры выборки каталога.
type ProductFilter struct {
	Category   string
	Search     string
	MinPrice   *int64
	MaxPrice   *int64
	Sort       string
	Page       int
	Limit      int
	OnlyActive bool
}

// CartItem описывает позицию корзины.
type CartItem struct {
	ProductID int64
	Name      string
	Image     string
	Price     int64
	Quantity  int
	Variant   string
}

// Cart описывает корзину пользователя.
type Cart struct {
	ID         int64
	UserID     int64
	Items      []CartItem
	CouponCode *string
	UpdatedAt  time.Time
}

// CouponType описывает способ расчёта скидки.
type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

// CouponNegotiation содержит сведения о торге, в результате которого выпущен купон.
type CouponNegotiation struct {
	ProductID    *int64 `json:"product_id,omitempty"`
	UserID       *int64 `json:"user_id,omitempty"`
	OfferedPrice *int64 `json:"offered_price,omitempty"`
	Note         string `json:"note,omitempty"`
}

// Coupon описывает купон на скидку.
type Coupon struct {
	ID              int64
	Code            string
	Type            CouponType
	Value           int64
	MinOrderAmount  int64
	MaxUses         *int
	UsedCount       int
	ExpiresAt       *time.Time
	Active          bool
	StripePromotion string
	Negotiation     *CouponNegotiation
	CreatedAt       time.Time
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// Valid сообщает, входит ли статус в допустимый набор.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// OrderItem фиксирует состояние товара на момент покупки.
type OrderItem struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant,omitempty"`
}

// Shipping содержит адрес доставки и данные перевозчика.
type Shipping struct {
	Name              string     `json:"name"`
	Line1             string     `json:"line1"`
	Line2             string     `json:"line2,omitempty"`
	City              string     `json:"city"`
	State             string     `json:"state,omitempty"`
	PostalCode        string     `json:"postal_code"`
	Country           string     `json:"country"`
	Carrier           string     `json:"carrier,omitempty"`
	TrackingNumber    string     `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

// TrackingEvent описывает запись в истории отслеживания заказа.
type TrackingEvent struct {
	Status      OrderStatus `json:"status"`
	Location    string      `json:"location,omitempty"`
	Description string      `json:"description,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Order описывает оплаченный заказ.
type Order struct {
	ID              int64
	UserID          int64
	StripeSessionID string
	Email           string
	Status          OrderStatus
	Items           []OrderItem
	Subtotal        int64
	Discount        int64
	ShippingAmount  int64
	Tax             int64
	Total           int64
	CouponCode      string
	Shipping        *Shipping
	History         []TrackingEvent
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderFilter задаёт параметры выборки заказов в административном разделе.
type OrderFilter struct {
	Status OrderStatus
	Page   int
	Limit  int
}

// StoreStats содержит сводку для панели администратора.
type StoreStats struct {
	Users       int64
	Products    int64
	Orders      int64
	Revenue     int64
	PendingShip int64
}

// PaymentEvent описывает сохранённое событие платёжного провайдера.
type PaymentEvent struct {
	SessionID   string
	EventID     string
	Payload     []byte
	Attempts    int
	LastError   string
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

// StoreSettings содержит настройки магазина.
type StoreSettings struct {
	StoreName             string `json:"store_name" yaml:"store_name"`
	Currency              string `json:"currency" yaml:"currency"`
	ShippingFee           int64  `json:"shipping_fee" yaml:"shipping_fee"`
	FreeShippingThreshold int64  `json:"free_shipping_threshold" yaml:"free_shipping_threshold"`
	TaxRate               string `json:"tax_rate" yaml:"tax_rate"`
	SupportEmail          string `json:"support_email" yaml:"support_email"`
	AssistantEnabled      bool   `json:"assistant_enabled" yaml:"assistant_enabled"`
	MaintenanceMode       bool   `json:"maintenance_mode" yaml:"maintenance_mode"`
}

// HomepageSection описывает блок главной страницы.
type HomepageSection struct {
	Key        string  `json:"key" bson:"key"`
	Title      string  `json:"title" bson:"title"`
	Subtitle   string  `json:"subtitle,omitempty" bson:"subtitle,omitempty"`
	ProductIDs []int64 `json:"product_ids,omitempty" bson:"product_ids,omitempty"`
	Visible    bool    `json:"visible" bson:"visible"`
}

// HomepageContent описывает содержимое главной страницы, редактируемое в CMS.
type HomepageContent struct {
	HeroTitle    string            `json:"hero_title" bson:"hero_title"`
	HeroSubtitle string            `json:"hero_subtitle" bson:"hero_subtitle"`
	HeroImage    string            `json:"hero_image,omitempty" bson:"hero_image,omitempty"`
	Announcement string            `json:"announcement,omitempty" bson:"announcement,omitempty"`
	Sections     []HomepageSection `json:"sections" bson:"sections"`
	UpdatedAt    time.Time         `json:"updated_at" bson:"updated_at"`
}
