package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/mmeshcher/storefront/internal/model"
)

// Типы событий сессии оплаты, которые обрабатывает витрина.
// Отложенные способы оплаты завершают сессию со статусом unpaid и позже присылают
// событие об успехе или неудаче списания.
const (
	EventCheckoutCompleted     = "checkout.session.completed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    = "checkout.session.async_payment_failed"
)

const (
	paymentStatusPaid            = "paid"
	paymentStatusNoPaymentNeeded = "no_payment_required"
)

// IsSessionEvent сообщает, несёт ли событие данные сессии оплаты.
func IsSessionEvent(eventType string) bool {
	switch eventType {
	case EventCheckoutCompleted, EventAsyncPaymentSucceeded, EventAsyncPaymentFailed:
		return true
	default:
		return false
	}
}

var (
	// ErrInvalidSignature возвращается при неверной подписи вебхука.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrPromotionNotFound возвращается, если у провайдера нет активного промокода.
	ErrPromotionNotFound = errors.New("promotion code not found")
	// ErrNotConfigured возвращается, если ключи провайдера не заданы.
	ErrNotConfigured = errors.New("payment provider not configured")
)

// Gateway описывает операции платёжного провайдера, которые использует витрина.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	ResolvePromotionCode(ctx context.Context, code string) (string, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

var _ Gateway = (*StripeGateway)(nil)

// CheckoutRequest описывает параметры создаваемой сессии оплаты.
type CheckoutRequest struct {
	Items               []model.OrderItem
	Currency            string
	CustomerEmail       string
	ClientReferenceID   string
	SuccessURL          string
	CancelURL           string
	PromotionCodeID     string
	AllowPromotionCodes bool
	ShippingFee         int64

	// TaxAmount добавляется к сессии отдельной позицией; скидка промокода распределяется и на неё.
	TaxAmount int64
	Metadata  Metadata
}

// Session описывает созданную сессию оплаты.
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Event описывает проверенное событие провайдера в независимом от SDK виде.
// Сериализуется в outbox и повторно обрабатывается без обращения к провайдеру.
type Event struct {
	ID                string            `json:"id"`
	Type              string            `json:"type"`
	SessionID         string            `json:"session_id"`
	ClientReferenceID string            `json:"client_reference_id,omitempty"`
	PaymentStatus     string            `json:"payment_status"`
	AmountTotal       int64             `json:"amount_total"`
	AmountSubtotal    int64             `json:"amount_subtotal"`
	ShippingAmount    int64             `json:"shipping_amount"`
	Currency          string            `json:"currency"`
	Email             string            `json:"email"`
	Metadata          map[string]string `json:"metadata"`
	Shipping          *model.Shipping   `json:"shipping,omitempty"`
}

// Charged возвращает сумму, списанную за товары и налог, то есть итог без доставки.
func (e Event) Charged() int64 {
	return e.AmountTotal - e.ShippingAmount
}

// Paid сообщает, что деньги по сессии уже получены.
func (e Event) Paid() bool {
	return e.PaymentStatus == paymentStatusPaid || e.PaymentStatus == paymentStatusNoPaymentNeeded
}

// StripeGateway реализует работу с Stripe Checkout.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// NewStripeGateway создаёт шлюз Stripe с указанными секретным ключом и секретом вебхука.
func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	var api *client.API
	if secretKey != "" {
		api = client.New(secretKey, nil)
	}
	return newStripeGateway(api, webhookSecret)
}

func newStripeGateway(api *client.API, webhookSecret string) *StripeGateway {
	return &StripeGateway{api: api, webhookSecret: webhookSecret}
}

// CreateCheckoutSession создаёт сессию Stripe Checkout с позициями по доверенным ценам сервера.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	if g.api == nil {
		return nil, ErrNotConfigured
	}

	md, err := EncodeMetadata(req.Metadata)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems:  lineItems(req.Items, req.TaxAmount, req.Currency),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"US", "CA", "GB", "DE", "FR", "AU"}),
		},
		Metadata: md,
	}
	params.Context = ctx

	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(req.ClientReferenceID)
	}

	if req.PromotionCodeID != "" {
		params.Discounts = []*stripe.CheckoutSessionDiscountParams{
			{PromotionCode: stripe.String(req.PromotionCodeID)},
		}
	} else if req.AllowPromotionCodes {
		params.AllowPromotionCodes = stripe.Bool(true)
	}

	if req.ShippingFee > 0 {
		params.ShippingOptions = []*stripe.CheckoutSessionShippingOptionParams{
			{
				ShippingRateData: &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
					Type:        stripe.String("fixed_amount"),
					DisplayName: stripe.String("Standard shipping"),
					FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
						Amount:   stripe.Int64(req.ShippingFee),
						Currency: stripe.String(req.Currency),
					},
				},
			},
		}
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &Session{ID: s.ID, URL: s.URL}, nil
}

func lineItems(items []model.OrderItem, tax int64, currency string) []*stripe.CheckoutSessionLineItemParams {
	res := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items)+1)
	for _, it := range items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(it.Name),
		}
		if it.Image != "" {
			product.Images = stripe.StringSlice([]string{it.Image})
		}
		if it.Variant != "" {
			product.Description = stripe.String(it.Variant)
		}

		res = append(res, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(it.Price),
				ProductData: product,
			},
			Quantity: stripe.Int64(int64(it.Quantity)),
		})
	}

	if tax > 0 {
		res = append(res, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				UnitAmount:  stripe.Int64(tax),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String("Tax")},
			},
			Quantity: stripe.Int64(1),
		})
	}
	return res
}

// ResolvePromotionCode ищет активный промокод провайдера по коду купона.
func (g *StripeGateway) ResolvePromotionCode(ctx context.Context, code string) (string, error) {
	if g.api == nil {
		return "", ErrNotConfigured
	}

	params := &stripe.PromotionCodeListParams{
		Code:   stripe.String(code),
		Active: stripe.Bool(true),
	}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	it := g.api.PromotionCodes.List(params)
	for it.Next() {
		return it.PromotionCode().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("list promotion codes: %w", err)
	}

	return "", ErrPromotionNotFound
}

// ParseWebhook проверяет подпись запроса и разбирает событие.
// Для событий, не относящихся к сессии оплаты, заполняются только ID и Type.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if g.webhookSecret == "" {
		return nil, ErrNotConfigured
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	res := &Event{ID: ev.ID, Type: string(ev.Type)}
	if !IsSessionEvent(res.Type) || ev.Data == nil {
		return res, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	res.SessionID = cs.ID
	res.ClientReferenceID = cs.ClientReferenceID
	res.PaymentStatus = string(cs.PaymentStatus)
	res.AmountTotal = cs.AmountTotal
	res.AmountSubtotal = cs.AmountSubtotal
	res.Currency = string(cs.Currency)
	res.Metadata = cs.Metadata
	res.Email = cs.CustomerEmail
	if cs.CustomerDetails != nil && cs.CustomerDetails.Email != "" {
		res.Email = cs.CustomerDetails.Email
	}
	if cs.ShippingCost != nil {
		res.ShippingAmount = cs.ShippingCost.AmountTotal
	}
	if cs.ShippingDetails != nil && cs.ShippingDetails.Address != nil {
		addr := cs.ShippingDetails.Address
		res.Shipping = &model.Shipping{
			Name:       cs.ShippingDetails.Name,
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
	}

	return res, nil
}
