// Package tracking строит отображаемую хронологию доставки заказа по его статусу.
//
// Реальной интеграции с перевозчиками нет: если в истории заказа отсутствует запись о стадии,
// её время вычисляется по фиксированному смещению от момента создания заказа.
package tracking

import (
	"time"

	"github.com/mmeshcher/storefront/internal/model"
)

// StageKey идентифицирует стадию хронологии.
type StageKey string

const (
	StagePlaced    StageKey = "placed"
	StagePaid      StageKey = "payment_confirmed"
	StageProcessed StageKey = "processing"
	StageShipped   StageKey = "shipped"
	StageDelivered StageKey = "delivered"
)

type stageDef struct {
	key    StageKey
	label  string
	status model.OrderStatus
	offset time.Duration
}

var stages = []stageDef{
	{key: StagePlaced, label: "Order placed", status: model.OrderStatusPending, offset: 0},
	{key: StagePaid, label: "Payment confirmed", status: model.OrderStatusPaid, offset: time.Hour},
	{key: StageProcessed, label: "Processing", status: model.OrderStatusProcessing, offset: 24 * time.Hour},
	{key: StageShipped, label: "Shipped", status: model.OrderStatusShipped, offset: 48 * time.Hour},
	{key: StageDelivered, label: "Delivered", status: model.OrderStatusDelivered, offset: 120 * time.Hour},
}

// Stage описывает одну стадию хронологии.
type Stage struct {
	Key       StageKey   `json:"key"`
	Label     string     `json:"label"`
	Completed bool       `json:"completed"`
	Current   bool       `json:"current"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// View описывает хронологию заказа для отображения покупателю.
type View struct {
	OrderID           int64                 `json:"order_id"`
	Status            model.OrderStatus     `json:"status"`
	Terminal          bool                  `json:"terminal"`
	Carrier           string                `json:"carrier,omitempty"`
	TrackingNumber    string                `json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time            `json:"estimated_delivery,omitempty"`
	Stages            []Stage               `json:"stages"`
	History           []model.TrackingEvent `json:"history"`
}

// PublicView описывает сокращённую проекцию для публичного поиска по трек-номеру.
// Не содержит ни адреса, ни данных покупателя.
type PublicView struct {
	TrackingNumber    string            `json:"tracking_number"`
	Carrier           string            `json:"carrier,omitempty"`
	Status            model.OrderStatus `json:"status"`
	Terminal          bool              `json:"terminal"`
	EstimatedDelivery *time.Time        `json:"estimated_delivery,omitempty"`
	Stages            []Stage           `json:"stages"`
	ItemCount         int               `json:"item_count"`
	CreatedAt         time.Time         `json:"created_at"`
}

// progress возвращает индекс последней завершённой стадии.
func progress(status model.OrderStatus) int {
	switch status {
	case model.OrderStatusPending:
		return 0
	case model.OrderStatusPaid:
		return 1
	case model.OrderStatusProcessing:
		return 2
	case model.OrderStatusShipped:
		return 3
	case model.OrderStatusDelivered:
		return 4
	case model.OrderStatusCancelled, model.OrderStatusRefunded:
		return 1
	default:
		return 0
	}
}

func isTerminal(status model.OrderStatus) bool {
	return status == model.OrderStatusCancelled || status == model.OrderStatusRefunded
}

// Timeline строит пять стадий хронологии заказа.
// Для отменённого или возвращённого заказа стадии после подтверждения оплаты не завершаются
// и ни одна стадия не считается текущей.
func Timeline(o model.Order) []Stage {
	done := progress(o.Status)
	terminal := isTerminal(o.Status)

	recorded := make(map[model.OrderStatus]time.Time, len(o.History))
	for _, ev := range o.History {
		if _, ok := recorded[ev.Status]; !ok {
			recorded[ev.Status] = ev.Timestamp
		}
	}

	res := make([]Stage, 0, len(stages))
	for i, def := range stages {
		st := Stage{
			Key:       def.key,
			Label:     def.label,
			Completed: i <= done,
			Current:   !terminal && i == done,
		}

		if st.Completed {
			ts, ok := recorded[def.status]
			if !ok {
				ts = o.CreatedAt.Add(def.offset)
			}
			st.Timestamp = &ts
		}

		res = append(res, st)
	}

	return res
}

// Build возвращает полную хронологию для владельца заказа.
func Build(o model.Order) View {
	v := View{
		OrderID:  o.ID,
		Status:   o.Status,
		Terminal: isTerminal(o.Status),
		Stages:   Timeline(o),
		History:  o.History,
	}
	if o.Shipping != nil {
		v.Carrier = o.Shipping.Carrier
		v.TrackingNumber = o.Shipping.TrackingNumber
		v.EstimatedDelivery = o.Shipping.EstimatedDelivery
	}
	return v
}

// Public возвращает сокращённую проекцию заказа для публичного отслеживания.
func Public(o model.Order) PublicView {
	v := PublicView{
		Status:    o.Status,
		Terminal:  isTerminal(o.Status),
		Stages:    Timeline(o),
		CreatedAt: o.CreatedAt,
	}
	for _, it := range o.Items {
		v.ItemCount += it.Quantity
	}
	if o.Shipping != nil {
		v.TrackingNumber = o.Shipping.TrackingNumber
		v.Carrier = o.Shipping.Carrier
		v.EstimatedDelivery = o.Shipping.EstimatedDelivery
	}
	return v
}
