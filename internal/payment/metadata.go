// Package payment содержит интеграцию с платёжным провайдером и кодек метаданных сессии оплаты.
package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmeshcher/storefront/internal/model"
)

// Ограничения Stripe на метаданные: 50 ключей, до 500 символов в значении.
const (
	maxMetadataValue = 500
	maxItemChunks    = 40
)

const (
	keyUserID      = "user_id"
	keyCartID      = "cart_id"
	keyCouponCode  = "coupon_code"
	keyEmail       = "email"
	keyTax         = "tax"
	keyItemsChunks = "items_chunks"
	keyItemsPrefix = "items_"
	keyItemsLegacy = "items"
)

var (
	// ErrMalformedItems возвращается, если позиции заказа в метаданных не удалось разобрать.
	ErrMalformedItems = errors.New("malformed items metadata")
	// ErrMetadataTooLarge возвращается, если позиции не помещаются в метаданные сессии.
	ErrMetadataTooLarge = errors.New("items do not fit into session metadata")
)

// Metadata содержит минимальный снимок заказа, из которого обработчик вебхука восстанавливает заказ.
type Metadata struct {
	UserID     int64
	CartID     int64
	CouponCode string
	Email      string

	// Tax: налог, добавленный к сессии отдельной позицией, в центах.
	Tax   int64
	Items []model.OrderItem
}

type compactItem struct {
	ProductID int64  `json:"p"`
	Quantity  int    `json:"q"`
	Price     int64  `json:"pr"`
	Name      string `json:"n,omitempty"`
	Variant   string `json:"v,omitempty"`
	Image     string `json:"i,omitempty"`
}

// EncodeMetadata сериализует снимок в метаданные сессии.
// JSON позиций разбивается на части по maxMetadataValue символов.
func EncodeMetadata(m Metadata) (map[string]string, error) {
	items := make([]compactItem, 0, len(m.Items))
	for _, it := range m.Items {
		items = append(items, compactItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Name:      it.Name,
			Variant:   it.Variant,
			Image:     it.Image,
		})
	}

	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal items: %w", err)
	}

	chunks := splitRunes(string(raw), maxMetadataValue)
	if len(chunks) > maxItemChunks {
		return nil, ErrMetadataTooLarge
	}

	md := map[string]string{
		keyUserID:      strconv.FormatInt(m.UserID, 10),
		keyItemsChunks: strconv.Itoa(len(chunks)),
	}
	if m.CartID != 0 {
		md[keyCartID] = strconv.FormatInt(m.CartID, 10)
	}
	if m.CouponCode != "" {
		md[keyCouponCode] = m.CouponCode
	}
	if m.Email != "" {
		md[keyEmail] = m.Email
	}
	if m.Tax > 0 {
		md[keyTax] = strconv.FormatInt(m.Tax, 10)
	}
	for i, c := range chunks {
		md[keyItemsPrefix+strconv.Itoa(i)] = c
	}

	return md, nil
}

// DecodeMetadata восстанавливает снимок из метаданных сессии.
//
// Разбор не прерывается на первой ошибке: некорректное поле остаётся нулевым, остальные
// поля и позиции восстанавливаются. Все ошибки возвращаются вместе, вызывающий код их логирует.
// Ошибка разбора позиций оборачивает ErrMalformedItems, список позиций при этом пуст.
func DecodeMetadata(md map[string]string) (Metadata, error) {
	var (
		m    Metadata
		errs []error
	)

	m.UserID, errs = parseIntField(md, keyUserID, errs)
	m.CartID, errs = parseIntField(md, keyCartID, errs)
	m.Tax, errs = parseIntField(md, keyTax, errs)
	m.CouponCode = md[keyCouponCode]
	m.Email = md[keyEmail]

	raw := joinItems(md)
	if raw == "" {
		return m, errors.Join(errs...)
	}

	var items []compactItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrMalformedItems, err))
		return m, errors.Join(errs...)
	}

	m.Items = make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		if it.ProductID <= 0 || it.Quantity <= 0 {
			continue
		}
		m.Items = append(m.Items, model.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price,
			Name:      it.Name,
			Variant:   it.Variant,
			Image:     it.Image,
		})
	}

	return m, errors.Join(errs...)
}

func parseIntField(md map[string]string, key string, errs []error) (int64, []error) {
	v := md[key]
	if v == "" {
		return 0, errs
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, append(errs, fmt.Errorf("parse %s: %w", key, err))
	}
	return n, errs
}

func joinItems(md map[string]string) string {
	n, err := strconv.Atoi(md[keyItemsChunks])
	if err != nil || n <= 0 {
		return md[keyItemsLegacy]
	}

	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(md[keyItemsPrefix+strconv.Itoa(i)])
	}
	return b.String()
}

func splitRunes(s string, size int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}

	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
