// Package settings хранит действующие настройки магазина.
//
// Настройки загружаются один раз при старте и передаются обработчикам явно;
// изменение из административного раздела атомарно подменяет снимок.
package settings

import (
	"sync/atomic"

	"github.com/mmeshcher/storefront/internal/model"
)

// Holder содержит текущий снимок настроек магазина. Безопасен для конкурентного использования.
type Holder struct {
	current atomic.Pointer[model.StoreSettings]
}

// NewHolder создаёт хранилище с начальными настройками.
func NewHolder(initial model.StoreSettings) *Holder {
	h := &Holder{}
	h.Set(initial)
	return h
}

// Get возвращает копию текущих настроек.
func (h *Holder) Get() model.StoreSettings {
	return *h.current.Load()
}

// Set атомарно заменяет текущие настройки.
func (h *Holder) Set(s model.StoreSettings) {
	h.current.Store(&s)
}
