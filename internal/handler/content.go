package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
)

// GetHomepage возвращает содержимое главной страницы.
func (h *Handler) GetHomepage(w http.ResponseWriter, r *http.Request) {
	c, err := h.content.GetHomepage(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "get homepage error")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateHomepage заменяет содержимое главной страницы.
func (h *Handler) UpdateHomepage(w http.ResponseWriter, r *http.Request) {
	var req model.HomepageContent
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	c, err := h.content.SaveHomepage(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err, "save homepage error")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetPublicSettings возвращает настройки магазина, нужные клиенту.
func (h *Handler) GetPublicSettings(w http.ResponseWriter, _ *http.Request) {
	s := h.service.Settings()
	writeJSON(w, http.StatusOK, publicSettingsResponse{
		StoreName:             s.StoreName,
		Currency:              s.Currency,
		ShippingFee:           s.ShippingFee,
		FreeShippingThreshold: s.FreeShippingThreshold,
		TaxRate:               s.TaxRate,
		SupportEmail:          s.SupportEmail,
		AssistantEnabled:      h.assistant != nil && h.assistant.Enabled(),
		MaintenanceMode:       s.MaintenanceMode,
	})
}

// Health сообщает, доступна ли база данных.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, http.StatusText(http.StatusServiceUnavailable))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
