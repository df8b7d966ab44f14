package handler

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/assistant"
)

type chatRequest struct {
	Message string              `json:"message"`
	History []assistant.Message `json:"history"`
}

type chatResponse struct {
	Message  string            `json:"message"`
	Products []productResponse `json:"products"`
	Tier     string            `json:"tier"`
}

// Chat передаёт вопрос покупателя помощнику. Частота запросов ограничена для каждого пользователя.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if h.assistant == nil || !h.assistant.Enabled() {
		writeError(w, http.StatusServiceUnavailable, assistant.ErrAssistantDisabled.Error())
		return
	}

	allowed, err := h.limiter.Allow(r.Context(), "assistant:"+strconv.FormatInt(userID, 10))
	if err != nil {
		h.logger.Warn("rate limiter unavailable", zap.Error(err), zap.Int64("userID", userID))
		allowed = true
	}
	if !allowed {
		writeError(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	answer, err := h.assistant.Chat(r.Context(), userID, req.Message, req.History)
	if err != nil {
		h.writeServiceError(w, err, "assistant chat error", zap.Int64("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Message:  answer.Message,
		Products: newProductsResponse(answer.Products),
		Tier:     answer.Tier.String(),
	})
}
