package handlers

import (
	"errors"
	"net/http"

	apierrors "github.com/bigkaa/dataviz/internal/api/errors"
	"github.com/bigkaa/dataviz/internal/api/middleware"
	"github.com/bigkaa/dataviz/internal/service"
)

type chatbotRequest struct {
	Query string `json:"query"`
}

type chatbotResponse struct {
	Response string `json:"response"`
}

// ChatbotQuery - POST /api/chatbot/query/.
// Пустой query отклоняется до обращения к языковой модели.
func (h *APIHandler) ChatbotQuery(w http.ResponseWriter, r *http.Request) {
	var req chatbotRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	answer, err := h.chatbot.Interpret(r.Context(), middleware.UserFromContext(r.Context()), req.Query)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			apierrors.ValidationError(w, "No query provided")
			return
		}
		h.handleServiceError(w, r, err, "Ошибка обработки запроса языковой моделью")
		return
	}
	writeJSON(w, http.StatusOK, chatbotResponse{Response: answer})
}
