// handler.go - основной обработчик API, реализующий routes.ServerInterface.
// Разбирает запросы, делегирует в сервисный слой и формирует JSON-ответы.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/dataviz/internal/api/errors"
	"github.com/bigkaa/dataviz/internal/api/routes"
	"github.com/bigkaa/dataviz/internal/auth"
	"github.com/bigkaa/dataviz/internal/service"
)

// TokenIssuer - выпуск и обновление токенов. Реализуется *auth.Issuer.
type TokenIssuer interface {
	IssuePair(userID int64, username string) (auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	JWKS(ctx context.Context) (json.RawMessage, error)
}

// Services - зависимости APIHandler из сервисного слоя.
type Services struct {
	Files         *service.FileService
	DataModels    *service.DataModelService
	Visualization *service.VisualizationService
	Users         *service.UserService
	Chatbot       *service.ChatbotService
	Tokens        TokenIssuer
}

// APIHandler - основной обработчик API dataviz.
type APIHandler struct {
	health        *HealthHandler
	files         *service.FileService
	dataModels    *service.DataModelService
	visualization *service.VisualizationService
	users         *service.UserService
	chatbot       *service.ChatbotService
	tokens        TokenIssuer
	// schema - OpenAPI-документ в JSON
	schema        []byte
	maxUploadSize int64
	logger        *slog.Logger
}

var _ routes.ServerInterface = (*APIHandler)(nil)

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	svc Services,
	schema []byte,
	maxUploadSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:        health,
		files:         svc.Files,
		dataModels:    svc.DataModels,
		visualization: svc.Visualization,
		users:         svc.Users,
		chatbot:       svc.Chatbot,
		tokens:        svc.Tokens,
		schema:        schema,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive - liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady - readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics - Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// GetSchema - GET /api/schema/.
func (h *APIHandler) GetSchema(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.schema)
}

// --- Вспомогательные функции ---

// messageResponse - ответ с текстовым сообщением об успехе.
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса в dst. Пустое тело допустимо, если allowEmpty.
// При ошибке ответ 400 уже записан.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}
	if errors.Is(err, io.EOF) {
		apierrors.ValidationError(w, "Пустое тело запроса")
		return false
	}
	apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
	return false
}

// handleServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// Неклассифицированные ошибки логируются, клиент получает общий текст.
func (h *APIHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	var fields service.FieldErrors
	switch {
	case errors.As(err, &fields):
		apierrors.FieldValidationError(w, "Ошибка валидации входных данных", fields)
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrUnsupportedFormat):
		apierrors.UnsupportedFormat(w, "Формат файла не поддерживается")
	case errors.Is(err, service.ErrStorageFileMissing):
		apierrors.StorageFileMissing(w, "File not found on the filesystem, but record was deleted.")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Не найдено")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "У вас недостаточно прав для выполнения данного действия")
	case errors.Is(err, service.ErrUnauthorized):
		apierrors.Unauthorized(w, "Неверные учётные данные")
	default:
		h.logger.ErrorContext(r.Context(), internalMsg,
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, internalMsg)
	}
}
