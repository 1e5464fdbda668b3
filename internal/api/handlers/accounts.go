// accounts.go - регистрация, профиль, выпуск токенов и JWKS.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/dataviz/internal/api/errors"
	"github.com/bigkaa/dataviz/internal/api/middleware"
	"github.com/bigkaa/dataviz/internal/service"
)

type profileResponse struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

// profileRequest - тело PUT/PATCH профиля. Отсутствующее поле не меняется.
type profileRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type accessResponse struct {
	Access string `json:"access"`
}

// Register - POST /api/register/.
func (h *APIHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.Registration
	if !decodeJSON(w, r, &in, false) {
		return
	}

	if _, err := h.users.Register(r.Context(), in); err != nil {
		h.handleServiceError(w, r, err, "Ошибка регистрации пользователя")
		return
	}
	writeJSON(w, http.StatusCreated, messageResponse{Message: "User registered successfully!"})
}

// GetProfile - GET /api/profile/.
func (h *APIHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		apierrors.Unauthorized(w, "Учётные данные не были предоставлены")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Username: u.Username, Email: u.Email})
}

// UpdateProfile - PUT|PATCH /api/profile/. Частичное обновление username и email.
func (h *APIHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	patch := service.ProfilePatch{Username: req.Username, Email: req.Email}
	if _, err := h.users.UpdateProfile(r.Context(), middleware.UserFromContext(r.Context()), patch); err != nil {
		h.handleServiceError(w, r, err, "Ошибка обновления профиля")
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Profile updated successfully!"})
}

// ObtainToken - POST /api/token/. Пара access/refresh по username и паролю.
func (h *APIHandler) ObtainToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	fields := service.FieldErrors{}
	if req.Username == "" {
		fields.Add("username", "Обязательное поле.")
	}
	if req.Password == "" {
		fields.Add("password", "Обязательное поле.")
	}
	if len(fields) > 0 {
		apierrors.FieldValidationError(w, "Ошибка валидации входных данных", fields)
		return
	}

	u, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			apierrors.Unauthorized(w, "Не найдена активная учётная запись с указанными данными")
			return
		}
		h.handleServiceError(w, r, err, "Ошибка аутентификации")
		return
	}

	pair, err := h.tokens.IssuePair(u.ID, u.Username)
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка выпуска токенов")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// RefreshToken - POST /api/token/refresh/. Новый access по refresh-токену.
func (h *APIHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Refresh == "" {
		apierrors.FieldValidationError(w, "Ошибка валидации входных данных",
			map[string][]string{"refresh": {"Обязательное поле."}})
		return
	}

	access, err := h.tokens.Refresh(r.Context(), req.Refresh)
	if err != nil {
		h.logger.Debug("Refresh-токен отклонён", slog.String("error", err.Error()))
		apierrors.Unauthorized(w, "Невалидный или просроченный refresh-токен")
		return
	}
	writeJSON(w, http.StatusOK, accessResponse{Access: access})
}

// GetJWKS - GET /.well-known/jwks.json.
func (h *APIHandler) GetJWKS(w http.ResponseWriter, r *http.Request) {
	data, err := h.tokens.JWKS(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка получения JWKS")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
