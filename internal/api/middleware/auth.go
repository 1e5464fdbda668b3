// auth.go - JWT middleware: проверка access-токена, загрузка пользователя
// с группами и проверка политики доступа маршрута.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/dataviz/internal/api/errors"
	"github.com/bigkaa/dataviz/internal/auth"
	"github.com/bigkaa/dataviz/internal/domain/model"
	"github.com/bigkaa/dataviz/internal/domain/rbac"
)

// contextKey - тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyUser - аутентифицированный пользователь в контексте запроса.
	ContextKeyUser contextKey = "user"
)

// TokenParser - проверка подписанных токенов. Реализуется *auth.Issuer.
type TokenParser interface {
	Parse(ctx context.Context, tokenString string, want auth.TokenType) (*auth.Claims, error)
}

// UserProvider - загрузка пользователя с группами. Реализуется *service.UserService.
type UserProvider interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

// JWTAuth - middleware аутентификации по access-токену.
type JWTAuth struct {
	tokens TokenParser
	users  UserProvider
	logger *slog.Logger
}

// NewJWTAuth создаёт JWT middleware.
func NewJWTAuth(tokens TokenParser, users UserProvider, logger *slog.Logger) *JWTAuth {
	return &JWTAuth{
		tokens: tokens,
		users:  users,
		logger: logger.With(slog.String("component", "jwt_auth")),
	}
}

// Middleware извлекает Bearer token, проверяет его, загружает пользователя
// и помещает его в контекст. Любая неудача - 401.
func (j *JWTAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			claims, err := j.tokens.Parse(r.Context(), tokenString, auth.TokenAccess)
			if err != nil {
				j.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				apierrors.Unauthorized(w, "Некорректный sub в токене")
				return
			}

			user, err := j.users.GetByID(r.Context(), userID)
			if err != nil {
				j.logger.Debug("Пользователь из токена не найден",
					slog.Int64("user_id", userID),
					slog.String("error", err.Error()),
				)
				apierrors.Unauthorized(w, "Пользователь не найден")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequirePolicy возвращает middleware, проверяющий политику доступа по группам.
// Должен использоваться ПОСЛЕ JWTAuth.Middleware().
func RequirePolicy(policy rbac.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				apierrors.Unauthorized(w, "Учётные данные не были предоставлены")
				return
			}
			if !policy.Allows(user.Groups) {
				apierrors.Forbidden(w, "Недостаточно прав: требуется "+policy.String())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// WithUser возвращает контекст с пользователем.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, user)
}

// UserFromContext извлекает пользователя из контекста запроса.
// Возвращает nil, если пользователь не найден.
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(ContextKeyUser).(*model.User)
	return user
}
