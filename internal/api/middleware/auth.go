// auth.go — middleware аутентификации и авторизации User Module.
// Каждый запрос проверяется через Keycloak userinfo: токен, отозванный
// или просроченный на стороне провайдера, отклоняется немедленно.
// Опциональная локальная проверка подписи через JWKS выполняется до
// похода в Keycloak и отсеивает заведомо битые токены.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/user-module/internal/api/errors"
	"github.com/bigkaa/user-module/internal/domain/rbac"
	"github.com/bigkaa/user-module/internal/keycloak"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyIdentity — идентичность вызывающего в контексте запроса.
	ContextKeyIdentity contextKey = "identity"
)

// Identity — идентичность вызывающего, подтверждённая Keycloak userinfo.
// Помещается в контекст запроса для downstream handlers.
type Identity struct {
	// Subject — sub из userinfo (Keycloak user ID).
	Subject string
	// UserID — локальный id пользователя (атрибут userId).
	UserID uuid.UUID
	// Username — preferred_username.
	Username string
	// Email — email пользователя.
	Email string
	// Roles — роли из атрибута roles.
	Roles []string
	// IsAdmin — содержит ли набор ролей super_admin.
	IsAdmin bool
	// RawToken — исходный bearer-токен (для downstream вызовов Admin REST API).
	RawToken string
}

// HasAnyRole проверяет, есть ли у вызывающего одна из указанных ролей.
func (i *Identity) HasAnyRole(roles ...string) bool {
	return rbac.AnyMatch(i.Roles, roles)
}

// userinfoProvider — проверка сессии через Keycloak userinfo.
// Реализуется keycloak.Client.
type userinfoProvider interface {
	Userinfo(ctx context.Context, bearerToken string) (*keycloak.Userinfo, error)
}

// Auth — middleware аутентификации через Keycloak.
type Auth struct {
	provider userinfoProvider
	jwks     keyfunc.Keyfunc // nil — локальная проверка подписи отключена
	issuer   string
	logger   *slog.Logger
}

// NewAuth создаёт middleware аутентификации.
// provider — клиент Keycloak для userinfo.
// localValidation включает предварительную проверку подписи по JWKS;
// jwksURL и issuer используются только при включённой проверке.
func NewAuth(provider userinfoProvider, localValidation bool, jwksURL, issuer string, logger *slog.Logger) (*Auth, error) {
	a := &Auth{
		provider: provider,
		issuer:   issuer,
		logger:   logger.With(slog.String("component", "auth")),
	}

	if localValidation {
		// JWKS Storage с фоновым обновлением.
		// NoErrorReturnFirstHTTPReq — стартуем даже если Keycloak ещё недоступен.
		storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
			NoErrorReturnFirstHTTPReq: true,
			RefreshInterval:           time.Hour,
			RefreshErrorHandler: func(_ context.Context, err error) {
				logger.Error("Ошибка обновления JWKS",
					slog.String("error", err.Error()),
					slog.String("url", jwksURL),
				)
			},
		})
		if err != nil {
			return nil, fmt.Errorf("создание JWKS storage: %w", err)
		}

		k, err := keyfunc.New(keyfunc.Options{Storage: storage})
		if err != nil {
			return nil, fmt.Errorf("создание keyfunc: %w", err)
		}
		a.jwks = k
	}

	return a, nil
}

// NewAuthWithKeyfunc создаёт middleware с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewAuthWithKeyfunc(provider userinfoProvider, kf keyfunc.Keyfunc, issuer string, logger *slog.Logger) *Auth {
	return &Auth{
		provider: provider,
		jwks:     kf,
		issuer:   issuer,
		logger:   logger.With(slog.String("component", "auth")),
	}
}

// Middleware возвращает HTTP middleware аутентификации.
// Порядок проверок: извлечение Bearer token → опциональная локальная
// проверка подписи → userinfo в Keycloak → Identity в контекст.
func (a *Auth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Извлекаем Bearer token
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := parts[1]
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			// Локальная проверка подписи (если включена). Любой сбой —
			// тот же общий 401, детали только в debug-логе.
			if a.jwks != nil {
				if err := a.validateLocally(r.Context(), tokenString); err != nil {
					a.logger.Debug("Локальная валидация токена не пройдена",
						slog.String("error", err.Error()),
						slog.String("remote_addr", r.RemoteAddr),
					)
					apierrors.Unauthorized(w, "Невалидный или просроченный токен")
					return
				}
			}

			// Проверка сессии в Keycloak
			info, err := a.provider.Userinfo(r.Context(), tokenString)
			if err != nil {
				var sessErr *keycloak.SessionError
				if errors.As(err, &sessErr) {
					apierrors.SessionExpired(w, sessErr.StatusCode, "Сессия истекла, выполните вход повторно")
					return
				}
				a.logger.Error("Ошибка проверки сессии",
					slog.String("error", err.Error()),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			identity := buildIdentity(info, tokenString)

			ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateLocally проверяет подпись и срок действия токена по JWKS.
func (a *Auth) validateLocally(ctx context.Context, tokenString string) error {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.Parse(tokenString, a.jwks.KeyfuncCtx(ctx), parserOpts...)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("токен не прошёл валидацию")
	}
	return nil
}

// buildIdentity формирует Identity из ответа userinfo.
// Роли приходят атрибутом "admin, user" — разбираем как CSV.
func buildIdentity(info *keycloak.Userinfo, rawToken string) *Identity {
	identity := &Identity{
		Subject:  info.Sub,
		Username: info.PreferredUsername,
		Email:    info.Email,
		RawToken: rawToken,
	}

	if info.UserID != "" {
		if id, err := uuid.Parse(info.UserID); err == nil {
			identity.UserID = id
		}
	}

	for _, role := range strings.Split(info.Roles, ",") {
		role = strings.TrimSpace(role)
		if role != "" {
			identity.Roles = append(identity.Roles, role)
		}
	}
	identity.IsAdmin = rbac.IsSuperAdmin(identity.Roles)

	return identity
}

// RequireRole возвращает middleware, требующий одну из указанных ролей.
// Должен использоваться ПОСЛЕ Auth.Middleware().
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if identity == nil {
				apierrors.Unauthorized(w, "Отсутствует идентичность в контексте")
				return
			}

			if !identity.HasAnyRole(roles...) {
				apierrors.Forbidden(w, fmt.Sprintf("Недостаточно прав: требуется роль %s", strings.Join(roles, " или ")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// --- Context helpers ---

// IdentityFromContext извлекает Identity из контекста запроса.
// Возвращает nil, если идентичность не найдена.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(ContextKeyIdentity).(*Identity)
	return identity
}
