// auth.go — обработчики /api/v1/auth endpoints.
// Вход, обновление токенов, выход, письмо смены пароля.
package handlers

import (
	"encoding/json"
	"net/http"

	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/user-module/internal/api/errors"
	"github.com/bigkaa/user-module/internal/api/middleware"
	"github.com/bigkaa/user-module/internal/keycloak"
)

// loginRequest — тело POST /api/v1/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// refreshRequest — тело POST /api/v1/auth/refresh.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// logoutRequest — тело POST /api/v1/auth/logout.
type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// sendPasswordEmailRequest — тело POST /api/v1/auth/send-update-password-email.
type sendPasswordEmailRequest struct {
	Email openapi_types.Email `json:"email"`
}

// tokenResponse — пара токенов в ответах login и refresh.
type tokenResponse struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken,omitempty"`
	TokenType        string `json:"tokenType"`
	ExpiresIn        int    `json:"expiresIn"`
	RefreshExpiresIn int    `json:"refreshExpiresIn,omitempty"`
}

// Login — POST /api/v1/auth/login. Публичный endpoint.
// Делегирует проверку учётных данных Keycloak (ROPC grant).
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	tokens, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка входа", "username", req.Username)
		return
	}

	writeJSON(w, http.StatusOK, mapTokens(tokens))
}

// Refresh — POST /api/v1/auth/refresh. Публичный endpoint.
func (h *APIHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	tokens, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления токенов")
		return
	}

	writeJSON(w, http.StatusOK, mapTokens(tokens))
}

// Logout — POST /api/v1/auth/logout. Требует аутентификации:
// bearer-токен берётся из контекста, refresh-токен — из тела.
func (h *APIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, "Отсутствует идентичность в контексте")
		return
	}

	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	if err := h.auth.Logout(r.Context(), identity.RawToken, req.RefreshToken); err != nil {
		h.writeServiceError(w, err, "Ошибка выхода", "user_id", identity.UserID)
		return
	}

	writeJSON(w, http.StatusOK, nil)
}

// SendUpdatePasswordEmail — POST /api/v1/auth/send-update-password-email.
// Публичный endpoint завершения настройки учётной записи: отправляет письмо
// со ссылкой UPDATE_PASSWORD. Пользователям с подтверждённым email — отказ.
func (h *APIHandler) SendUpdatePasswordEmail(w http.ResponseWriter, r *http.Request) {
	var req sendPasswordEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	if err := h.auth.SendUpdatePasswordEmail(r.Context(), string(req.Email)); err != nil {
		h.writeServiceError(w, err, "Ошибка отправки письма смены пароля", "email", string(req.Email))
		return
	}

	writeJSON(w, http.StatusOK, nil)
}

// mapTokens конвертирует пару токенов Keycloak в API-представление.
func mapTokens(t *keycloak.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      t.AccessToken,
		RefreshToken:     t.RefreshToken,
		TokenType:        t.TokenType,
		ExpiresIn:        t.ExpiresIn,
		RefreshExpiresIn: t.RefreshExpiresIn,
	}
}
