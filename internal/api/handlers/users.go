// users.go — обработчики /api/v1/users endpoints.
// Создание (сага с Keycloak), получение, список с фильтрами, обновление,
// удаление, смена пароля.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/user-module/internal/api/errors"
	"github.com/bigkaa/user-module/internal/domain/model"
	"github.com/bigkaa/user-module/internal/domain/query"
	"github.com/bigkaa/user-module/internal/service"
)

// createUserRequest — тело POST /api/v1/users.
type createUserRequest struct {
	FirstName   string              `json:"firstName"`
	LastName    string              `json:"lastName"`
	Email       openapi_types.Email `json:"email"`
	Title       string              `json:"title,omitempty"`
	CountryCode string              `json:"countryCode,omitempty"`
	Phone       string              `json:"phone,omitempty"`
	Role        string              `json:"role"`
	AuthType    string              `json:"authType"`
}

// updateUserRequest — тело PATCH /api/v1/users/{id}.
// Все поля опциональны; отсутствующие не изменяются.
type updateUserRequest struct {
	Status      *string              `json:"status,omitempty"`
	Role        *string              `json:"role,omitempty"`
	FirstName   *string              `json:"firstName,omitempty"`
	LastName    *string              `json:"lastName,omitempty"`
	Email       *openapi_types.Email `json:"email,omitempty"`
	Title       *string              `json:"title,omitempty"`
	CountryCode *string              `json:"countryCode,omitempty"`
	Phone       *string              `json:"phone,omitempty"`
	Image       *[]byte              `json:"image,omitempty"`
}

// updatePasswordRequest — тело PUT /api/v1/users/{id}/password.
type updatePasswordRequest struct {
	NewPassword string `json:"newPassword"`
}

// userResponse — представление пользователя в API.
// Image сериализуется в base64 стандартным маршалингом []byte.
type userResponse struct {
	ID            uuid.UUID `json:"id"`
	Status        string    `json:"status"`
	AuthType      string    `json:"authType"`
	EmailVerified bool      `json:"emailVerified"`
	Role          string    `json:"role,omitempty"`
	FirstName     string    `json:"firstName,omitempty"`
	LastName      string    `json:"lastName,omitempty"`
	Email         string    `json:"email,omitempty"`
	Title         string    `json:"title,omitempty"`
	CountryCode   string    `json:"countryCode,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Image         []byte    `json:"image,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// userListResponse — постраничный список пользователей.
type userListResponse struct {
	Items   []userResponse `json:"items"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	Limit   int            `json:"limit"`
	HasMore bool           `json:"hasMore"`
}

// CreateUser — POST /api/v1/users.
// Создаёт пользователя локально и в Keycloak (сага с компенсацией).
// Доступ: admin или super_admin (проверяется в роутере).
func (h *APIHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	caller, identity, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность в контексте")
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	user, err := h.users.Create(r.Context(), identity.RawToken, caller, service.CreateUserInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       string(req.Email),
		Title:       req.Title,
		CountryCode: req.CountryCode,
		Phone:       req.Phone,
		Role:        req.Role,
		AuthType:    model.AuthType(req.AuthType),
	})
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания пользователя", "email", string(req.Email))
		return
	}

	writeJSON(w, http.StatusCreated, mapUser(user))
}

// GetUser — GET /api/v1/users/{id}.
func (h *APIHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.users.Find(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения пользователя", "user_id", id)
		return
	}

	writeJSON(w, http.StatusOK, mapUser(user))
}

// ListUsers — GET /api/v1/users.
// Параметры: page, limit, name, role, title (повторяемые), sortType, sortBy
// (позиционные пары). Ответ — постраничный список с total.
func (h *APIHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := parsePositiveParam(q, "page", 1)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	limit, err := parsePositiveParam(q, "limit", 20)
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	filters := query.Filters{
		Name:  q["name"],
		Role:  q["role"],
		Title: q["title"],
	}

	users, total, err := h.users.List(r.Context(), page, limit, filters, q["sortType"], q["sortBy"])
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка пользователей")
		return
	}

	items := make([]userResponse, len(users))
	for i, u := range users {
		items[i] = mapUser(u)
	}

	writeJSON(w, http.StatusOK, userListResponse{
		Items:   items,
		Total:   total,
		Page:    page,
		Limit:   limit,
		HasMore: page*limit < total,
	})
}

// UpdateUser — PATCH /api/v1/users/{id}.
// Не-администратор может изменять только собственный профиль;
// статус и роль доступны только администраторам.
func (h *APIHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность в контексте")
		return
	}

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	in := service.UpdateUserInput{
		Role: req.Role,
		Profile: model.ProfileUpdate{
			Image:       req.Image,
			Title:       req.Title,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			CountryCode: req.CountryCode,
			Phone:       req.Phone,
		},
	}
	if req.Status != nil {
		status := model.UserStatus(*req.Status)
		in.Status = &status
	}
	if req.Email != nil {
		email := string(*req.Email)
		in.Profile.Email = &email
	}

	user, err := h.users.Update(r.Context(), caller, id, in)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления пользователя", "user_id", id)
		return
	}

	writeJSON(w, http.StatusOK, mapUser(user))
}

// DeleteUser — DELETE /api/v1/users/{id}.
// Удаляет учётную запись в Keycloak, затем локальный агрегат.
// Доступ: super_admin (проверяется в роутере).
func (h *APIHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	_, identity, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность в контексте")
		return
	}

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), identity.RawToken, id); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления пользователя", "user_id", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdatePassword — PUT /api/v1/users/{id}/password.
// Пользователь может сменить только собственный пароль.
func (h *APIHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность в контексте")
		return
	}

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	if err := h.users.UpdatePassword(r.Context(), caller, id, req.NewPassword); err != nil {
		h.writeServiceError(w, err, "Ошибка смены пароля", "user_id", id)
		return
	}

	writeJSON(w, http.StatusOK, nil)
}

// --- Маппинг domain → API ---

// mapUser конвертирует агрегат пользователя в API-представление.
func mapUser(u *model.User) userResponse {
	resp := userResponse{
		ID:            u.ID,
		Status:        string(u.Status),
		AuthType:      string(u.AuthType),
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}

	if u.Role != nil {
		resp.Role = u.Role.Name
	}

	if u.Profile != nil {
		resp.FirstName = u.Profile.FirstName
		resp.LastName = u.Profile.LastName
		resp.Email = u.Profile.Email
		resp.Title = u.Profile.Title
		resp.CountryCode = u.Profile.CountryCode
		resp.Phone = u.Profile.Phone
		resp.Image = u.Profile.Image
	}

	return resp
}

// parseIDParam разбирает URL-параметр {id} как UUID.
// При ошибке пишет 400 и возвращает false.
func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор: "+err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// parsePositiveParam разбирает целочисленный параметр запроса со значением ≥ 1.
// Отсутствующий параметр заменяется значением по умолчанию; явно переданное
// некорректное или неположительное значение — ошибка валидации.
func parsePositiveParam(q url.Values, name string, def int) (int, error) {
	if !q.Has(name) {
		return def, nil
	}
	v, err := strconv.Atoi(q.Get(name))
	if err != nil || v < 1 {
		return 0, fmt.Errorf("параметр %s должен быть целым числом ≥ 1", name)
	}
	return v, nil
}
