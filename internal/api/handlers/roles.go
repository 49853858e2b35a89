// roles.go — обработчики /api/v1/roles endpoints.
// CRUD каталога ролей (master roles). Доступ: super_admin (роутер).
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/bigkaa/user-module/internal/api/errors"
	"github.com/bigkaa/user-module/internal/domain/model"
)

// roleRequest — тело POST /api/v1/roles и PATCH /api/v1/roles/{id}.
type roleRequest struct {
	Name string `json:"name"`
}

// roleResponse — представление записи каталога ролей.
type roleResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateRole — POST /api/v1/roles.
func (h *APIHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность в контексте")
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	role, err := h.roles.Create(r.Context(), caller, req.Name)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания роли", "name", req.Name)
		return
	}

	writeJSON(w, http.StatusCreated, mapRole(role))
}

// GetRole — GET /api/v1/roles/{id}.
func (h *APIHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	role, err := h.roles.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения роли", "role_id", id)
		return
	}

	writeJSON(w, http.StatusOK, mapRole(role))
}

// ListRoles — GET /api/v1/roles.
func (h *APIHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения каталога ролей")
		return
	}

	items := make([]roleResponse, len(roles))
	for i, role := range roles {
		items[i] = mapRole(role)
	}

	writeJSON(w, http.StatusOK, items)
}

// UpdateRole — PATCH /api/v1/roles/{id}.
// Переименование записи каталога; уже назначенные роли не меняются.
func (h *APIHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность в контексте")
		return
	}

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req roleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	role, err := h.roles.Update(r.Context(), caller, id, req.Name)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления роли", "role_id", id)
		return
	}

	writeJSON(w, http.StatusOK, mapRole(role))
}

// DeleteRole — DELETE /api/v1/roles/{id}.
func (h *APIHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.roles.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления роли", "role_id", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// mapRole конвертирует запись каталога ролей в API-представление.
func mapRole(role *model.MasterRole) roleResponse {
	return roleResponse{
		ID:        role.ID,
		Name:      role.Name,
		CreatedAt: role.CreatedAt,
		UpdatedAt: role.UpdatedAt,
	}
}
