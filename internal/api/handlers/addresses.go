// addresses.go — обработчики адресов пользователей.
// POST/GET /api/v1/users/{id}/addresses, PATCH/DELETE /api/v1/addresses/{id}.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/bigkaa/user-module/internal/api/errors"
	"github.com/bigkaa/user-module/internal/domain/model"
	"github.com/bigkaa/user-module/internal/service"
)

// addressRequest — тело создания и обновления адреса.
type addressRequest struct {
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	Country string `json:"country"`
	ZipCode string `json:"zipCode,omitempty"`
}

// addressResponse — представление адреса в API.
type addressResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Line1     string    `json:"line1"`
	Line2     string    `json:"line2,omitempty"`
	City      string    `json:"city"`
	State     string    `json:"state,omitempty"`
	Country   string    `json:"country"`
	ZipCode   string    `json:"zipCode,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateAddress — POST /api/v1/users/{id}/addresses.
// Не-администратор может добавлять только собственные адреса.
func (h *APIHandler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность в контексте")
		return
	}

	userID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	addr, err := h.addresses.Create(r.Context(), caller, userID, mapAddressInput(req))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания адреса", "user_id", userID)
		return
	}

	writeJSON(w, http.StatusCreated, mapAddress(addr))
}

// ListAddresses — GET /api/v1/users/{id}/addresses.
func (h *APIHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность в контексте")
		return
	}

	userID, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	addrs, err := h.addresses.List(r.Context(), caller, userID)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения адресов", "user_id", userID)
		return
	}

	items := make([]addressResponse, len(addrs))
	for i, a := range addrs {
		items[i] = mapAddress(a)
	}

	writeJSON(w, http.StatusOK, items)
}

// UpdateAddress — PATCH /api/v1/addresses/{id}.
func (h *APIHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность в контексте")
		return
	}

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	var req addressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	addr, err := h.addresses.Update(r.Context(), caller, id, mapAddressInput(req))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления адреса", "address_id", id)
		return
	}

	writeJSON(w, http.StatusOK, mapAddress(addr))
}

// DeleteAddress — DELETE /api/v1/addresses/{id}.
func (h *APIHandler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	caller, _, ok := callerFromRequest(r)
	if !ok {
		apierrors.Unauthorized(w, "Отсутствует идентичность в контексте")
		return
	}

	id, ok := parseIDParam(w, r)
	if !ok {
		return
	}

	if err := h.addresses.Delete(r.Context(), caller, id); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления адреса", "address_id", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func mapAddressInput(req addressRequest) service.AddressInput {
	return service.AddressInput{
		Line1:   req.Line1,
		Line2:   req.Line2,
		City:    req.City,
		State:   req.State,
		Country: req.Country,
		ZipCode: req.ZipCode,
	}
}

func mapAddress(a *model.Address) addressResponse {
	return addressResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Line1:     a.Line1,
		Line2:     a.Line2,
		City:      a.City,
		State:     a.State,
		Country:   a.Country,
		ZipCode:   a.ZipCode,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}
