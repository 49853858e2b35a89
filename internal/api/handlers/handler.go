// handler.go — основной обработчик API User Module.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/user-module/internal/api/errors"
	"github.com/bigkaa/user-module/internal/api/middleware"
	"github.com/bigkaa/user-module/internal/service"
)

// APIHandler — основной обработчик API User Module.
// Делегирует запросы в сервисный слой.
type APIHandler struct {
	health    *HealthHandler
	users     *service.UsersService
	auth      *service.AuthService
	roles     *service.RolesService
	addresses *service.AddressesService
	logger    *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	users *service.UsersService,
	auth *service.AuthService,
	roles *service.RolesService,
	addresses *service.AddressesService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:    health,
		users:     users,
		auth:      auth,
		roles:     roles,
		addresses: addresses,
		logger:    logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// successEnvelope — единый конверт успешного ответа.
type successEnvelope struct {
	Status string `json:"status"`
	Data   any    `json:"data,omitempty"`
}

// writeJSON записывает JSON-ответ с указанным статусом в стандартном конверте.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successEnvelope{Status: "success", Data: data})
}

// callerFromRequest извлекает из контекста идентичность вызывающего
// и конвертирует её в service.Caller.
func callerFromRequest(r *http.Request) (service.Caller, *middleware.Identity, bool) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		return service.Caller{}, nil, false
	}
	return service.Caller{UserID: identity.UserID, IsAdmin: identity.IsAdmin}, identity, true
}

// writeServiceError транслирует ошибку сервисного слоя в HTTP-ответ.
// Неизвестные ошибки логируются и отдаются как 500 без деталей.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, logMsg string, attrs ...any) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		apierrors.Unauthorized(w, err.Error())
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrOperationFailed):
		h.logger.Error(logMsg, append(attrs, "error", err)...)
		apierrors.OperationFailed(w, err.Error())
	default:
		h.logger.Error(logMsg, append(attrs, "error", err)...)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
