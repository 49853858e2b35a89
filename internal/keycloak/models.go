// Пакет keycloak — HTTP-клиент к Keycloak (Admin REST API + OIDC endpoints).
// models.go — модели данных Keycloak.
package keycloak

import "time"

// TokenPair — ответ token endpoint (ROPC и refresh_token grant).
type TokenPair struct {
	AccessToken      string `json:"access_token"` //nolint:gosec // G117: структура токена OAuth2
	RefreshToken     string `json:"refresh_token,omitempty"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in,omitempty"`
}

// User — представление пользователя в Keycloak.
type User struct {
	ID            string              `json:"id"`
	Username      string              `json:"username"`
	Email         string              `json:"email"`
	FirstName     string              `json:"firstName"`
	LastName      string              `json:"lastName"`
	Enabled       bool                `json:"enabled"`
	EmailVerified bool                `json:"emailVerified"`
	CreatedAt     int64               `json:"createdTimestamp"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
}

// CreatedAtTime возвращает CreatedAt как time.Time.
// Keycloak хранит timestamp в миллисекундах.
func (u *User) CreatedAtTime() time.Time {
	return time.UnixMilli(u.CreatedAt)
}

// Userinfo — ответ OIDC userinfo endpoint. Claims userId и roles
// добавляются protocol mappers realm'а из атрибутов пользователя.
type Userinfo struct {
	Sub               string `json:"sub"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
	UserID            string `json:"userId,omitempty"`
	Roles             string `json:"roles,omitempty"`
}

// CreateUserRequest — параметры создания учётной записи.
// LocalUserID записывается в атрибуты как корреляционный идентификатор
// локальной записи; Roles — имена ролей, тоже в атрибутах.
type CreateUserRequest struct {
	LocalUserID string
	FirstName   string
	LastName    string
	Email       string
	Roles       []string
}

// userRepresentation — тело запроса создания/обновления пользователя
// в формате Keycloak Admin REST API.
type userRepresentation struct {
	Username        string              `json:"username,omitempty"`
	Email           string              `json:"email,omitempty"`
	FirstName       string              `json:"firstName,omitempty"`
	LastName        string              `json:"lastName,omitempty"`
	Enabled         *bool               `json:"enabled,omitempty"`
	EmailVerified   *bool               `json:"emailVerified,omitempty"`
	RequiredActions []string            `json:"requiredActions,omitempty"`
	Groups          []string            `json:"groups,omitempty"`
	Attributes      map[string][]string `json:"attributes,omitempty"`
}

// credentialRepresentation — тело запроса reset-password.
type credentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// clientRepresentation — клиент (application) в Keycloak.
// Используется при резолве client id для назначения клиентских ролей.
type clientRepresentation struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
}

// roleRepresentation — роль realm'а или клиента.
type roleRepresentation struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Composite   bool   `json:"composite,omitempty"`
	ClientRole  bool   `json:"clientRole,omitempty"`
	ContainerID string `json:"containerId,omitempty"`
}

// errorResponse — тело ошибки Keycloak. Провайдер использует оба поля
// в зависимости от endpoint'а.
type errorResponse struct {
	ErrorMessage     string `json:"errorMessage,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// message возвращает первое непустое сообщение из тела ошибки.
func (e *errorResponse) message() string {
	if e.ErrorMessage != "" {
		return e.ErrorMessage
	}
	if e.ErrorDescription != "" {
		return e.ErrorDescription
	}
	return e.Error
}
