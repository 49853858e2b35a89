// Пакет model — доменные модели User Module.
package model

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus — статус локальной учётной записи.
type UserStatus string

const (
	// StatusActive — учётная запись активна.
	StatusActive UserStatus = "active"
	// StatusDisabled — учётная запись отключена.
	StatusDisabled UserStatus = "disabled"
)

// AuthType — способ аутентификации пользователя.
type AuthType string

const (
	AuthTypeGoogle    AuthType = "google"
	AuthTypeMicrosoft AuthType = "microsoft"
	AuthTypeOkta      AuthType = "okta"
	AuthTypeLocal     AuthType = "local"
)

// User — локальная запись пользователя. Якорь идентичности:
// KeycloakID связывает запись с учётной записью в Keycloak,
// Role и Profile — агрегат 1:1 (создаются и удаляются только сагой).
type User struct {
	// ID — локальный UUID пользователя
	ID uuid.UUID
	// KeycloakID — идентификатор учётной записи в Keycloak (уникальный)
	KeycloakID string
	// Status — статус учётной записи (active, disabled)
	Status UserStatus
	// AuthType — способ аутентификации (google, microsoft, okta, local)
	AuthType AuthType
	// EmailVerified — подтверждён ли email в Keycloak
	EmailVerified bool
	// CreatedBy — кто создал запись (ссылка на users, может быть nil)
	CreatedBy *uuid.UUID
	// ModifiedBy — кто последним изменял запись (может быть nil)
	ModifiedBy *uuid.UUID
	// CreatedAt — время создания записи
	CreatedAt time.Time
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time

	// Role — роль пользователя (1:1, может отсутствовать при частичной выборке)
	Role *Role
	// Profile — профиль пользователя (1:1, может отсутствовать при частичной выборке)
	Profile *UserProfile
}

// UserUpdate — частичное обновление полей users.
// nil-поле означает «не менять».
type UserUpdate struct {
	Status        *UserStatus
	EmailVerified *bool
	ModifiedBy    *uuid.UUID
}

// IsEmpty сообщает, задано ли хотя бы одно поле обновления.
func (u UserUpdate) IsEmpty() bool {
	return u.Status == nil && u.EmailVerified == nil
}

// UserProfile — контактные и отображаемые данные пользователя.
// Image хранится как сырые байты; на границе API передаётся в base64.
type UserProfile struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Image       []byte
	Title       string
	FirstName   string
	LastName    string
	Email       string
	CountryCode string
	Phone       string
	CreatedBy   *uuid.UUID
	ModifiedBy  *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProfileUpdate — частичное обновление полей user_profiles.
type ProfileUpdate struct {
	Image       *[]byte
	Title       *string
	FirstName   *string
	LastName    *string
	Email       *string
	CountryCode *string
	Phone       *string
	ModifiedBy  *uuid.UUID
}

// IsEmpty сообщает, задано ли хотя бы одно поле обновления.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Image == nil && p.Title == nil && p.FirstName == nil &&
		p.LastName == nil && p.Email == nil && p.CountryCode == nil && p.Phone == nil
}

// Role — назначение роли пользователю (1:1 с users).
// Name — значение из закрытого набора ролей (см. domain/rbac).
type Role struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Name       string
	CreatedBy  *uuid.UUID
	ModifiedBy *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MasterRole — запись каталога допустимых ролей.
// Управляется независимым CRUD, с сагой не связана.
type MasterRole struct {
	ID         uuid.UUID
	Name       string
	CreatedBy  *uuid.UUID
	ModifiedBy *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Address — структурированный адрес пользователя (опциональный, 1:1).
// В сагу не входит — обычный CRUD.
type Address struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Line1      string
	Line2      string
	City       string
	State      string
	Country    string
	ZipCode    string
	CreatedBy  *uuid.UUID
	ModifiedBy *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
