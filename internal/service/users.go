// users.go — сервис управления пользователями.
//
// Создание пользователя — распределённая операция между Keycloak и
// PostgreSQL без two-phase commit. Порядок шагов:
//
//  1. локальный черновик (id генерируется заранее);
//  2. создание учётной записи в Keycloak;
//  3. резолв keycloak_id по email;
//  4. запись users + roles + user_profiles в одной транзакции;
//  5. выдача клиентской роли manage-users (только super_admin);
//  6. письмо установки пароля.
//
// Любой сбой после шага 3 компенсируется одним best-effort удалением
// учётной записи в Keycloak; наружу всегда уходит исходная ошибка.
// Повторов нет.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/user-module/internal/domain/model"
	"github.com/bigkaa/user-module/internal/domain/query"
	"github.com/bigkaa/user-module/internal/domain/rbac"
	"github.com/bigkaa/user-module/internal/keycloak"
	"github.com/bigkaa/user-module/internal/repository"
)

// Caller — идентичность вызывающего для проверок прав на уровне сервиса.
type Caller struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// identityGateway — операции Keycloak, используемые сервисом пользователей.
type identityGateway interface {
	CreateUser(ctx context.Context, token string, req keycloak.CreateUserRequest) error
	FetchUserByEmail(ctx context.Context, token, email string) ([]keycloak.User, error)
	DeleteUser(ctx context.Context, token, keycloakID string) error
	SendPasswordResetEmail(ctx context.Context, keycloakID string) error
	AssignClientRole(ctx context.Context, keycloakID string) error
	ResetPassword(ctx context.Context, keycloakID, newPassword string) error
	UpdateUserEmail(ctx context.Context, keycloakID, email string) error
}

// txRunner — выполнение функции в транзакции БД.
type txRunner interface {
	RunInTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// UsersService — сервис управления пользователями.
type UsersService struct {
	gateway     identityGateway
	tx          txRunner
	users       repository.UserRepository
	profiles    repository.UserProfileRepository
	roles       repository.RoleRepository
	masterRoles repository.MasterRoleRepository
	logger      *slog.Logger
}

// NewUsersService создаёт сервис пользователей.
func NewUsersService(
	gateway identityGateway,
	tx txRunner,
	users repository.UserRepository,
	profiles repository.UserProfileRepository,
	roles repository.RoleRepository,
	masterRoles repository.MasterRoleRepository,
	logger *slog.Logger,
) *UsersService {
	return &UsersService{
		gateway:     gateway,
		tx:          tx,
		users:       users,
		profiles:    profiles,
		roles:       roles,
		masterRoles: masterRoles,
		logger:      logger.With(slog.String("component", "users_service")),
	}
}

// CreateUserInput — входные данные создания пользователя.
type CreateUserInput struct {
	FirstName   string
	LastName    string
	Email       string
	Title       string
	CountryCode string
	Phone       string
	Role        string
	AuthType    model.AuthType
}

// Create выполняет полный сценарий создания пользователя.
// token — bearer-токен вызывающего администратора (для Admin REST API).
func (s *UsersService) Create(ctx context.Context, token string, caller Caller, in CreateUserInput) (*model.User, error) {
	if err := s.validateCreate(ctx, in); err != nil {
		return nil, err
	}

	// Шаг 1: локальный черновик. ID генерируется заранее и передаётся
	// в Keycloak атрибутом, чтобы связь была видна с обеих сторон.
	userID := uuid.New()

	// Шаг 2: учётная запись в Keycloak. Сбой здесь не компенсируется —
	// удалённого состояния ещё нет.
	err := s.gateway.CreateUser(ctx, token, keycloak.CreateUserRequest{
		LocalUserID: userID.String(),
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		Roles:       []string{in.Role},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: создание учётной записи: %w", ErrOperationFailed, err)
	}

	// Шаг 3: Keycloak не возвращает id в теле ответа — резолвим по email.
	remote, err := s.gateway.FetchUserByEmail(ctx, token, in.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: поиск созданной учётной записи: %w", ErrOperationFailed, err)
	}
	if len(remote) == 0 {
		return nil, fmt.Errorf("%w: учётная запись %s не найдена после создания", ErrOperationFailed, in.Email)
	}
	keycloakID := remote[0].ID

	// С этого момента любой сбой компенсируется удалением учётной записи.
	compensate := func(cause error) error {
		if delErr := s.gateway.DeleteUser(ctx, token, keycloakID); delErr != nil {
			s.logger.Error("Компенсация не удалась: учётная запись осталась в Keycloak",
				slog.String("keycloak_id", keycloakID),
				slog.String("email", in.Email),
				slog.Any("error", delErr),
			)
		}
		return cause
	}

	// Шаг 4: локальные записи в одной транзакции.
	user := &model.User{
		ID:         userID,
		KeycloakID: keycloakID,
		Status:     model.StatusActive,
		AuthType:   in.AuthType,
		CreatedBy:  &caller.UserID,
	}
	role := &model.Role{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      in.Role,
		CreatedBy: &caller.UserID,
	}
	profile := &model.UserProfile{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       in.Title,
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		CountryCode: in.CountryCode,
		Phone:       in.Phone,
		CreatedBy:   &caller.UserID,
	}

	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := s.users.WithTx(tx).Create(ctx, user); err != nil {
			return err
		}
		if err := s.roles.WithTx(tx).Create(ctx, role); err != nil {
			return err
		}
		return s.profiles.WithTx(tx).Create(ctx, profile)
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, compensate(fmt.Errorf("%w: %w", ErrValidation, err))
		}
		return nil, compensate(fmt.Errorf("%w: сохранение пользователя: %w", ErrOperationFailed, err))
	}

	// Локальные записи зафиксированы: при последующих сбоях убираем и их.
	compensateAll := func(cause error) error {
		if delErr := s.users.Delete(ctx, userID); delErr != nil {
			s.logger.Error("Компенсация не удалась: локальная запись осталась",
				slog.String("user_id", userID.String()),
				slog.Any("error", delErr),
			)
		}
		return compensate(cause)
	}

	// Шаг 5: super_admin получает клиентскую роль manage-users.
	if rbac.IsSuperAdmin([]string{in.Role}) {
		if err := s.gateway.AssignClientRole(ctx, keycloakID); err != nil {
			return nil, compensateAll(fmt.Errorf("%w: выдача клиентской роли: %w", ErrOperationFailed, err))
		}
	}

	// Шаг 6: письмо установки пароля получает каждый созданный
	// пользователь, независимо от способа аутентификации.
	if err := s.gateway.SendPasswordResetEmail(ctx, keycloakID); err != nil {
		return nil, compensateAll(fmt.Errorf("%w: письмо установки пароля: %w", ErrOperationFailed, err))
	}

	s.logger.Info("Пользователь создан",
		slog.String("user_id", userID.String()),
		slog.String("keycloak_id", keycloakID),
		slog.String("role", in.Role),
	)

	user.Role = role
	user.Profile = profile
	return user, nil
}

// validateCreate проверяет входные данные создания.
// Роль должна входить в закрытый набор или, если справочник ролей
// непуст, присутствовать в нём.
func (s *UsersService) validateCreate(ctx context.Context, in CreateUserInput) error {
	if in.Email == "" {
		return fmt.Errorf("%w: email обязателен", ErrValidation)
	}
	if in.FirstName == "" || in.LastName == "" {
		return fmt.Errorf("%w: имя и фамилия обязательны", ErrValidation)
	}
	switch in.AuthType {
	case model.AuthTypeGoogle, model.AuthTypeMicrosoft, model.AuthTypeOkta, model.AuthTypeLocal:
	default:
		return fmt.Errorf("%w: недопустимый способ аутентификации %q", ErrValidation, in.AuthType)
	}

	return s.validateRole(ctx, in.Role)
}

// validateRole проверяет роль против закрытого набора rbac и, если
// справочник master_roles непуст, против справочника. Общая проверка
// обоих путей записи: создания и смены роли.
func (s *UsersService) validateRole(ctx context.Context, role string) error {
	if rbac.IsValidRole(role) {
		return nil
	}

	count, err := s.masterRoles.Count(ctx)
	if err != nil {
		return fmt.Errorf("проверка справочника ролей: %w", err)
	}
	if count > 0 {
		exists, err := s.masterRoles.ExistsByName(ctx, role)
		if err != nil {
			return fmt.Errorf("проверка роли в справочнике: %w", err)
		}
		if exists {
			return nil
		}
	}
	return fmt.Errorf("%w: недопустимая роль %q", ErrValidation, role)
}

// UpdateUserInput — частичное обновление пользователя.
type UpdateUserInput struct {
	Status  *model.UserStatus
	Role    *string
	Profile model.ProfileUpdate
}

// Update обновляет пользователя. Не-администратор может менять только
// собственный профиль; статус и роль доступны только администраторам.
func (s *UsersService) Update(ctx context.Context, caller Caller, userID uuid.UUID, in UpdateUserInput) (*model.User, error) {
	if !caller.IsAdmin && caller.UserID != userID {
		return nil, fmt.Errorf("%w: можно изменять только собственный профиль", ErrForbidden)
	}
	if !caller.IsAdmin && (in.Status != nil || in.Role != nil) {
		return nil, fmt.Errorf("%w: смена статуса и роли доступна только администраторам", ErrForbidden)
	}

	current, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь %s", ErrNotFound, userID)
		}
		return nil, err
	}

	if in.Role != nil {
		if err := s.validateRole(ctx, *in.Role); err != nil {
			return nil, err
		}
	}

	// Смена email отражается в Keycloak до локальной записи. Если
	// локальное обновление после этого не пройдёт, стороны разойдутся —
	// фиксируем это в логе, ручная сверка по keycloak_id.
	if in.Profile.Email != nil && current.Profile != nil && *in.Profile.Email != current.Profile.Email {
		if err := s.gateway.UpdateUserEmail(ctx, current.KeycloakID, *in.Profile.Email); err != nil {
			return nil, fmt.Errorf("%w: смена email в Keycloak: %w", ErrOperationFailed, err)
		}
		// Смена email сбрасывает подтверждение
		verified := false
		if err := s.users.UpdateFields(ctx, userID, model.UserUpdate{EmailVerified: &verified, ModifiedBy: &caller.UserID}); err != nil {
			s.logger.Error("Email обновлён в Keycloak, но сброс подтверждения не записан",
				slog.String("user_id", userID.String()),
				slog.String("keycloak_id", current.KeycloakID),
				slog.Any("error", err),
			)
		}
	}

	in.Profile.ModifiedBy = &caller.UserID

	err = s.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if in.Status != nil {
			upd := model.UserUpdate{Status: in.Status, ModifiedBy: &caller.UserID}
			if err := s.users.WithTx(tx).UpdateFields(ctx, userID, upd); err != nil {
				return err
			}
		}
		if in.Role != nil {
			if err := s.roles.WithTx(tx).UpdateNameByUserID(ctx, userID, *in.Role, &caller.UserID); err != nil {
				return err
			}
		}
		if !in.Profile.IsEmpty() {
			if err := s.profiles.WithTx(tx).UpdateFields(ctx, userID, in.Profile); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь %s", ErrNotFound, userID)
		}
		if in.Profile.Email != nil {
			s.logger.Error("Email обновлён в Keycloak, но локальное обновление не прошло",
				slog.String("user_id", userID.String()),
				slog.String("keycloak_id", current.KeycloakID),
				slog.Any("error", err),
			)
		}
		return nil, fmt.Errorf("%w: обновление пользователя: %w", ErrOperationFailed, err)
	}

	return s.Find(ctx, userID)
}

// Delete удаляет пользователя локально, затем в Keycloak.
// Если удалённое удаление после этого не прошло, операция всё равно
// считается успешной: учётная запись-сирота помечается в логе для
// ручной сверки, автоматической сверки нет.
func (s *UsersService) Delete(ctx context.Context, token string, userID uuid.UUID) error {
	keycloakID, err := s.users.GetKeycloakID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: пользователь %s", ErrNotFound, userID)
		}
		return err
	}

	// Локальный агрегат первым: каскад сносит профиль, роль и адреса
	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("%w: удаление локальной записи: %w", ErrOperationFailed, err)
	}

	if err := s.gateway.DeleteUser(ctx, token, keycloakID); err != nil {
		s.logger.Error("Локальная запись удалена, но учётная запись осталась в Keycloak",
			slog.String("user_id", userID.String()),
			slog.String("keycloak_id", keycloakID),
			slog.Any("error", err),
		)
	}

	s.logger.Info("Пользователь удалён",
		slog.String("user_id", userID.String()),
		slog.String("keycloak_id", keycloakID),
	)
	return nil
}

// Find возвращает агрегат пользователя.
func (s *UsersService) Find(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь %s", ErrNotFound, userID)
		}
		return nil, err
	}
	return user, nil
}

// List возвращает страницу пользователей и общее количество.
// page и limit начинаются с 1; фильтры и сортировки — см. domain/query.
func (s *UsersService) List(ctx context.Context, page, limit int, filters query.Filters, sortTypes, sortBy []string) ([]*model.User, int, error) {
	pg, err := query.NewPagination(page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	groups := query.BuildFilters(filters)
	order := query.BuildOrder(sortTypes, sortBy)

	return s.users.List(ctx, pg, groups, order)
}

// UpdatePassword устанавливает новый пароль пользователя в Keycloak.
// Строго собственный пароль: администраторам чужой пароль тоже
// недоступен, для сброса есть письмо установки пароля.
func (s *UsersService) UpdatePassword(ctx context.Context, caller Caller, userID uuid.UUID, newPassword string) error {
	if caller.UserID != userID {
		return fmt.Errorf("%w: можно менять только собственный пароль", ErrForbidden)
	}
	if len(newPassword) < 8 {
		return fmt.Errorf("%w: пароль короче 8 символов", ErrValidation)
	}

	keycloakID, err := s.users.GetKeycloakID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: пользователь %s", ErrNotFound, userID)
		}
		return err
	}

	if err := s.gateway.ResetPassword(ctx, keycloakID, newPassword); err != nil {
		return fmt.Errorf("%w: смена пароля: %w", ErrOperationFailed, err)
	}

	s.logger.Info("Пароль обновлён", slog.String("user_id", userID.String()))
	return nil
}
