// roles.go — сервис справочника ролей (master roles).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/bigkaa/user-module/internal/domain/model"
	"github.com/bigkaa/user-module/internal/repository"
)

// RolesService — сервис справочника ролей.
type RolesService struct {
	masterRoles repository.MasterRoleRepository
	logger      *slog.Logger
}

// NewRolesService создаёт сервис справочника ролей.
func NewRolesService(masterRoles repository.MasterRoleRepository, logger *slog.Logger) *RolesService {
	return &RolesService{
		masterRoles: masterRoles,
		logger:      logger.With(slog.String("component", "roles_service")),
	}
}

// Create добавляет роль в справочник.
func (s *RolesService) Create(ctx context.Context, caller Caller, name string) (*model.MasterRole, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: имя роли обязательно", ErrValidation)
	}

	role := &model.MasterRole{
		ID:        uuid.New(),
		Name:      name,
		CreatedBy: &caller.UserID,
	}
	if err := s.masterRoles.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: роль %s уже существует", ErrConflict, name)
		}
		return nil, err
	}

	s.logger.Info("Роль добавлена в справочник", slog.String("name", name))
	return role, nil
}

// Get возвращает роль справочника по id.
func (s *RolesService) Get(ctx context.Context, id uuid.UUID) (*model.MasterRole, error) {
	role, err := s.masterRoles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: роль %s", ErrNotFound, id)
		}
		return nil, err
	}
	return role, nil
}

// List возвращает все роли справочника.
func (s *RolesService) List(ctx context.Context) ([]*model.MasterRole, error) {
	return s.masterRoles.List(ctx)
}

// Update переименовывает роль справочника.
func (s *RolesService) Update(ctx context.Context, caller Caller, id uuid.UUID, name string) (*model.MasterRole, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: имя роли обязательно", ErrValidation)
	}

	if err := s.masterRoles.UpdateName(ctx, id, name, &caller.UserID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: роль %s", ErrNotFound, id)
		case errors.Is(err, repository.ErrConflict):
			return nil, fmt.Errorf("%w: роль %s уже существует", ErrConflict, name)
		}
		return nil, err
	}

	return s.Get(ctx, id)
}

// Delete удаляет роль из справочника.
// Назначенные пользователям роли не трогаются: справочник — только
// ограничение на вновь создаваемые назначения.
func (s *RolesService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.masterRoles.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: роль %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}
