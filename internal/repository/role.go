package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/user-module/internal/domain/model"
)

// RoleRepository — интерфейс доступа к таблице roles.
// У каждого пользователя ровно одна роль (unique по user_id).
type RoleRepository interface {
	// WithTx возвращает копию репозитория, привязанную к db.
	WithTx(db DBTX) RoleRepository
	// Create создаёт назначение роли пользователю.
	Create(ctx context.Context, role *model.Role) error
	// GetByUserID возвращает роль пользователя.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Role, error)
	// UpdateNameByUserID меняет имя роли пользователя.
	UpdateNameByUserID(ctx context.Context, userID uuid.UUID, name string, modifiedBy *uuid.UUID) error
}

// roleRepo — реализация RoleRepository.
type roleRepo struct {
	db DBTX
}

// NewRoleRepository создаёт репозиторий ролей.
func NewRoleRepository(db DBTX) RoleRepository {
	return &roleRepo{db: db}
}

func (r *roleRepo) WithTx(db DBTX) RoleRepository {
	return &roleRepo{db: db}
}

func (r *roleRepo) Create(ctx context.Context, role *model.Role) error {
	query := `
		INSERT INTO roles (id, user_id, name, created_by, modified_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		role.ID, role.UserID, role.Name, role.CreatedBy, role.ModifiedBy,
	).Scan(&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: роль пользователю уже назначена", ErrConflict)
		}
		return fmt.Errorf("ошибка назначения роли: %w", err)
	}
	return nil
}

func (r *roleRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Role, error) {
	query := `
		SELECT id, user_id, name, created_by, modified_by, created_at, updated_at
		FROM roles
		WHERE user_id = $1`

	role := &model.Role{}
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&role.ID, &role.UserID, &role.Name,
		&role.CreatedBy, &role.ModifiedBy, &role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения роли: %w", err)
	}
	return role, nil
}

func (r *roleRepo) UpdateNameByUserID(ctx context.Context, userID uuid.UUID, name string, modifiedBy *uuid.UUID) error {
	query := `
		UPDATE roles
		SET name = $2, modified_by = $3, updated_at = now()
		WHERE user_id = $1`

	tag, err := r.db.Exec(ctx, query, userID, name, modifiedBy)
	if err != nil {
		return fmt.Errorf("ошибка обновления роли: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
