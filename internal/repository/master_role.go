package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/user-module/internal/domain/model"
)

// MasterRoleRepository — интерфейс доступа к справочнику ролей master_roles.
type MasterRoleRepository interface {
	// Create добавляет роль в справочник.
	Create(ctx context.Context, role *model.MasterRole) error
	// GetByID возвращает роль по UUID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.MasterRole, error)
	// List возвращает все роли справочника.
	List(ctx context.Context) ([]*model.MasterRole, error)
	// ExistsByName проверяет наличие роли с таким именем.
	ExistsByName(ctx context.Context, name string) (bool, error)
	// Count возвращает количество ролей в справочнике.
	Count(ctx context.Context) (int, error)
	// UpdateName переименовывает роль.
	UpdateName(ctx context.Context, id uuid.UUID, name string, modifiedBy *uuid.UUID) error
	// Delete удаляет роль из справочника.
	Delete(ctx context.Context, id uuid.UUID) error
}

// masterRoleRepo — реализация MasterRoleRepository.
type masterRoleRepo struct {
	db DBTX
}

// NewMasterRoleRepository создаёт репозиторий справочника ролей.
func NewMasterRoleRepository(db DBTX) MasterRoleRepository {
	return &masterRoleRepo{db: db}
}

func (r *masterRoleRepo) Create(ctx context.Context, role *model.MasterRole) error {
	query := `
		INSERT INTO master_roles (id, name, created_by, modified_by)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		role.ID, role.Name, role.CreatedBy, role.ModifiedBy,
	).Scan(&role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: роль %s уже есть в справочнике", ErrConflict, role.Name)
		}
		return fmt.Errorf("ошибка создания роли: %w", err)
	}
	return nil
}

func (r *masterRoleRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.MasterRole, error) {
	query := `
		SELECT id, name, created_by, modified_by, created_at, updated_at
		FROM master_roles
		WHERE id = $1`

	role := &model.MasterRole{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&role.ID, &role.Name, &role.CreatedBy, &role.ModifiedBy,
		&role.CreatedAt, &role.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения роли: %w", err)
	}
	return role, nil
}

func (r *masterRoleRepo) List(ctx context.Context) ([]*model.MasterRole, error) {
	query := `
		SELECT id, name, created_by, modified_by, created_at, updated_at
		FROM master_roles
		ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения справочника ролей: %w", err)
	}
	defer rows.Close()

	var result []*model.MasterRole
	for rows.Next() {
		role := &model.MasterRole{}
		if err := rows.Scan(
			&role.ID, &role.Name, &role.CreatedBy, &role.ModifiedBy,
			&role.CreatedAt, &role.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования роли: %w", err)
		}
		result = append(result, role)
	}
	return result, rows.Err()
}

func (r *masterRoleRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM master_roles WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки роли: %w", err)
	}
	return exists, nil
}

func (r *masterRoleRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM master_roles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта ролей: %w", err)
	}
	return count, nil
}

func (r *masterRoleRepo) UpdateName(ctx context.Context, id uuid.UUID, name string, modifiedBy *uuid.UUID) error {
	query := `
		UPDATE master_roles
		SET name = $2, modified_by = $3, updated_at = now()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, name, modifiedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: роль %s уже есть в справочнике", ErrConflict, name)
		}
		return fmt.Errorf("ошибка переименования роли: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *masterRoleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM master_roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления роли: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
