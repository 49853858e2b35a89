package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/user-module/internal/domain/model"
)

// AddressRepository — интерфейс доступа к таблице addresses.
type AddressRepository interface {
	// Create добавляет адрес пользователю.
	Create(ctx context.Context, a *model.Address) error
	// GetByID возвращает адрес по UUID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Address, error)
	// ListByUserID возвращает адреса пользователя.
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]*model.Address, error)
	// Update обновляет адрес.
	Update(ctx context.Context, a *model.Address) error
	// Delete удаляет адрес.
	Delete(ctx context.Context, id uuid.UUID) error
}

// addressRepo — реализация AddressRepository.
type addressRepo struct {
	db DBTX
}

// NewAddressRepository создаёт репозиторий адресов.
func NewAddressRepository(db DBTX) AddressRepository {
	return &addressRepo{db: db}
}

func (r *addressRepo) Create(ctx context.Context, a *model.Address) error {
	query := `
		INSERT INTO addresses (id, user_id, line1, line2, city, state, country, zip_code,
			created_by, modified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		a.ID, a.UserID, a.Line1, a.Line2, a.City, a.State, a.Country, a.ZipCode,
		a.CreatedBy, a.ModifiedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания адреса: %w", err)
	}
	return nil
}

const addressSelect = `
	SELECT id, user_id, line1, line2, city, state, country, zip_code,
		created_by, modified_by, created_at, updated_at
	FROM addresses`

func scanAddress(row pgx.Row) (*model.Address, error) {
	a := &model.Address{}
	err := row.Scan(
		&a.ID, &a.UserID, &a.Line1, &a.Line2, &a.City, &a.State, &a.Country, &a.ZipCode,
		&a.CreatedBy, &a.ModifiedBy, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func (r *addressRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Address, error) {
	a, err := scanAddress(r.db.QueryRow(ctx, addressSelect+" WHERE id = $1", id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения адреса: %w", err)
	}
	return a, nil
}

func (r *addressRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]*model.Address, error) {
	rows, err := r.db.Query(ctx, addressSelect+" WHERE user_id = $1 ORDER BY created_at", userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения адресов: %w", err)
	}
	defer rows.Close()

	var result []*model.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования адреса: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func (r *addressRepo) Update(ctx context.Context, a *model.Address) error {
	query := `
		UPDATE addresses
		SET line1 = $2, line2 = $3, city = $4, state = $5, country = $6, zip_code = $7,
			modified_by = $8, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		a.ID, a.Line1, a.Line2, a.City, a.State, a.Country, a.ZipCode, a.ModifiedBy,
	).Scan(&a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления адреса: %w", err)
	}
	return nil
}

func (r *addressRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления адреса: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
