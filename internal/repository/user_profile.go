package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/user-module/internal/domain/model"
)

// UserProfileRepository — интерфейс доступа к таблице user_profiles.
type UserProfileRepository interface {
	// WithTx возвращает копию репозитория, привязанную к db.
	WithTx(db DBTX) UserProfileRepository
	// Create создаёт профиль пользователя.
	Create(ctx context.Context, p *model.UserProfile) error
	// GetByUserID возвращает профиль по id пользователя.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*model.UserProfile, error)
	// GetByEmail возвращает профиль по email.
	GetByEmail(ctx context.Context, email string) (*model.UserProfile, error)
	// UpdateFields обновляет только переданные поля профиля.
	UpdateFields(ctx context.Context, userID uuid.UUID, upd model.ProfileUpdate) error
}

// profileRepo — реализация UserProfileRepository.
type profileRepo struct {
	db DBTX
}

// NewUserProfileRepository создаёт репозиторий профилей.
func NewUserProfileRepository(db DBTX) UserProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) WithTx(db DBTX) UserProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) Create(ctx context.Context, p *model.UserProfile) error {
	query := `
		INSERT INTO user_profiles (id, user_id, image, title, first_name, last_name,
			email, country_code, phone, created_by, modified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		p.ID, p.UserID, p.Image, p.Title, p.FirstName, p.LastName,
		p.Email, p.CountryCode, p.Phone, p.CreatedBy, p.ModifiedBy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email уже используется", ErrConflict)
		}
		return fmt.Errorf("ошибка создания профиля: %w", err)
	}
	return nil
}

const profileSelect = `
	SELECT id, user_id, image, title, first_name, last_name,
		email, country_code, phone, created_by, modified_by, created_at, updated_at
	FROM user_profiles`

func scanProfile(row pgx.Row) (*model.UserProfile, error) {
	p := &model.UserProfile{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.Image, &p.Title, &p.FirstName, &p.LastName,
		&p.Email, &p.CountryCode, &p.Phone, &p.CreatedBy, &p.ModifiedBy,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *profileRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.UserProfile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, profileSelect+" WHERE user_id = $1", userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения профиля: %w", err)
	}
	return p, nil
}

func (r *profileRepo) GetByEmail(ctx context.Context, email string) (*model.UserProfile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx, profileSelect+" WHERE email = $1", email))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения профиля по email: %w", err)
	}
	return p, nil
}

func (r *profileRepo) UpdateFields(ctx context.Context, userID uuid.UUID, upd model.ProfileUpdate) error {
	var sets []string
	var args []any
	argNum := 1

	appendSet := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argNum))
		args = append(args, val)
		argNum++
	}

	if upd.Image != nil {
		appendSet("image", *upd.Image)
	}
	if upd.Title != nil {
		appendSet("title", *upd.Title)
	}
	if upd.FirstName != nil {
		appendSet("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		appendSet("last_name", *upd.LastName)
	}
	if upd.Email != nil {
		appendSet("email", *upd.Email)
	}
	if upd.CountryCode != nil {
		appendSet("country_code", *upd.CountryCode)
	}
	if upd.Phone != nil {
		appendSet("phone", *upd.Phone)
	}
	if upd.ModifiedBy != nil {
		appendSet("modified_by", *upd.ModifiedBy)
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`UPDATE user_profiles SET %s WHERE user_id = $%d`, strings.Join(sets, ", "), argNum)
	args = append(args, userID)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email уже используется", ErrConflict)
		}
		return fmt.Errorf("ошибка обновления профиля: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
