package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/user-module/internal/domain/model"
	"github.com/bigkaa/user-module/internal/domain/query"
)

// UserRepository — интерфейс доступа к таблице users.
// GetByID и List возвращают агрегат: пользователь + профиль + роль.
type UserRepository interface {
	// WithTx возвращает копию репозитория, привязанную к db (обычно pgx.Tx).
	WithTx(db DBTX) UserRepository
	// Create создаёт запись пользователя.
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает агрегат пользователя по UUID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetKeycloakID возвращает идентификатор учётной записи Keycloak.
	GetKeycloakID(ctx context.Context, id uuid.UUID) (string, error)
	// UpdateFields обновляет только переданные поля.
	UpdateFields(ctx context.Context, id uuid.UUID, upd model.UserUpdate) error
	// Delete удаляет пользователя (каскад сносит профиль, роль и адреса).
	Delete(ctx context.Context, id uuid.UUID) error
	// List возвращает страницу агрегатов и общее количество строк,
	// удовлетворяющих фильтрам (без учёта пагинации).
	List(ctx context.Context, p query.Pagination, groups []query.Group, order []query.Order) ([]*model.User, int, error)
}

// fieldColumns — соответствие логических полей фильтрации колонкам SQL.
// Алиасы: u — users, p — user_profiles, r — roles.
var fieldColumns = map[string]string{
	query.FieldFirstName: "p.first_name",
	query.FieldLastName:  "p.last_name",
	query.FieldTitle:     "p.title",
	query.FieldRoleName:  "r.name",
	query.FieldCreatedAt: "u.created_at",
}

// userRepo — реализация UserRepository.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) WithTx(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (id, keycloak_id, status, auth_type, email_verified, created_by, modified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		u.ID, u.KeycloakID, u.Status, u.AuthType, u.EmailVerified, u.CreatedBy, u.ModifiedBy,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: пользователь уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

// aggregateSelect — общая часть SELECT для агрегата пользователя.
const aggregateSelect = `
	SELECT u.id, u.keycloak_id, u.status, u.auth_type, u.email_verified,
		u.created_by, u.modified_by, u.created_at, u.updated_at,
		p.id, p.image, p.title, p.first_name, p.last_name, p.email,
		p.country_code, p.phone, p.created_at, p.updated_at,
		r.id, r.name, r.created_at, r.updated_at
	FROM users u
	LEFT JOIN user_profiles p ON p.user_id = u.id
	LEFT JOIN roles r ON r.user_id = u.id`

// scanAggregate сканирует одну строку агрегата.
// Профиль и роль могут отсутствовать (LEFT JOIN) — тогда поля nil.
func scanAggregate(row pgx.Row) (*model.User, error) {
	u := &model.User{}

	var (
		profileID, roleID                               *uuid.UUID
		title, firstName, lastName, email               *string
		countryCode, phone, roleName                    *string
		image                                           []byte
		pCreatedAt, pUpdatedAt, rCreatedAt, rUpdatedAt  *time.Time
	)

	err := row.Scan(
		&u.ID, &u.KeycloakID, &u.Status, &u.AuthType, &u.EmailVerified,
		&u.CreatedBy, &u.ModifiedBy, &u.CreatedAt, &u.UpdatedAt,
		&profileID, &image, &title, &firstName, &lastName, &email,
		&countryCode, &phone, &pCreatedAt, &pUpdatedAt,
		&roleID, &roleName, &rCreatedAt, &rUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if profileID != nil {
		u.Profile = &model.UserProfile{
			ID:          *profileID,
			UserID:      u.ID,
			Image:       image,
			Title:       deref(title),
			FirstName:   deref(firstName),
			LastName:    deref(lastName),
			Email:       deref(email),
			CountryCode: deref(countryCode),
			Phone:       deref(phone),
			CreatedAt:   derefTime(pCreatedAt),
			UpdatedAt:   derefTime(pUpdatedAt),
		}
	}
	if roleID != nil {
		u.Role = &model.Role{
			ID:        *roleID,
			UserID:    u.ID,
			Name:      deref(roleName),
			CreatedAt: derefTime(rCreatedAt),
			UpdatedAt: derefTime(rUpdatedAt),
		}
	}

	return u, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, err := scanAggregate(r.db.QueryRow(ctx, aggregateSelect+" WHERE u.id = $1", id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetKeycloakID(ctx context.Context, id uuid.UUID) (string, error) {
	var keycloakID string
	err := r.db.QueryRow(ctx, `SELECT keycloak_id FROM users WHERE id = $1`, id).Scan(&keycloakID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("ошибка получения keycloak_id: %w", err)
	}
	return keycloakID, nil
}

func (r *userRepo) UpdateFields(ctx context.Context, id uuid.UUID, upd model.UserUpdate) error {
	// Динамическое построение SET — только переданные поля
	var sets []string
	var args []any
	argNum := 1

	if upd.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *upd.Status)
		argNum++
	}
	if upd.EmailVerified != nil {
		sets = append(sets, fmt.Sprintf("email_verified = $%d", argNum))
		args = append(args, *upd.EmailVerified)
		argNum++
	}
	if upd.ModifiedBy != nil {
		sets = append(sets, fmt.Sprintf("modified_by = $%d", argNum))
		args = append(args, *upd.ModifiedBy)
		argNum++
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = now()")
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(sets, ", "), argNum)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления пользователя: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) List(ctx context.Context, p query.Pagination, groups []query.Group, order []query.Order) ([]*model.User, int, error) {
	where, args := renderGroups(groups)

	// Общее количество строк без учёта пагинации
	countQuery := `
		SELECT count(*)
		FROM users u
		LEFT JOIN user_profiles p ON p.user_id = u.id
		LEFT JOIN roles r ON r.user_id = u.id` + where

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}

	listQuery := fmt.Sprintf("%s%s%s LIMIT $%d OFFSET $%d",
		aggregateSelect, where, renderOrder(order), len(args)+1, len(args)+2)
	args = append(args, p.Limit, p.Offset)

	rows, err := r.db.Query(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	var result []*model.User
	for rows.Next() {
		u, err := scanAggregate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		result = append(result, u)
	}
	return result, total, rows.Err()
}

// renderGroups строит WHERE из групп предикатов.
// Предикаты внутри группы объединяются OR, группы между собой — AND.
func renderGroups(groups []query.Group) (string, []any) {
	if len(groups) == 0 {
		return "", nil
	}

	var conditions []string
	var args []any
	argNum := 1

	for _, g := range groups {
		var parts []string
		for _, pred := range g.Any {
			col, ok := fieldColumns[pred.Field]
			if !ok {
				continue
			}
			switch pred.Match {
			case query.MatchContains:
				for _, v := range pred.Values {
					parts = append(parts, fmt.Sprintf("%s ILIKE '%%' || $%d || '%%'", col, argNum))
					args = append(args, v)
					argNum++
				}
			case query.MatchIn:
				parts = append(parts, fmt.Sprintf("%s = ANY($%d)", col, argNum))
				args = append(args, pred.Values)
				argNum++
			}
		}
		if len(parts) > 0 {
			conditions = append(conditions, "("+strings.Join(parts, " OR ")+")")
		}
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// renderOrder строит ORDER BY из списка сортировок.
func renderOrder(order []query.Order) string {
	var parts []string
	for _, o := range order {
		col, ok := fieldColumns[o.Field]
		if !ok {
			continue
		}
		dir := "DESC"
		if o.Direction == query.Asc {
			dir = "ASC"
		}
		parts = append(parts, col+" "+dir)
	}
	if len(parts) == 0 {
		parts = []string{"u.created_at DESC"}
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
