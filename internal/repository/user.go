package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/dataviz/internal/domain/model"
)

// UserRepository - интерфейс для таблиц users, groups, user_groups.
type UserRepository interface {
	// Create создаёт пользователя. Дубликат username - ErrConflict.
	Create(ctx context.Context, u *model.User) error
	// GetByID возвращает пользователя с группами.
	GetByID(ctx context.Context, id int64) (*model.User, error)
	// GetByUsername возвращает пользователя с группами.
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// UpdateProfile меняет username и email.
	UpdateProfile(ctx context.Context, u *model.User) error
	// AddToGroup добавляет пользователя в группу (идемпотентно).
	AddToGroup(ctx context.Context, userID int64, group string) error
	// RemoveFromGroup удаляет пользователя из группы.
	RemoveFromGroup(ctx context.Context, userID int64, group string) error
}

type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const selectUsers = `
	SELECT u.id, u.username, u.email, u.password_hash, u.date_joined,
		COALESCE(
			array_agg(g.name ORDER BY g.name) FILTER (WHERE g.name IS NOT NULL),
			'{}'
		) AS groups
	FROM users u
	LEFT JOIN user_groups ug ON ug.user_id = u.id
	LEFT JOIN groups g ON g.id = ug.group_id`

func (r *userRepo) Create(ctx context.Context, u *model.User) error {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, date_joined`

	err := r.db.QueryRow(ctx, query, u.Username, u.Email, u.PasswordHash).Scan(&u.ID, &u.DateJoined)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %q уже занят", ErrConflict, u.Username)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	u.Groups = []string{}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, selectUsers+` WHERE u.id = $1 GROUP BY u.id`, id)
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, selectUsers+` WHERE u.username = $1 GROUP BY u.id`, username)
}

func (r *userRepo) getOne(ctx context.Context, query string, arg any) (*model.User, error) {
	u := &model.User{}
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DateJoined, &u.Groups,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, u *model.User) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET username = $2, email = $3 WHERE id = $1`,
		u.ID, u.Username, u.Email,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %q уже занят", ErrConflict, u.Username)
		}
		return fmt.Errorf("ошибка обновления профиля: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) AddToGroup(ctx context.Context, userID int64, group string) error {
	query := `
		INSERT INTO user_groups (user_id, group_id)
		SELECT $1, g.id FROM groups g WHERE g.name = $2
		ON CONFLICT DO NOTHING`

	tag, err := r.db.Exec(ctx, query, userID, group)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: пользователь %d", ErrNotFound, userID)
		}
		return fmt.Errorf("ошибка добавления в группу: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Либо группы нет, либо пользователь уже в ней
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM groups WHERE name = $1)`, group,
		).Scan(&exists); err != nil {
			return fmt.Errorf("ошибка проверки группы: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: группа %q", ErrNotFound, group)
		}
	}
	return nil
}

func (r *userRepo) RemoveFromGroup(ctx context.Context, userID int64, group string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM user_groups
		WHERE user_id = $1 AND group_id = (SELECT id FROM groups WHERE name = $2)`,
		userID, group,
	)
	if err != nil {
		return fmt.Errorf("ошибка удаления из группы: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
