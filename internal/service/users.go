package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/dataviz/internal/domain/model"
	"github.com/bigkaa/dataviz/internal/domain/rbac"
	"github.com/bigkaa/dataviz/internal/repository"
)

// Registration - данные регистрации пользователя.
type Registration struct {
	Username string `json:"username" validate:"required,max=150,username"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"required,max=128,bcryptlen"`
}

// ProfilePatch - частичное обновление профиля. nil-поле не меняется.
type ProfilePatch struct {
	Username *string
	Email    *string
}

// dummyHash сравнивается с паролем, когда пользователь не найден,
// чтобы время ответа не выдавало существование username.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dataviz-dummy-password"), bcrypt.DefaultCost)

// UserService - регистрация, профиль, аутентификация и группы пользователей.
type UserService struct {
	repo      repository.UserRepository
	validator *Validator
	cost      int
	logger    *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(repo repository.UserRepository, validator *Validator, logger *slog.Logger) *UserService {
	return &UserService{
		repo:      repo,
		validator: validator,
		cost:      bcrypt.DefaultCost,
		logger:    logger.With(slog.String("component", "user_service")),
	}
}

// Register создаёт учётную запись. Пароль хранится только в виде bcrypt-хеша.
func (s *UserService) Register(ctx context.Context, in Registration) (*model.User, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("хеширование пароля: %w", err)
	}

	u := &model.User{Username: in.Username, Email: in.Email, PasswordHash: string(hash)}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fieldError("username", "Пользователь с таким именем уже существует.")
		}
		return nil, fmt.Errorf("создание пользователя: %w", err)
	}

	s.logger.Info("Пользователь зарегистрирован",
		slog.Int64("user_id", u.ID),
		slog.String("username", u.Username),
	)
	return u, nil
}

// GetByID возвращает пользователя с группами.
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	return u, nil
}

// UpdateProfile меняет переданные username и/или email пользователя.
func (s *UserService) UpdateProfile(ctx context.Context, caller *model.User, p ProfilePatch) (*model.User, error) {
	if caller == nil {
		return nil, ErrForbidden
	}

	fields := FieldErrors{}
	if p.Username != nil {
		s.validator.Field(fields, "username", *p.Username, "required,max=150,username")
	}
	if p.Email != nil {
		s.validator.Field(fields, "email", *p.Email, "omitempty,email,max=254")
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	u := *caller
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Email != nil {
		u.Email = *p.Email
	}

	if err := s.repo.UpdateProfile(ctx, &u); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return nil, fieldError("username", "Пользователь с таким именем уже существует.")
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: пользователь %d", ErrNotFound, u.ID)
		default:
			return nil, fmt.Errorf("обновление профиля: %w", err)
		}
	}

	s.logger.Info("Профиль обновлён", slog.Int64("user_id", u.ID))
	return &u, nil
}

// Authenticate проверяет username и пароль. Любая неудача - ErrUnauthorized.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("поиск пользователя: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		s.logger.Warn("Неудачная попытка входа", slog.String("username", username))
		return nil, ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("Неудачная попытка входа", slog.String("username", username))
		return nil, ErrUnauthorized
	}
	return u, nil
}

// Groups возвращает группы пользователя username.
func (s *UserService) Groups(ctx context.Context, username string) ([]string, error) {
	u, err := s.byUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return u.Groups, nil
}

// Grant добавляет пользователя в группу.
func (s *UserService) Grant(ctx context.Context, username, group string) error {
	if !rbac.IsValidGroup(group) {
		return fieldError("group", fmt.Sprintf("Неизвестная группа %q.", group))
	}
	u, err := s.byUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := s.repo.AddToGroup(ctx, u.ID, group); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return fmt.Errorf("добавление в группу: %w", err)
	}
	s.logger.Info("Пользователь добавлен в группу",
		slog.String("username", username),
		slog.String("group", group),
	)
	return nil
}

// Revoke удаляет пользователя из группы.
func (s *UserService) Revoke(ctx context.Context, username, group string) error {
	if !rbac.IsValidGroup(group) {
		return fieldError("group", fmt.Sprintf("Неизвестная группа %q.", group))
	}
	u, err := s.byUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := s.repo.RemoveFromGroup(ctx, u.ID, group); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: пользователь %q не состоит в группе %q", ErrNotFound, username, group)
		}
		return fmt.Errorf("удаление из группы: %w", err)
	}
	s.logger.Info("Пользователь удалён из группы",
		slog.String("username", username),
		slog.String("group", group),
	)
	return nil
}

func (s *UserService) byUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь %q", ErrNotFound, username)
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}
	return u, nil
}
