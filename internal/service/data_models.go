package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/dataviz/internal/domain/model"
	"github.com/bigkaa/dataviz/internal/domain/rbac"
	"github.com/bigkaa/dataviz/internal/repository"
)

// DataModelInput - полное представление модели данных (создание, PUT).
type DataModelInput struct {
	Name         string  `json:"name" validate:"required,max=255"`
	LinkedTables []int64 `json:"linked_tables" validate:"required,min=1,dive,gt=0"`
}

// DataModelPatch - частичное обновление (PATCH). nil-поле не меняется.
type DataModelPatch struct {
	Name         *string
	LinkedTables *[]int64
}

// DataModelService - сервис моделей данных.
type DataModelService struct {
	repo        repository.DataModelRepository
	validator   *Validator
	pageSize    int
	ownerScoped bool
	logger      *slog.Logger
}

// NewDataModelService создаёт сервис моделей данных.
// ownerScoped ограничивает список и чтение моделями вызывающего (кроме Admin).
func NewDataModelService(
	repo repository.DataModelRepository,
	validator *Validator,
	pageSize int,
	ownerScoped bool,
	logger *slog.Logger,
) *DataModelService {
	return &DataModelService{
		repo:        repo,
		validator:   validator,
		pageSize:    pageSize,
		ownerScoped: ownerScoped,
		logger:      logger.With(slog.String("component", "data_model_service")),
	}
}

// Create создаёт модель, владелец - вызывающий.
func (s *DataModelService) Create(ctx context.Context, caller *model.User, in DataModelInput) (*model.DataModel, error) {
	if caller == nil {
		return nil, ErrForbidden
	}
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}

	dm := &model.DataModel{OwnerID: caller.ID, Name: in.Name, LinkedTables: in.LinkedTables}
	if err := s.repo.Create(ctx, dm); err != nil {
		return nil, mapDataModelError(err, "создание модели данных")
	}

	s.logger.Info("Модель данных создана",
		slog.Int64("data_model_id", dm.ID),
		slog.Int64("owner_id", dm.OwnerID),
		slog.Int("linked_tables", len(dm.LinkedTables)),
	)
	return dm, nil
}

// List возвращает страницу моделей. В режиме ownerScoped не-Admin видит только свои.
func (s *DataModelService) List(ctx context.Context, caller *model.User, page int) (model.Page[*model.DataModel], error) {
	var ownerID *int64
	if s.ownerScoped && caller != nil && !rbac.Admin.Allows(caller.Groups) {
		ownerID = &caller.ID
	}
	return s.list(ctx, ownerID, page)
}

// ListAll возвращает страницу всех моделей без учёта владельца.
func (s *DataModelService) ListAll(ctx context.Context, page int) (model.Page[*model.DataModel], error) {
	return s.list(ctx, nil, page)
}

func (s *DataModelService) list(ctx context.Context, ownerID *int64, page int) (model.Page[*model.DataModel], error) {
	total, err := s.repo.Count(ctx, ownerID)
	if err != nil {
		return model.Page[*model.DataModel]{}, fmt.Errorf("подсчёт моделей данных: %w", err)
	}
	offset, err := pageOffset(page, s.pageSize, total)
	if err != nil {
		return model.Page[*model.DataModel]{}, err
	}
	items, err := s.repo.List(ctx, ownerID, s.pageSize, offset)
	if err != nil {
		return model.Page[*model.DataModel]{}, fmt.Errorf("список моделей данных: %w", err)
	}
	return model.Page[*model.DataModel]{Items: items, Total: total, Number: page, Size: s.pageSize}, nil
}

// Get возвращает модель по ID.
func (s *DataModelService) Get(ctx context.Context, caller *model.User, id int64) (*model.DataModel, error) {
	dm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapDataModelError(err, "получение модели данных")
	}
	if s.ownerScoped && !isOwnerOrAdmin(caller, dm) {
		return nil, fmt.Errorf("%w: модель данных %d", ErrNotFound, id)
	}
	return dm, nil
}

// Replace полностью заменяет имя и связи модели (PUT).
func (s *DataModelService) Replace(ctx context.Context, caller *model.User, id int64, in DataModelInput) (*model.DataModel, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	links := in.LinkedTables
	return s.update(ctx, caller, id, DataModelPatch{Name: &in.Name, LinkedTables: &links})
}

// Patch обновляет только переданные поля (PATCH).
func (s *DataModelService) Patch(ctx context.Context, caller *model.User, id int64, p DataModelPatch) (*model.DataModel, error) {
	fields := FieldErrors{}
	if p.Name != nil {
		s.validator.Field(fields, "name", *p.Name, "required,max=255")
	}
	if p.LinkedTables != nil {
		s.validator.Field(fields, "linked_tables", *p.LinkedTables, "required,min=1,dive,gt=0")
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}
	return s.update(ctx, caller, id, p)
}

func (s *DataModelService) update(ctx context.Context, caller *model.User, id int64, p DataModelPatch) (*model.DataModel, error) {
	dm, err := s.authorize(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	if p.Name != nil {
		dm.Name = *p.Name
	}
	if p.LinkedTables != nil {
		dm.LinkedTables = *p.LinkedTables
	}
	if err := s.repo.Update(ctx, dm, p.LinkedTables != nil); err != nil {
		return nil, mapDataModelError(err, "обновление модели данных")
	}

	s.logger.Info("Модель данных обновлена",
		slog.Int64("data_model_id", id),
		slog.Int64("caller_id", caller.ID),
		slog.Bool("links_replaced", p.LinkedTables != nil),
	)
	return dm, nil
}

// Delete удаляет модель и её связи. Файлы не затрагиваются.
func (s *DataModelService) Delete(ctx context.Context, caller *model.User, id int64) error {
	if _, err := s.authorize(ctx, caller, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapDataModelError(err, "удаление модели данных")
	}
	s.logger.Info("Модель данных удалена",
		slog.Int64("data_model_id", id),
		slog.Int64("caller_id", caller.ID),
	)
	return nil
}

// authorize загружает модель и проверяет, что вызывающий - владелец или Admin.
func (s *DataModelService) authorize(ctx context.Context, caller *model.User, id int64) (*model.DataModel, error) {
	dm, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if !isOwnerOrAdmin(caller, dm) {
		return nil, fmt.Errorf("%w: модель данных %d принадлежит другому пользователю", ErrForbidden, id)
	}
	return dm, nil
}

func isOwnerOrAdmin(caller *model.User, dm *model.DataModel) bool {
	if caller == nil {
		return false
	}
	return rbac.IsOwnerOrAdmin(caller.ID, dm.OwnerID, caller.Groups)
}

// mapDataModelError переводит ошибки репозитория в ошибки сервиса.
func mapDataModelError(err error, op string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: модель данных", ErrNotFound)
	case errors.Is(err, repository.ErrLinkedFileNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
