package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/dataviz/internal/domain/model"
)

// DataModelRepository - интерфейс CRUD для таблиц data_models и data_model_files.
type DataModelRepository interface {
	// Create создаёт модель и её связи в одной транзакции.
	// Если хотя бы один файл не существует - ErrLinkedFileNotFound, запись не создаётся.
	Create(ctx context.Context, dm *model.DataModel) error
	// GetByID возвращает модель со связанными файлами.
	GetByID(ctx context.Context, id int64) (*model.DataModel, error)
	// List возвращает модели по возрастанию ID; ownerID != nil ограничивает выборку владельцем.
	List(ctx context.Context, ownerID *int64, limit, offset int) ([]*model.DataModel, error)
	// Count возвращает количество моделей с тем же фильтром, что и List.
	Count(ctx context.Context, ownerID *int64) (int, error)
	// Update меняет имя; при replaceLinks заменяет набор связанных файлов.
	// Владелец не меняется.
	Update(ctx context.Context, dm *model.DataModel, replaceLinks bool) error
	// Delete удаляет модель и её связи, файлы остаются.
	Delete(ctx context.Context, id int64) error
}

type dataModelRepo struct {
	db DBTX
}

// NewDataModelRepository создаёт репозиторий моделей данных.
func NewDataModelRepository(db DBTX) DataModelRepository {
	return &dataModelRepo{db: db}
}

// selectDataModels - выборка моделей со связями, агрегированными в массив.
const selectDataModels = `
	SELECT d.id, d.owner_id, d.name,
		COALESCE(
			array_agg(l.file_record_id ORDER BY l.file_record_id)
				FILTER (WHERE l.file_record_id IS NOT NULL),
			'{}'
		) AS linked_tables
	FROM data_models d
	LEFT JOIN data_model_files l ON l.data_model_id = d.id`

func (r *dataModelRepo) Create(ctx context.Context, dm *model.DataModel) error {
	links := uniqueSorted(dm.LinkedTables)

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if err := ensureFilesExist(ctx, tx, links); err != nil {
			return err
		}

		err := tx.QueryRow(ctx,
			`INSERT INTO data_models (owner_id, name) VALUES ($1, $2) RETURNING id`,
			dm.OwnerID, dm.Name,
		).Scan(&dm.ID)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: владелец %d", ErrNotFound, dm.OwnerID)
			}
			return fmt.Errorf("ошибка создания модели данных: %w", err)
		}

		if err := insertLinks(ctx, tx, dm.ID, links); err != nil {
			return err
		}
		dm.LinkedTables = links
		return nil
	})
}

func (r *dataModelRepo) GetByID(ctx context.Context, id int64) (*model.DataModel, error) {
	query := selectDataModels + `
	WHERE d.id = $1
	GROUP BY d.id`

	dm := &model.DataModel{}
	err := r.db.QueryRow(ctx, query, id).Scan(&dm.ID, &dm.OwnerID, &dm.Name, &dm.LinkedTables)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения модели данных: %w", err)
	}
	return dm, nil
}

func (r *dataModelRepo) List(ctx context.Context, ownerID *int64, limit, offset int) ([]*model.DataModel, error) {
	query := selectDataModels + `
	WHERE ($1::bigint IS NULL OR d.owner_id = $1)
	GROUP BY d.id
	ORDER BY d.id
	LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка моделей данных: %w", err)
	}
	defer rows.Close()

	var result []*model.DataModel
	for rows.Next() {
		dm := &model.DataModel{}
		if err := rows.Scan(&dm.ID, &dm.OwnerID, &dm.Name, &dm.LinkedTables); err != nil {
			return nil, fmt.Errorf("ошибка сканирования модели данных: %w", err)
		}
		result = append(result, dm)
	}
	return result, rows.Err()
}

func (r *dataModelRepo) Count(ctx context.Context, ownerID *int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM data_models WHERE ($1::bigint IS NULL OR owner_id = $1)`,
		ownerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта моделей данных: %w", err)
	}
	return count, nil
}

func (r *dataModelRepo) Update(ctx context.Context, dm *model.DataModel, replaceLinks bool) error {
	links := uniqueSorted(dm.LinkedTables)

	return pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE data_models SET name = $2 WHERE id = $1 RETURNING owner_id`,
			dm.ID, dm.Name,
		).Scan(&dm.OwnerID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("ошибка обновления модели данных: %w", err)
		}

		if !replaceLinks {
			return tx.QueryRow(ctx,
				`SELECT COALESCE(array_agg(file_record_id ORDER BY file_record_id), '{}')
				FROM data_model_files WHERE data_model_id = $1`, dm.ID,
			).Scan(&dm.LinkedTables)
		}

		if err := ensureFilesExist(ctx, tx, links); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM data_model_files WHERE data_model_id = $1`, dm.ID); err != nil {
			return fmt.Errorf("ошибка удаления связей модели данных: %w", err)
		}
		if err := insertLinks(ctx, tx, dm.ID, links); err != nil {
			return err
		}
		dm.LinkedTables = links
		return nil
	})
}

func (r *dataModelRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM data_models WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления модели данных: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ensureFilesExist проверяет, что все ids есть в file_records.
// Строки блокируются до конца транзакции, чтобы файл не удалили до вставки связи.
func ensureFilesExist(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	rows, err := tx.Query(ctx,
		`SELECT id FROM file_records WHERE id = ANY($1) FOR KEY SHARE`, ids)
	if err != nil {
		return fmt.Errorf("ошибка проверки связанных файлов: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return fmt.Errorf("ошибка проверки связанных файлов: %w", err)
	}
	if len(found) == len(ids) {
		return nil
	}

	existing := make(map[int64]bool, len(found))
	for _, id := range found {
		existing[id] = true
	}
	var missing []int64
	for _, id := range ids {
		if !existing[id] {
			missing = append(missing, id)
		}
	}
	return fmt.Errorf("%w: %v", ErrLinkedFileNotFound, missing)
}

// insertLinks вставляет связи модели с файлами одним запросом.
func insertLinks(ctx context.Context, tx pgx.Tx, dataModelID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO data_model_files (data_model_id, file_record_id)
		SELECT $1, unnest($2::bigint[])`,
		dataModelID, ids,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: %v", ErrLinkedFileNotFound, ids)
		}
		return fmt.Errorf("ошибка создания связей модели данных: %w", err)
	}
	return nil
}
