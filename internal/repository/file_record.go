package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/dataviz/internal/domain/model"
)

// FileRecordRepository - интерфейс CRUD для таблицы file_records.
type FileRecordRepository interface {
	// Create создаёт запись, заполняет ID и UploadedAt.
	Create(ctx context.Context, rec *model.FileRecord) error
	// GetByID возвращает запись по идентификатору.
	GetByID(ctx context.Context, id int64) (*model.FileRecord, error)
	// List возвращает записи по возрастанию ID.
	List(ctx context.Context, limit, offset int) ([]*model.FileRecord, error)
	// Count возвращает общее количество записей.
	Count(ctx context.Context) (int, error)
	// Update меняет имя и путь хранения. UploadedAt не меняется.
	Update(ctx context.Context, rec *model.FileRecord) error
	// Delete удаляет запись, связи с моделями данных удаляются каскадно.
	Delete(ctx context.Context, id int64) error
}

type fileRecordRepo struct {
	db DBTX
}

// NewFileRecordRepository создаёт репозиторий файлов.
func NewFileRecordRepository(db DBTX) FileRecordRepository {
	return &fileRecordRepo{db: db}
}

func (r *fileRecordRepo) Create(ctx context.Context, rec *model.FileRecord) error {
	query := `
		INSERT INTO file_records (name, storage_path)
		VALUES ($1, $2)
		RETURNING id, uploaded_at`

	if err := r.db.QueryRow(ctx, query, rec.Name, rec.StoragePath).
		Scan(&rec.ID, &rec.UploadedAt); err != nil {
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

func (r *fileRecordRepo) GetByID(ctx context.Context, id int64) (*model.FileRecord, error) {
	query := `
		SELECT id, name, storage_path, uploaded_at
		FROM file_records
		WHERE id = $1`

	rec := &model.FileRecord{}
	err := r.db.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.Name, &rec.StoragePath, &rec.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи файла: %w", err)
	}
	return rec, nil
}

func (r *fileRecordRepo) List(ctx context.Context, limit, offset int) ([]*model.FileRecord, error) {
	query := `
		SELECT id, name, storage_path, uploaded_at
		FROM file_records
		ORDER BY id
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		rec := &model.FileRecord{}
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.StoragePath, &rec.UploadedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи файла: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *fileRecordRepo) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM file_records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта файлов: %w", err)
	}
	return count, nil
}

func (r *fileRecordRepo) Update(ctx context.Context, rec *model.FileRecord) error {
	query := `
		UPDATE file_records
		SET name = $2, storage_path = $3
		WHERE id = $1
		RETURNING uploaded_at`

	err := r.db.QueryRow(ctx, query, rec.ID, rec.Name, rec.StoragePath).Scan(&rec.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления записи файла: %w", err)
	}
	return nil
}

func (r *fileRecordRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM file_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
