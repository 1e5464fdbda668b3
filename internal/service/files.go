// files.go - сервис загруженных файлов: запись байтов в filestore
// и записей в file_records.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/bigkaa/dataviz/internal/domain/model"
	"github.com/bigkaa/dataviz/internal/repository"
	"github.com/bigkaa/dataviz/internal/storage/filestore"
)

// allowedExtensions - допустимые расширения загружаемых файлов (с учётом регистра).
var allowedExtensions = []string{".csv", ".xlsx"}

// FileStorage - хранилище байтов загруженных файлов.
// Реализуется *filestore.FileStore.
type FileStorage interface {
	SaveFile(reader io.Reader, originalFilename, uploadedBy string) (*filestore.SaveResult, error)
	Open(storagePath string) (*os.File, error)
	DeleteFile(storagePath string) error
}

// Upload - содержимое загружаемого файла.
type Upload struct {
	// Filename - имя файла у клиента
	Filename string
	// Content - поток байтов
	Content io.Reader
}

// FileUpdate - частичное обновление записи файла.
// nil-поле не меняется.
type FileUpdate struct {
	Name *string
	File *Upload
}

// FileService - сервис загруженных файлов.
type FileService struct {
	repo      repository.FileRecordRepository
	storage   FileStorage
	validator *Validator
	pageSize  int
	logger    *slog.Logger
}

// NewFileService создаёт сервис файлов.
func NewFileService(
	repo repository.FileRecordRepository,
	storage FileStorage,
	validator *Validator,
	pageSize int,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		repo:      repo,
		storage:   storage,
		validator: validator,
		pageSize:  pageSize,
		logger:    logger.With(slog.String("component", "file_service")),
	}
}

// Create проверяет имя и расширение, сохраняет байты и создаёт запись.
// При ошибке вставки записи сохранённые байты удаляются.
func (s *FileService) Create(ctx context.Context, name string, upload *Upload, uploadedBy string) (*model.FileRecord, error) {
	fields := FieldErrors{}
	s.validator.Field(fields, "name", name, "required,max=255")
	if upload == nil {
		fields.Add("file", "Файл не передан.")
	} else {
		checkExtension(fields, upload.Filename)
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	saved, err := s.storage.SaveFile(upload.Content, upload.Filename, uploadedBy)
	if err != nil {
		return nil, fmt.Errorf("сохранение файла: %w", err)
	}

	rec := &model.FileRecord{Name: name, StoragePath: saved.StoragePath}
	if err := s.repo.Create(ctx, rec); err != nil {
		s.removeOrphan(saved.StoragePath)
		return nil, fmt.Errorf("создание записи файла: %w", err)
	}

	filesUploadedTotal.WithLabelValues(strings.TrimPrefix(path.Ext(saved.StoragePath), ".")).Inc()
	filesUploadedBytes.Add(float64(saved.Size))

	s.logger.Info("Файл загружен",
		slog.Int64("file_id", rec.ID),
		slog.String("storage_path", rec.StoragePath),
		slog.Int64("size", saved.Size),
		slog.String("checksum", saved.Checksum),
		slog.String("uploaded_by", uploadedBy),
	)
	return rec, nil
}

// Get возвращает запись файла по ID.
func (s *FileService) Get(ctx context.Context, id int64) (*model.FileRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}
	return rec, nil
}

// List возвращает страницу записей файлов.
func (s *FileService) List(ctx context.Context, page int) (model.Page[*model.FileRecord], error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return model.Page[*model.FileRecord]{}, fmt.Errorf("подсчёт файлов: %w", err)
	}
	offset, err := pageOffset(page, s.pageSize, total)
	if err != nil {
		return model.Page[*model.FileRecord]{}, err
	}

	items, err := s.repo.List(ctx, s.pageSize, offset)
	if err != nil {
		return model.Page[*model.FileRecord]{}, fmt.Errorf("список файлов: %w", err)
	}
	return model.Page[*model.FileRecord]{Items: items, Total: total, Number: page, Size: s.pageSize}, nil
}

// Update меняет имя и/или содержимое файла. UploadedAt не меняется.
// Старые байты удаляются после успешного обновления записи.
func (s *FileService) Update(ctx context.Context, id int64, upd FileUpdate, uploadedBy string) (*model.FileRecord, error) {
	fields := FieldErrors{}
	if upd.Name != nil {
		s.validator.Field(fields, "name", *upd.Name, "required,max=255")
	}
	if upd.File != nil {
		checkExtension(fields, upd.File.Filename)
	}
	if err := fields.Err(); err != nil {
		return nil, err
	}

	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	oldPath := rec.StoragePath
	if upd.Name != nil {
		rec.Name = *upd.Name
	}
	if upd.File != nil {
		saved, err := s.storage.SaveFile(upd.File.Content, upd.File.Filename, uploadedBy)
		if err != nil {
			return nil, fmt.Errorf("сохранение файла: %w", err)
		}
		rec.StoragePath = saved.StoragePath
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		if rec.StoragePath != oldPath {
			s.removeOrphan(rec.StoragePath)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("обновление записи файла: %w", err)
	}

	if rec.StoragePath != oldPath {
		if err := s.storage.DeleteFile(oldPath); err != nil && !errors.Is(err, filestore.ErrFileNotFound) {
			s.logger.Warn("Не удалось удалить заменённый файл",
				slog.Int64("file_id", id),
				slog.String("storage_path", oldPath),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("Файл обновлён",
		slog.Int64("file_id", id),
		slog.Bool("content_replaced", rec.StoragePath != oldPath),
	)
	return rec, nil
}

// Delete удаляет файл с диска, затем запись.
// Если файла на диске уже нет - запись всё равно удаляется и возвращается ErrStorageFileMissing.
// При других ошибках удаления файла запись сохраняется.
func (s *FileService) Delete(ctx context.Context, id int64) error {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	s.logger.Info("Удаление файла", slog.Int64("file_id", id), slog.String("storage_path", rec.StoragePath))

	missing := false
	if err := s.storage.DeleteFile(rec.StoragePath); err != nil {
		if !errors.Is(err, filestore.ErrFileNotFound) {
			return fmt.Errorf("удаление файла с диска: %w", err)
		}
		missing = true
		s.logger.Error("Файл отсутствует на диске",
			slog.Int64("file_id", id),
			slog.String("storage_path", rec.StoragePath),
		)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: файл %d", ErrNotFound, id)
		}
		return fmt.Errorf("удаление записи файла: %w", err)
	}

	if missing {
		return ErrStorageFileMissing
	}
	s.logger.Info("Файл и запись удалены", slog.Int64("file_id", id))
	return nil
}

// Open возвращает запись и открытый файл. Файл закрывает вызывающий.
// Отсутствие файла на диске - ErrNotFound.
func (s *FileService) Open(ctx context.Context, id int64) (*model.FileRecord, *os.File, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.openStored(rec)
	if err != nil {
		return nil, nil, err
	}
	return rec, f, nil
}

// openStored открывает байты записи rec.
func (s *FileService) openStored(rec *model.FileRecord) (*os.File, error) {
	f, err := s.storage.Open(rec.StoragePath)
	if err != nil {
		if errors.Is(err, filestore.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: файл %d отсутствует на диске", ErrNotFound, rec.ID)
		}
		return nil, fmt.Errorf("открытие файла: %w", err)
	}
	return f, nil
}

// removeOrphan удаляет байты, для которых не удалось создать или обновить запись.
func (s *FileService) removeOrphan(storagePath string) {
	if err := s.storage.DeleteFile(storagePath); err != nil {
		s.logger.Warn("Не удалось удалить осиротевший файл",
			slog.String("storage_path", storagePath),
			slog.String("error", err.Error()),
		)
	}
}

// checkExtension проверяет суффикс имени файла.
func checkExtension(fields FieldErrors, filename string) {
	for _, ext := range allowedExtensions {
		if strings.HasSuffix(filename, ext) {
			return
		}
	}
	fields.Add("file", "Unsupported file extension. Only CSV and Excel files are allowed.")
}
