// Пакет filestore - хранение байтов загруженных файлов на диске.
// Запись через temp-файл с подсчётом SHA-256, fsync и атомарным rename.
package filestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UploadsDir - поддиректория MediaRoot для загруженных файлов.
const UploadsDir = "uploads"

// ErrFileNotFound - файла нет на диске.
var ErrFileNotFound = errors.New("файл не найден на диске")

// FileStore - управление загруженными файлами в MediaRoot.
type FileStore struct {
	// root - корневая директория (DV_MEDIA_ROOT)
	root string
}

// SaveResult - результат сохранения файла на диск.
type SaveResult struct {
	// StoragePath - путь относительно root, всегда через "/" (uploads/<имя>)
	StoragePath string
	// Size - размер записанных данных в байтах
	Size int64
	// Checksum - SHA-256 содержимого
	Checksum string
}

// New создаёт FileStore и директорию uploads, если её нет.
func New(root string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Join(root, UploadsDir), 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", root, err)
	}
	return &FileStore{root: root}, nil
}

// Root возвращает корневую директорию.
func (s *FileStore) Root() string {
	return s.root
}

// CheckReady проверяет, что uploads/ доступна на запись.
// Реализует handlers.ReadinessChecker.
func (s *FileStore) CheckReady() (status string, message string) {
	probe := filepath.Join(s.root, UploadsDir, ".health_check")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return "fail", "Директория загрузок недоступна для записи: " + err.Error()
	}
	_ = os.Remove(probe)
	return "ok", "запись доступна"
}

// SaveFile записывает данные из reader в uploads/.
// Имя: {name}_{user}_{timestamp}_{uuid8}{ext}, расширение сохраняется как есть.
// При ошибке temp-файл удаляется.
func (s *FileStore) SaveFile(reader io.Reader, originalFilename, uploadedBy string) (*SaveResult, error) {
	storagePath := path.Join(UploadsDir, generateStorageName(originalFilename, uploadedBy))
	fullPath := filepath.Join(s.root, filepath.FromSlash(storagePath))
	tmpPath := fullPath + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	hasher := sha256.New()
	size, err := io.Copy(f, io.TeeReader(reader, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		StoragePath: storagePath,
		Size:        size,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Open открывает сохранённый файл для чтения.
// Отсутствующий файл - ErrFileNotFound. Вызывающий закрывает файл.
func (s *FileStore) Open(storagePath string) (*os.File, error) {
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, storagePath)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", storagePath, err)
	}
	return f, nil
}

// DeleteFile удаляет файл с диска.
// Отсутствующий файл - ErrFileNotFound, остальные ошибки возвращаются как есть.
func (s *FileStore) DeleteFile(storagePath string) error {
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, storagePath)
		}
		return fmt.Errorf("ошибка удаления файла %s: %w", storagePath, err)
	}
	return nil
}

// FileExists проверяет существование файла на диске.
func (s *FileStore) FileExists(storagePath string) bool {
	fullPath, err := s.resolve(storagePath)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// resolve превращает относительный путь в абсолютный.
// Пути вне root отклоняются.
func (s *FileStore) resolve(storagePath string) (string, error) {
	local := filepath.FromSlash(storagePath)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("недопустимый путь хранения: %q", storagePath)
	}
	return filepath.Join(s.root, local), nil
}

// generateStorageName генерирует имя файла для хранения на диске.
// Пример: sales_alice_20260221150405_a1b2c3d4.csv
func generateStorageName(originalFilename, uploadedBy string) string {
	base := filepath.Base(filepath.FromSlash(originalFilename))
	ext := sanitizeExt(filepath.Ext(base))
	name := sanitize(strings.TrimSuffix(base, filepath.Ext(base)))
	user := sanitize(uploadedBy)

	// Ограничиваем длину имени
	if len([]rune(name)) > 50 {
		name = string([]rune(name)[:50])
	}
	if len([]rune(user)) > 20 {
		user = string([]rune(user)[:20])
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8]

	return fmt.Sprintf("%s_%s_%s_%s%s", name, user, ts, uid, ext)
}

// sanitize оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}

// sanitizeExt оставляет расширение только из ASCII-букв и цифр, регистр не меняется.
func sanitizeExt(ext string) string {
	if ext == "" {
		return ""
	}
	for _, r := range ext[1:] {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return ""
		}
	}
	return ext
}
