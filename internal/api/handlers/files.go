// files.go - обработчики /api/files/ endpoints.
// Загрузка CSV/XLSX, список, получение, обновление, удаление, скачивание.
package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"time"

	apierrors "github.com/bigkaa/dataviz/internal/api/errors"
	"github.com/bigkaa/dataviz/internal/api/middleware"
	"github.com/bigkaa/dataviz/internal/api/routes"
	"github.com/bigkaa/dataviz/internal/domain/model"
	"github.com/bigkaa/dataviz/internal/service"
)

// multipartMemory - часть multipart-формы, хранимая в памяти.
const multipartMemory = 32 << 20

// fileRecordResponse - JSON-представление записи файла.
type fileRecordResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	File       string `json:"file"`
	UploadedAt string `json:"uploaded_at"`
}

func mapFileRecord(rec *model.FileRecord) fileRecordResponse {
	return fileRecordResponse{
		ID:         rec.ID,
		Name:       rec.Name,
		File:       rec.StoragePath,
		UploadedAt: rec.UploadedAt.UTC().Format(time.RFC3339Nano),
	}
}

// fileForm - разобранная multipart-форма загрузки.
type fileForm struct {
	name    *string
	upload  *service.Upload
	cleanup func()
}

// parseFileForm разбирает поля name и file. Отсутствующее поле - nil.
// При ошибке ответ уже записан.
func (h *APIHandler) parseFileForm(w http.ResponseWriter, r *http.Request) (*fileForm, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.ValidationError(w, "Файл превышает допустимый размер")
			return nil, false
		}
		apierrors.ValidationError(w, "Ожидается multipart/form-data с полями name и file")
		return nil, false
	}

	form := &fileForm{cleanup: func() { _ = r.MultipartForm.RemoveAll() }}
	if values, ok := r.MultipartForm.Value["name"]; ok && len(values) > 0 {
		form.name = &values[0]
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// file не передан
	case err != nil:
		form.cleanup()
		apierrors.ValidationError(w, "Не удалось прочитать файл: "+err.Error())
		return nil, false
	default:
		form.upload = &service.Upload{Filename: header.Filename, Content: file}
		prev := form.cleanup
		form.cleanup = func() {
			_ = file.Close()
			prev()
		}
	}
	return form, true
}

// ListFiles - GET /api/files/.
func (h *APIHandler) ListFiles(w http.ResponseWriter, r *http.Request, params routes.ListParams) {
	page, err := h.files.List(r.Context(), pageNumber(params.Page))
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка получения списка файлов")
		return
	}
	writeJSON(w, http.StatusOK, newPageResponse(r, page, mapFileRecord))
}

// CreateFile - POST /api/files/. Поля формы: name, file.
func (h *APIHandler) CreateFile(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseFileForm(w, r)
	if !ok {
		return
	}
	defer form.cleanup()

	name := ""
	if form.name != nil {
		name = *form.name
	}

	rec, err := h.files.Create(r.Context(), name, form.upload, uploader(r))
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка загрузки файла")
		return
	}
	writeJSON(w, http.StatusCreated, mapFileRecord(rec))
}

// GetFile - GET /api/files/{id}/.
func (h *APIHandler) GetFile(w http.ResponseWriter, r *http.Request, id int64) {
	rec, err := h.files.Get(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка получения файла")
		return
	}
	writeJSON(w, http.StatusOK, mapFileRecord(rec))
}

// ReplaceFile - PUT /api/files/{id}/. name обязателен, file - по желанию.
func (h *APIHandler) ReplaceFile(w http.ResponseWriter, r *http.Request, id int64) {
	h.updateFile(w, r, id, true)
}

// PatchFile - PATCH /api/files/{id}/.
func (h *APIHandler) PatchFile(w http.ResponseWriter, r *http.Request, id int64) {
	h.updateFile(w, r, id, false)
}

func (h *APIHandler) updateFile(w http.ResponseWriter, r *http.Request, id int64, requireName bool) {
	form, ok := h.parseFileForm(w, r)
	if !ok {
		return
	}
	defer form.cleanup()

	if requireName && form.name == nil {
		apierrors.FieldValidationError(w, "Ошибка валидации входных данных",
			map[string][]string{"name": {"Обязательное поле."}})
		return
	}

	rec, err := h.files.Update(r.Context(), id, service.FileUpdate{Name: form.name, File: form.upload}, uploader(r))
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка обновления файла")
		return
	}
	writeJSON(w, http.StatusOK, mapFileRecord(rec))
}

// DeleteFile - DELETE /api/files/{id}/.
// 204 - файл и запись удалены; 404 STORAGE_FILE_MISSING - запись удалена, файла не было.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, r *http.Request, id int64) {
	if err := h.files.Delete(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err, "Ошибка удаления файла")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadFile - GET /api/files/{id}/download/.
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request, id int64) {
	rec, f, err := h.files.Open(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err, "Ошибка чтения файла")
		return
	}
	defer f.Close()

	modTime := rec.UploadedAt
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	} else {
		h.logger.Warn("Не удалось получить сведения о файле",
			slog.Int64("file_id", id),
			slog.String("error", err.Error()),
		)
	}

	filename := path.Base(rec.StoragePath)
	w.Header().Set("Content-Type", contentTypeOf(filename))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	http.ServeContent(w, r, filename, modTime, f)
}

// contentTypeOf - MIME-тип по расширению сохранённого файла.
func contentTypeOf(filename string) string {
	switch path.Ext(filename) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// uploader - имя вызывающего для имени файла в хранилище.
func uploader(r *http.Request) string {
	if u := middleware.UserFromContext(r.Context()); u != nil {
		return u.Username
	}
	return "anonymous"
}
