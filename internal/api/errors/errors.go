// Пакет errors - конструкторы ответов с ошибками.
// Единый формат: {"error": {"code": "...", "message": "...", "fields": {...}}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeUnsupportedFormat  = "UNSUPPORTED_FORMAT"
	CodeNotFound           = "NOT_FOUND"
	CodeStorageFileMissing = "STORAGE_FILE_MISSING"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeInternalError      = "INTERNAL_ERROR"
)

// errorBody - структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail - детали ошибки.
type errorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode - HTTP статус-код, code - машиночитаемый код, message - описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	write(w, statusCode, errorDetail{Code: code, Message: message})
}

func write(w http.ResponseWriter, statusCode int, detail errorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError - 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// FieldValidationError - 400 с ошибками по полям.
func FieldValidationError(w http.ResponseWriter, message string, fields map[string][]string) {
	write(w, http.StatusBadRequest, errorDetail{
		Code:    CodeValidationError,
		Message: message,
		Fields:  fields,
	})
}

// UnsupportedFormat - 400 формат файла не поддерживается.
func UnsupportedFormat(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeUnsupportedFormat, message)
}

// NotFound - 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// StorageFileMissing - 404 запись удалена, файла на диске не было.
func StorageFileMissing(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeStorageFileMissing, message)
}

// Unauthorized - 401 требуется аутентификация.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden - 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// InternalError - 500 внутренняя ошибка. Детали в ответ не попадают.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
