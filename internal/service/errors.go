// errors.go - ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

var (
	// ErrNotFound - ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrValidation - ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrForbidden - операция запрещена для вызывающего.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrUnauthorized - неверные учётные данные.
	ErrUnauthorized = errors.New("неверные учётные данные")
	// ErrUnsupportedFormat - формат файла не поддерживается.
	ErrUnsupportedFormat = errors.New("неподдерживаемый формат файла")
	// ErrStorageFileMissing - запись удалена, но файла на диске уже не было.
	ErrStorageFileMissing = errors.New("файл отсутствует на диске, запись удалена")
	// ErrInvalidPage - номер страницы вне диапазона.
	ErrInvalidPage = fmt.Errorf("%w: неверная страница", ErrNotFound)
)

// FieldErrors - ошибки валидации по полям: поле -> список сообщений.
type FieldErrors map[string][]string

// Add добавляет сообщение к полю.
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// Err возвращает f как error или nil, если ошибок нет.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return f
}

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for _, field := range slices.Sorted(maps.Keys(f)) {
		parts = append(parts, field+": "+strings.Join(f[field], " "))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Unwrap позволяет проверять errors.Is(err, ErrValidation).
func (f FieldErrors) Unwrap() error {
	return ErrValidation
}

// fieldError - ошибка валидации одного поля.
func fieldError(field, message string) error {
	return FieldErrors{field: {message}}
}
