package model

import "time"

// User - учётная запись пользователя.
type User struct {
	// ID - идентификатор пользователя (BIGSERIAL)
	ID int64
	// Username - уникальное имя (до 150 символов)
	Username string
	// Email - адрес электронной почты (может быть пустым)
	Email string
	// PasswordHash - bcrypt-хеш пароля, наружу не отдаётся
	PasswordHash string
	// DateJoined - время регистрации
	DateJoined time.Time
	// Groups - имена групп пользователя
	Groups []string
}

// Page - страница результатов списочного запроса.
type Page[T any] struct {
	// Items - элементы текущей страницы
	Items []T
	// Total - общее количество элементов
	Total int
	// Number - номер страницы, начиная с 1
	Number int
	// Size - размер страницы
	Size int
}

// HasNext сообщает, есть ли следующая страница.
func (p Page[T]) HasNext() bool {
	return p.Number*p.Size < p.Total
}

// HasPrevious сообщает, есть ли предыдущая страница.
func (p Page[T]) HasPrevious() bool {
	return p.Number > 1
}
