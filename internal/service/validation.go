package service

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// usernamePattern - буквы, цифры и @ . + - _
var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}@.+\-_]+$`)

// bcryptMaxBytes - bcrypt не принимает пароли длиннее 72 байт.
const bcryptMaxBytes = 72

// Validator - обёртка над go-playground/validator с сообщениями по полям.
type Validator struct {
	v *validator.Validate
}

// NewValidator создаёт валидатор с пользовательскими правилами.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Имена полей в ошибках - из json-тегов
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("регистрация правила username: %v", err))
	}
	if err := v.RegisterValidation("bcryptlen", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= bcryptMaxBytes
	}); err != nil {
		panic(fmt.Sprintf("регистрация правила bcryptlen: %v", err))
	}

	return &Validator{v: v}
}

// Struct проверяет структуру по тегам validate.
func (val *Validator) Struct(s any) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("валидация: %w", err)
	}

	fields := FieldErrors{}
	for _, fe := range verrs {
		fields.Add(baseField(fe.Field()), messageFor(fe))
	}
	return fields
}

// Field проверяет одно значение и добавляет ошибки в fields под именем name.
func (val *Validator) Field(fields FieldErrors, name string, value any, tag string) {
	err := val.v.Var(value, tag)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields.Add(name, "Некорректное значение.")
		return
	}
	for _, fe := range verrs {
		fields.Add(name, messageFor(fe))
	}
}

// baseField убирает индекс элемента: linked_tables[2] -> linked_tables.
func baseField(field string) string {
	name, _, _ := strings.Cut(field, "[")
	return name
}

// messageFor формирует сообщение для пользователя по сработавшему правилу.
func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Обязательное поле."
	case "max":
		return fmt.Sprintf("Не более %s символов.", fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return "Список не может быть пустым."
		}
		return fmt.Sprintf("Не менее %s символов.", fe.Param())
	case "email":
		return "Введите корректный адрес электронной почты."
	case "username":
		return "Допустимы только буквы, цифры и символы @/./+/-/_."
	case "bcryptlen":
		return fmt.Sprintf("Пароль не может быть длиннее %d байт.", bcryptMaxBytes)
	case "gt":
		return "Идентификатор должен быть положительным."
	default:
		return "Некорректное значение."
	}
}
