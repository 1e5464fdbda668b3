package service

import (
	"errors"
	"strings"
	"testing"
)

func TestFieldErrors_Error(t *testing.T) {
	f := FieldErrors{}
	if f.Err() != nil {
		t.Fatal("пустые FieldErrors должны давать nil")
	}

	f.Add("name", "Обязательное поле.")
	f.Add("email", "Введите корректный адрес электронной почты.")
	err := f.Err()
	if !errors.Is(err, ErrValidation) {
		t.Errorf("errors.Is(ErrValidation) = false")
	}
	// Поля в сообщении отсортированы
	if msg := err.Error(); strings.Index(msg, "email") > strings.Index(msg, "name") {
		t.Errorf("порядок полей: %q", msg)
	}
}

func TestValidator_Field(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		value   any
		tag     string
		wantErr bool
	}{
		{"username ок", "user@example.com", "required,max=150,username", false},
		{"username с пробелом", "a b", "required,max=150,username", true},
		{"username кириллица", "пользователь_1", "required,max=150,username", false},
		{"пустой email допустим", "", "omitempty,email", false},
		{"неверный email", "x@", "omitempty,email", true},
		{"пустой список", []int64{}, "required,min=1", true},
		{"отрицательный id", []int64{1, -1}, "required,min=1,dive,gt=0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := FieldErrors{}
			v.Field(fields, "f", tt.value, tt.tag)
			if got := len(fields["f"]) > 0; got != tt.wantErr {
				t.Errorf("ошибка = %v, ожидалось %v (%v)", got, tt.wantErr, fields)
			}
		})
	}
}

func TestPageOffset(t *testing.T) {
	tests := []struct {
		page, size, total int
		want              int
		wantErr           bool
	}{
		{1, 10, 0, 0, false},
		{1, 10, 25, 0, false},
		{3, 10, 25, 20, false},
		{4, 10, 25, 0, true},
		{2, 10, 10, 0, true},
		{0, 10, 25, 0, true},
		{-1, 10, 25, 0, true},
	}

	for _, tt := range tests {
		got, err := pageOffset(tt.page, tt.size, tt.total)
		if (err != nil) != tt.wantErr {
			t.Errorf("pageOffset(%d,%d,%d) err = %v", tt.page, tt.size, tt.total, err)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("pageOffset(%d,%d,%d) = %d, ожидалось %d", tt.page, tt.size, tt.total, got, tt.want)
		}
	}
}
