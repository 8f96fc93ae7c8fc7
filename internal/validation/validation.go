// Package validation содержит проверки данных форм, выполняемые до обращения к API.
package validation

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/mmeshcher/storefront/internal/model"
)

// Error описывает ошибку валидации конкретного поля формы.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// IsValidationError сообщает, является ли err ошибкой валидации.
func IsValidationError(err error) bool {
	var verr *Error
	return errors.As(err, &verr)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &Error{Field: field, Message: field + " is required"}
	}
	return nil
}

// Credentials проверяет данные формы входа.
func Credentials(c model.Credentials) error {
	if err := email(c.Email); err != nil {
		return err
	}
	return required("password", c.Password)
}

// Registration проверяет данные формы регистрации. Пустая роль допустима.
func Registration(f model.RegisterForm) error {
	if err := required("name", f.Name); err != nil {
		return err
	}
	if err := email(f.Email); err != nil {
		return err
	}
	if err := required("password", f.Password); err != nil {
		return err
	}
	if f.Role != "" && !f.Role.Valid() {
		return &Error{Field: "role", Message: fmt.Sprintf("unknown role %q", f.Role)}
	}
	return nil
}

func email(value string) error {
	if err := required("email", value); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(value); err != nil {
		return &Error{Field: "email", Message: "email is invalid"}
	}
	return nil
}

// ProductForm проверяет форму товара. При создании новое изображение обязательно,
// при изменении достаточно ссылки на существующее.
func ProductForm(f model.ProductForm, creating bool) error {
	for _, field := range []struct{ name, value string }{
		{"title", f.Title},
		{"description", f.Description},
		{"category", f.Category},
	} {
		if err := required(field.name, field.value); err != nil {
			return err
		}
	}

	if !f.Price.IsPositive() {
		return &Error{Field: "price", Message: "price must be positive"}
	}
	if f.Stock < 0 {
		return &Error{Field: "stock", Message: "stock must not be negative"}
	}
	if f.Reserved < 0 {
		return &Error{Field: "reserved", Message: "reserved must not be negative"}
	}

	hasUpload := f.Image != nil && len(f.Image.Data) > 0
	if creating && !hasUpload {
		return &Error{Field: "image", Message: "missing image"}
	}
	if !hasUpload && strings.TrimSpace(f.ImageURL) == "" {
		return &Error{Field: "image", Message: "missing image"}
	}
	return nil
}

// Quantity проверяет запрошенное количество товара против доступного остатка.
func Quantity(requested, available int) error {
	if requested < 1 {
		return &Error{Field: "quantity", Message: "quantity must be at least 1"}
	}
	if requested > available {
		return &Error{
			Field:   "quantity",
			Message: fmt.Sprintf("requested quantity %d exceeds available stock: only %d available", requested, available),
		}
	}
	return nil
}
