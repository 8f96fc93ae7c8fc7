// Package model содержит доменные сущности клиента витрины.
package model

import (
	"encoding/json"
	"fmt"
)

// ID представляет непрозрачный идентификатор сущности удалённого API.
// API отдаёт идентификаторы то строками, то числами, поэтому декодируются оба варианта.
type ID string

// UnmarshalJSON принимает идентификатор в виде JSON-строки или числа.
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Role описывает роль пользователя.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User описывает пользователя витрины. Orders заполняется только в профиле.
type User struct {
	ID     ID      `json:"id"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Role   Role    `json:"role"`
	Image  string  `json:"image,omitempty"`
	Orders []Order `json:"orders,omitempty"`
}

// Session содержит текущую личность пользователя и его токен.
type Session struct {
	User  *User  `json:"user"`
	Token string `json:"-"`
}

// Authenticated сообщает, есть ли у сессии токен.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// AuthResponse описывает ответ API на вход или регистрацию.
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// Credentials содержит данные для входа.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Upload представляет загружаемый файл.
type Upload struct {
	Name string
	Data []byte
}

// RegisterForm содержит данные формы регистрации.
type RegisterForm struct {
	Name     string
	Email    string
	Password string
	Role     Role
	Image    *Upload
}
