// Package session извлекает личность пользователя из токена авторизации.
//
// Клиент не знает ключа подписи, поэтому подпись не проверяется: токен
// используется только для решения, что показывать. Проверку выполняет API.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmeshcher/storefront/internal/model"
)

var (
	// ErrNoToken возвращается, если токен отсутствует.
	ErrNoToken = errors.New("no token")
	// ErrMalformed возвращается, если токен не удалось разобрать.
	ErrMalformed = errors.New("malformed token")
	// ErrExpired возвращается для токена с истёкшим сроком действия.
	ErrExpired = errors.New("token expired")
	// ErrNoRole возвращается, если в токене нет известной роли.
	ErrNoRole = errors.New("token carries no known role")
)

// Claims описывает полезную нагрузку токена, выдаваемого API.
type Claims struct {
	UserID model.ID   `json:"id,omitempty"`
	Name   string     `json:"name,omitempty"`
	Email  string     `json:"email,omitempty"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Result содержит результат декодирования: либо личность пользователя, либо причину отказа.
type Result struct {
	identity model.User
	expires  time.Time
	valid    bool
	err      error
}

func invalid(err error) Result {
	return Result{err: err}
}

// Valid сообщает, удалось ли получить личность пользователя.
func (r Result) Valid() bool {
	return r.valid
}

// Identity возвращает личность пользователя, если токен валиден.
func (r Result) Identity() (model.User, bool) {
	return r.identity, r.valid
}

// Expires возвращает срок действия токена или нулевое время, если срока нет.
func (r Result) Expires() time.Time {
	return r.expires
}

// Err возвращает причину отказа для невалидного токена.
func (r Result) Err() error {
	return r.err
}

// Decode разбирает токен и возвращает личность пользователя.
// Любая ошибка разбора даёт невалидный результат, паники и ошибки наружу не выходят.
func Decode(token string, now time.Time) Result {
	if token == "" {
		return invalid(ErrNoToken)
	}

	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return invalid(fmt.Errorf("%w: %v", ErrMalformed, err))
	}

	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
		if !now.Before(expires) {
			return invalid(ErrExpired)
		}
	}

	if !claims.Role.Valid() {
		return invalid(ErrNoRole)
	}

	id := claims.UserID
	if id == "" {
		id = model.ID(claims.Subject)
	}

	return Result{
		identity: model.User{
			ID:    id,
			Name:  claims.Name,
			Email: claims.Email,
			Role:  claims.Role,
		},
		expires: expires,
		valid:   true,
	}
}
