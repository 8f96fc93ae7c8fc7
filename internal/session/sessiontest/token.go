// Package sessiontest выпускает токены для тестов.
package sessiontest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/session"
)

// Token подписывает токен для пользователя. Нулевой expires выпускает бессрочный токен.
func Token(t testing.TB, u model.User, expires time.Time) string {
	t.Helper()

	claims := session.Claims{
		UserID: u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
	}
	if !expires.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(expires)
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
