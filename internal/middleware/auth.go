// Package middleware содержит HTTP middleware витрины.
package middleware

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/guard"
	"github.com/mmeshcher/storefront/internal/model"
)

type contextKey string

const identityKey contextKey = "identity"

// TokenCookieName задаёт имя cookie, в которой браузер хранит токен.
const TokenCookieName = "token"

// TokenSource отдаёт токен сессии процесса.
type TokenSource interface {
	Token() string
}

// RouteGuard применяет guard.Guard к маршрутам. Токен ищется сначала в cookie
// запроса, затем в хранилище сессии процесса: клиент однопользовательский.
type RouteGuard struct {
	guard    *guard.Guard
	fallback TokenSource
	logger   *zap.Logger
}

// NewRouteGuard создаёт middleware проверки доступа. fallback может быть nil.
func NewRouteGuard(g *guard.Guard, fallback TokenSource, logger *zap.Logger) *RouteGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteGuard{
		guard:    g,
		fallback: fallback,
		logger:   logger,
	}
}

// Require пропускает запрос, только если пользователь аутентифицирован и его роль
// входит в roles. Без ролей достаточно аутентификации.
func (rg *RouteGuard) Require(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := rg.guard.Evaluate(roles, rg.tokens(r)...)
			if !decision.Allowed() {
				rg.logger.Debug("navigation redirected",
					zap.String("path", r.URL.Path),
					zap.String("state", decision.State.String()),
					zap.String("redirect", decision.Redirect))
				http.Redirect(w, r, decision.Redirect, http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, decision.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Identify кладёт личность пользователя в контекст, если она есть, и никогда
// не перенаправляет. Для открытых страниц, чьё содержимое зависит от роли.
func (rg *RouteGuard) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := rg.guard.Evaluate(nil, rg.tokens(r)...)
		if decision.Allowed() {
			r = r.WithContext(context.WithValue(r.Context(), identityKey, decision.Identity))
		}
		next.ServeHTTP(w, r)
	})
}

func (rg *RouteGuard) tokens(r *http.Request) []string {
	tokens := make([]string, 0, 2)
	if cookie, err := r.Cookie(TokenCookieName); err == nil {
		tokens = append(tokens, cookie.Value)
	}
	if rg.fallback != nil {
		tokens = append(tokens, rg.fallback.Token())
	}
	return tokens
}

// SetTokenCookie сохраняет токен в cookie браузера. Нулевой expires даёт
// cookie на время сессии браузера.
func SetTokenCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie удаляет cookie с токеном.
func ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// IdentityFromContext извлекает личность пользователя, установленную RouteGuard.
func IdentityFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(identityKey).(model.User)
	return u, ok
}
