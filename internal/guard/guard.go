// Package guard решает, можно ли показать защищённую страницу текущей сессии.
package guard

import (
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/session"
)

const (
	// LoginPath принимает неаутентифицированного пользователя.
	LoginPath = "/login"
	// UnauthorizedPath принимает пользователя без нужной роли.
	UnauthorizedPath = "/"
)

// State описывает итог проверки навигации.
type State int

const (
	Unauthenticated State = iota
	Unauthorized
	Authorized
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Unauthorized:
		return "unauthorized"
	case Authorized:
		return "authorized"
	}
	return "unknown"
}

// Decision описывает решение по одной попытке навигации.
// Redirect пуст, если страницу можно показать.
type Decision struct {
	State    State
	Identity model.User
	Redirect string
}

// Allowed сообщает, можно ли показать страницу.
func (d Decision) Allowed() bool {
	return d.State == Authorized
}

// Guard проверяет токены и роли.
type Guard struct {
	logger *zap.Logger
	now    func() time.Time
}

// New создаёт Guard.
func New(logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{logger: logger, now: time.Now}
}

// Evaluate проверяет токены в порядке приоритета и сравнивает роль с required.
// Пустой required пропускает любого аутентифицированного пользователя.
// Токен, который не удалось декодировать, считается отсутствующим.
func (g *Guard) Evaluate(required []model.Role, tokens ...string) Decision {
	identity, ok := g.identify(tokens)
	if !ok {
		return Decision{State: Unauthenticated, Redirect: LoginPath}
	}

	if len(required) > 0 && !slices.Contains(required, identity.Role) {
		return Decision{State: Unauthorized, Identity: identity, Redirect: UnauthorizedPath}
	}

	return Decision{State: Authorized, Identity: identity}
}

func (g *Guard) identify(tokens []string) (model.User, bool) {
	now := g.now()
	for _, token := range tokens {
		if token == "" {
			continue
		}

		res := session.Decode(token, now)
		if identity, ok := res.Identity(); ok {
			return identity, true
		}
		g.logger.Warn("ignoring undecodable auth token", zap.Error(res.Err()))
	}
	return model.User{}, false
}
