package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/apiclient"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/session"
	"github.com/mmeshcher/storefront/internal/state"
	"github.com/mmeshcher/storefront/internal/validation"
)

// LoginFailedMessage показывается при неудачном входе без сообщения сервера.
const LoginFailedMessage = "Login failed"

var (
	// ErrNoToken возвращается, если API не выдал токен при входе.
	ErrNoToken = errors.New("login response carries no token")
	// ErrProfileNotFound возвращается, если API вернул пустой профиль.
	ErrProfileNotFound = errors.New("profile not found")
)

// Register регистрирует пользователя. Сессия появляется, только если API вернул токен.
func (s *Service) Register(ctx context.Context, form model.RegisterForm) (*model.AuthResponse, error) {
	if err := validation.Registration(form); err != nil {
		return nil, s.rejectLocal(state.OpRegister, err)
	}
	if form.Role == "" {
		form.Role = model.RoleUser
	}

	f := &apiclient.Form{}
	f.Set("name", form.Name)
	f.Set("email", form.Email)
	f.Set("password", form.Password)
	f.Set("role", string(form.Role))
	if form.Image != nil && len(form.Image.Data) > 0 {
		f.Attach("file", form.Image.Name, form.Image.Data)
	}

	resp, err := perform(s, state.OpRegister, apiclient.DefaultErrorMessage, func() (model.AuthResponse, error) {
		var raw json.RawMessage
		if err := s.api.SendForm(ctx, http.MethodPost, "/user/register", f, &raw); err != nil {
			return model.AuthResponse{}, err
		}
		return decodeAuth(raw)
	}, func(r model.AuthResponse) any {
		if r.Token != "" {
			s.persistToken(r.Token)
		}
		return r
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// decodeAuth принимает и {user, token}, и голый объект пользователя.
func decodeAuth(raw json.RawMessage) (model.AuthResponse, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return model.AuthResponse{}, nil
	}

	var resp model.AuthResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return model.AuthResponse{}, &apiclient.APIError{Message: apiclient.DefaultErrorMessage, Err: fmt.Errorf("decode auth response: %w", err)}
	}
	if resp.User.ID != "" || resp.User.Email != "" {
		return resp, nil
	}

	var u model.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return model.AuthResponse{}, &apiclient.APIError{Message: apiclient.DefaultErrorMessage, Err: fmt.Errorf("decode user: %w", err)}
	}
	resp.User = u
	return resp, nil
}

// Login выполняет вход и сохраняет токен. Неудачный вход не трогает текущую сессию.
func (s *Service) Login(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error) {
	if err := validation.Credentials(creds); err != nil {
		return nil, s.rejectLocal(state.OpLogin, err)
	}

	resp, err := perform(s, state.OpLogin, LoginFailedMessage, func() (model.AuthResponse, error) {
		var resp model.AuthResponse
		if err := s.api.Send(ctx, http.MethodPost, "/user/login", creds, &resp); err != nil {
			return resp, err
		}
		if resp.Token == "" {
			return resp, ErrNoToken
		}
		if !resp.User.Role.Valid() {
			if identity, ok := session.Decode(resp.Token, s.now()).Identity(); ok {
				resp.User.Role = identity.Role
			}
		}
		return resp, nil
	}, func(r model.AuthResponse) any {
		s.persistToken(r.Token)
		return r
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// TokenExpiry возвращает срок хранения токена: срок из самого токена или now+TTL.
func (s *Service) TokenExpiry(token string) time.Time {
	if exp := session.Decode(token, s.now()).Expires(); !exp.IsZero() {
		return exp
	}
	if s.sessionTTL > 0 {
		return s.now().Add(s.sessionTTL)
	}
	return time.Time{}
}

func (s *Service) persistToken(token string) {
	if err := s.creds.Save(token, s.TokenExpiry(token)); err != nil {
		s.logger.Error("persist auth token", zap.Error(err))
	}
}

// Logout очищает хранилища токена и сбрасывает срезы пользователя.
func (s *Service) Logout() error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	err := s.creds.Clear()
	s.store.Dispatch(state.Event{Op: state.OpLogout, Phase: state.PhaseFulfilled})
	if err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

// RestoreSession восстанавливает сессию из сохранённого токена.
// Недекодируемый или истёкший токен удаляется.
func (s *Service) RestoreSession() bool {
	token := s.creds.Token()
	if token == "" {
		return false
	}

	res := session.Decode(token, s.now())
	identity, ok := res.Identity()
	if !ok {
		s.logger.Warn("dropping stored auth token", zap.Error(res.Err()))
		if err := s.creds.Clear(); err != nil {
			s.logger.Error("clear credentials", zap.Error(err))
		}
		return false
	}

	s.store.Dispatch(state.Event{
		Op:      state.OpRestore,
		Phase:   state.PhaseFulfilled,
		Payload: model.Session{User: &identity, Token: token},
	})
	return true
}

// GetProfile загружает профиль текущего пользователя вместе с историей заказов.
func (s *Service) GetProfile(ctx context.Context) (*model.User, error) {
	u, err := perform(s, state.OpProfile, apiclient.DefaultErrorMessage, func() (model.User, error) {
		var raw json.RawMessage
		if err := s.api.Get(ctx, "/user/", &raw); err != nil {
			return model.User{}, err
		}
		return decodeProfile(raw)
	}, same[model.User])
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// decodeProfile разворачивает одноэлементную коллекцию, которую отдаёт API.
func decodeProfile(raw json.RawMessage) (model.User, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return model.User{}, ErrProfileNotFound
	}

	if trimmed[0] != '[' {
		var u model.User
		if err := json.Unmarshal(trimmed, &u); err != nil {
			return model.User{}, &apiclient.APIError{Message: apiclient.DefaultErrorMessage, Err: fmt.Errorf("decode profile: %w", err)}
		}
		return u, nil
	}

	var users []model.User
	if err := json.Unmarshal(trimmed, &users); err != nil {
		return model.User{}, &apiclient.APIError{Message: apiclient.DefaultErrorMessage, Err: fmt.Errorf("decode profile: %w", err)}
	}
	if len(users) == 0 {
		return model.User{}, ErrProfileNotFound
	}
	return users[0], nil
}

// ListUsers загружает всех пользователей для администратора.
func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return perform(s, state.OpListUsers, apiclient.DefaultErrorMessage, func() ([]model.User, error) {
		users := []model.User{}
		if err := s.api.Get(ctx, "/user/", &users); err != nil {
			return nil, err
		}
		return users, nil
	}, same[[]model.User])
}
