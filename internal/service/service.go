// Package service реализует действия клиента витрины: каждое действие проводит
// свою операцию через цикл pending → fulfilled | rejected в хранилище состояния.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/storefront/internal/apiclient"
	"github.com/mmeshcher/storefront/internal/state"
	"github.com/mmeshcher/storefront/internal/validation"
)

// API описывает клиент удалённого API.
type API interface {
	Get(ctx context.Context, path string, out any) error
	Send(ctx context.Context, method, path string, in, out any) error
	SendForm(ctx context.Context, method, path string, form *apiclient.Form, out any) error
}

// Credentials описывает хранилище токена авторизации.
type Credentials interface {
	Token() string
	Save(token string, expires time.Time) error
	Clear() error
}

// Service содержит действия клиента витрины.
type Service struct {
	api          API
	store        *state.Store
	creds        Credentials
	logger       *zap.Logger
	sessionTTL   time.Duration
	clearBackoff func() retry.Backoff
	now          func() time.Time

	// commitMu упорядочивает завершение запросов относительно Logout.
	commitMu sync.Mutex
}

// Option настраивает Service.
type Option func(*Service)

// WithSessionTTL задаёт срок хранения токена, в котором нет срока действия.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.sessionTTL = ttl
	}
}

// WithClearBackoff задаёт стратегию повторов очистки корзины после заказа.
func WithClearBackoff(b func() retry.Backoff) Option {
	return func(s *Service) {
		s.clearBackoff = b
	}
}

// NewService создаёт сервис действий.
func NewService(api API, store *state.Store, creds Credentials, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		api:        api,
		store:      store,
		creds:      creds,
		logger:     logger,
		sessionTTL: 24 * time.Hour,
		clearBackoff: func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewExponential(200*time.Millisecond))
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State возвращает снимок состояния.
func (s *Service) State() state.State {
	return s.store.State()
}

// Cancel отменяет текущий запрос операции: его поздний результат будет отброшен.
func (s *Service) Cancel(op state.Op) {
	s.store.Cancel(op)
}

// Refresh параллельно загружает каталог, а для вошедшего пользователя
// ещё корзину и заказы. Операции независимы: ошибка одной не отменяет другие.
func (s *Service) Refresh(ctx context.Context) error {
	var g errgroup.Group

	g.Go(func() error {
		_, err := s.ListProducts(ctx)
		return err
	})

	if s.authenticated() {
		g.Go(func() error {
			_, err := s.GetCartItems(ctx)
			return err
		})
		g.Go(func() error {
			_, err := s.ListOrders(ctx)
			return err
		})
	}

	return g.Wait()
}

func (s *Service) authenticated() bool {
	return s.store.State().Session.Token != "" || s.creds.Token() != ""
}

// perform проводит вызов API через полный цикл операции op.
func perform[T any](s *Service, op state.Op, fallback string, call func() (T, error), payload func(T) any) (T, error) {
	seq := s.store.Begin(op)

	res, err := call()
	if err != nil {
		s.store.Reject(op, seq, errorMessage(err, fallback))
		return res, err
	}

	// Logout не может вклиниться между проверкой актуальности и побочными эффектами
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if !s.store.Current(op, seq) {
		s.logger.Debug("request superseded", zap.String("op", string(op)))
		return res, nil
	}
	s.store.Fulfill(op, seq, payload(res))
	return res, nil
}

func same[T any](v T) any {
	return v
}

// rejectLocal отклоняет операцию без обращения к API.
func (s *Service) rejectLocal(op state.Op, err error) error {
	seq := s.store.Begin(op)
	s.store.Reject(op, seq, err.Error())
	return err
}

func errorMessage(err error, fallback string) string {
	var verr *validation.Error
	if errors.As(err, &verr) {
		return verr.Message
	}
	return apiclient.Message(err, fallback)
}
