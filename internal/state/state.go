// Package state содержит контейнер состояния клиента: срезы сессии, каталога,
// корзины и заказов, чистые функции переходов и единственную точку диспетчеризации.
//
// Каждая асинхронная операция проходит цикл pending → fulfilled | rejected.
// Запрос получает порядковый номер при старте; ответ с устаревшим номером
// отбрасывается, поэтому поздний ответ отменённого запроса не портит состояние.
package state

import (
	"github.com/mmeshcher/storefront/internal/model"
)

// Op идентифицирует операцию.
type Op string

const (
	OpRegister  Op = "session/register"
	OpLogin     Op = "session/login"
	OpProfile   Op = "session/profile"
	OpListUsers Op = "session/listUsers"
	OpRestore   Op = "session/restore"
	OpLogout    Op = "session/logout"

	OpListProducts  Op = "catalog/list"
	OpCreateProduct Op = "catalog/create"
	OpUpdateProduct Op = "catalog/update"

	OpFetchCart      Op = "cart/fetch"
	OpAddCartItem    Op = "cart/add"
	OpUpdateCartItem Op = "cart/update"
	OpDeleteCartItem Op = "cart/delete"
	OpClearCart      Op = "cart/clear"

	OpListOrders   Op = "order/list"
	OpCreateOrder  Op = "order/create"
	OpOrderWarning Op = "order/warning"
)

// Phase описывает этап жизненного цикла операции.
type Phase int

const (
	PhasePending Phase = iota
	PhaseFulfilled
	PhaseRejected
	// PhaseCancelled делает текущий запрос операции устаревшим.
	PhaseCancelled
	// PhaseReset сбрасывает флаги ошибки и успеха, не трогая данные.
	PhaseReset
)

func (p Phase) terminal() bool {
	return p == PhaseFulfilled || p == PhaseRejected
}

// Event описывает действие, применяемое к состоянию.
type Event struct {
	Op      Op
	Phase   Phase
	Seq     uint64
	Payload any
	Err     string
}

// Lifecycle содержит флаги одной асинхронной операции.
// Одновременно активен не более чем один из флагов Loading, Success, Error.
type Lifecycle struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
	seq     uint64
}

// apply возвращает новый цикл и признак того, что данные события нужно применить.
func (l Lifecycle) apply(e Event) (Lifecycle, bool) {
	switch e.Phase {
	case PhasePending:
		return Lifecycle{Loading: true, seq: e.Seq}, false
	case PhaseFulfilled:
		if e.Seq != l.seq {
			return l, false
		}
		return Lifecycle{Success: true, seq: l.seq}, true
	case PhaseRejected:
		if e.Seq != l.seq {
			return l, false
		}
		return Lifecycle{Error: e.Err, seq: l.seq}, false
	case PhaseCancelled:
		l.Loading = false
		l.seq = e.Seq
		return l, false
	case PhaseReset:
		return Lifecycle{Loading: l.Loading, seq: l.seq}, false
	}
	return l, false
}

// RequestState объединяет цикл операции и её данные.
type RequestState[T any] struct {
	Lifecycle
	Data T `json:"data"`
}

func reduceRequest[T any](rs RequestState[T], e Event) (RequestState[T], bool) {
	lc, apply := rs.Lifecycle.apply(e)
	rs.Lifecycle = lc
	if !apply {
		return rs, false
	}
	data, ok := e.Payload.(T)
	if !ok {
		return rs, false
	}
	rs.Data = data
	return rs, true
}

// SessionState содержит срез сессии и учётных записей.
type SessionState struct {
	User     *model.User                `json:"user"`
	Token    string                     `json:"-"`
	Register Lifecycle                  `json:"register"`
	Login    Lifecycle                  `json:"login"`
	Profile  Lifecycle                  `json:"profile"`
	Users    RequestState[[]model.User] `json:"users"`
}

// Session возвращает текущую сессию.
func (s SessionState) Session() model.Session {
	return model.Session{User: s.User, Token: s.Token}
}

// CatalogState содержит срез каталога товаров с независимыми циклами операций.
type CatalogState struct {
	List   RequestState[[]model.Product] `json:"list"`
	Create RequestState[*model.Product]  `json:"create"`
	Update RequestState[*model.Product]  `json:"update"`
}

// Product ищет товар в загруженном списке.
func (c CatalogState) Product(id model.ID) (model.Product, bool) {
	for _, p := range c.List.Data {
		if p.ID == id {
			return p, true
		}
	}
	return model.Product{}, false
}

// CartState содержит срез корзины. Items равен nil, пока корзина не загружена.
type CartState struct {
	Items  []model.CartItem `json:"items"`
	Fetch  Lifecycle        `json:"fetch"`
	Add    Lifecycle        `json:"add"`
	Update Lifecycle        `json:"update"`
	Delete Lifecycle        `json:"delete"`
	Clear  Lifecycle        `json:"clear"`
}

// OrderState содержит срез заказов.
type OrderState struct {
	Orders  []model.Order              `json:"orders"`
	List    Lifecycle                  `json:"list"`
	Create  RequestState[*model.Order] `json:"create"`
	Warning string                     `json:"warning,omitempty"`
}

// State содержит полное состояние клиента.
type State struct {
	Session SessionState `json:"session"`
	Catalog CatalogState `json:"catalog"`
	Cart    CartState    `json:"cart"`
	Orders  OrderState   `json:"orders"`
}

// Lifecycle возвращает цикл указанной операции.
func (st State) Lifecycle(op Op) (Lifecycle, bool) {
	switch op {
	case OpRegister:
		return st.Session.Register, true
	case OpLogin:
		return st.Session.Login, true
	case OpProfile:
		return st.Session.Profile, true
	case OpListUsers:
		return st.Session.Users.Lifecycle, true
	case OpListProducts:
		return st.Catalog.List.Lifecycle, true
	case OpCreateProduct:
		return st.Catalog.Create.Lifecycle, true
	case OpUpdateProduct:
		return st.Catalog.Update.Lifecycle, true
	case OpFetchCart:
		return st.Cart.Fetch, true
	case OpAddCartItem:
		return st.Cart.Add, true
	case OpUpdateCartItem:
		return st.Cart.Update, true
	case OpDeleteCartItem:
		return st.Cart.Delete, true
	case OpClearCart:
		return st.Cart.Clear, true
	case OpListOrders:
		return st.Orders.List, true
	case OpCreateOrder:
		return st.Orders.Create.Lifecycle, true
	}
	return Lifecycle{}, false
}

// Reduce применяет событие ко всем срезам. Функция чистая: входное состояние не изменяется.
func Reduce(st State, e Event) State {
	st.Session = reduceSession(st.Session, e)
	st.Catalog = reduceCatalog(st.Catalog, e)
	st.Cart = reduceCart(st.Cart, e)
	st.Orders = reduceOrders(st.Orders, e)
	return st
}
