// Package handler содержит HTTP-представления клиента витрины.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/apiclient"
	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/service"
	"github.com/mmeshcher/storefront/internal/state"
	"github.com/mmeshcher/storefront/internal/validation"
)

// Service определяет действия и состояние, которые потребляют представления.
type Service interface {
	State() state.State
	TokenExpiry(token string) time.Time

	Register(ctx context.Context, form model.RegisterForm) (*model.AuthResponse, error)
	Login(ctx context.Context, creds model.Credentials) (*model.AuthResponse, error)
	Logout() error
	GetProfile(ctx context.Context) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateProduct(ctx context.Context, form model.ProductForm) (*model.Product, error)
	UpdateProduct(ctx context.Context, id model.ID, form model.ProductForm) (*model.Product, error)

	GetCartItems(ctx context.Context) ([]model.CartItem, error)
	AddCartItem(ctx context.Context, line model.CartLine) (*model.CartItem, error)
	UpdateCartItem(ctx context.Context, id model.ID, quantity int) error
	DeleteCartItem(ctx context.Context, id model.ID) error

	ListOrders(ctx context.Context) ([]model.Order, error)
	Checkout(ctx context.Context, shippingAddress string) (*model.Order, error)
}

// Handler реализует HTTP-представления витрины.
type Handler struct {
	service Service
	logger  *zap.Logger
	guard   *middleware.RouteGuard
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, guard *middleware.RouteGuard) *Handler {
	return &Handler{
		service: s,
		logger:  logger,
		guard:   guard,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит ошибку действия в HTTP-ответ: 422 для ошибок валидации,
// статус API для 4xx и 502 для остальных сбоев API.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := http.StatusBadGateway
	message := apiclient.Message(err, fallback)

	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
		message = verr.Message
	case errors.Is(err, service.ErrProfileNotFound):
		status = http.StatusNotFound
	default:
		if code := apiclient.StatusCode(err); code >= http.StatusBadRequest && code < http.StatusInternalServerError {
			status = code
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("storefront action failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, messageResponse{Message: message})
}

func badRequest(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, messageResponse{Message: http.StatusText(http.StatusBadRequest)})
}

// Login выполняет вход и сохраняет токен в cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		badRequest(w)
		return
	}

	resp, err := h.service.Login(r.Context(), creds)
	if err != nil {
		h.writeError(w, r, err, service.LoginFailedMessage)
		return
	}

	middleware.SetTokenCookie(w, resp.Token, h.service.TokenExpiry(resp.Token))
	writeJSON(w, http.StatusOK, resp.User)
}

// Register регистрирует пользователя по multipart-форме.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		badRequest(w)
		return
	}

	upload, err := readUpload(r, "file")
	if err != nil {
		badRequest(w)
		return
	}

	resp, err := h.service.Register(r.Context(), model.RegisterForm{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Role:     model.Role(r.FormValue("role")),
		Image:    upload,
	})
	if err != nil {
		h.writeError(w, r, err, apiclient.DefaultErrorMessage)
		return
	}

	if resp.Token != "" {
		middleware.SetTokenCookie(w, resp.Token, h.service.TokenExpiry(resp.Token))
	}
	writeJSON(w, http.StatusCreated, resp.User)
}

// Logout завершает сессию. Ошибка очистки хранилищ не мешает выходу.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(); err != nil {
		h.logger.Error("logout error", zap.Error(err))
	}
	middleware.ClearTokenCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// State возвращает снимок состояния клиента. Токен в снимок не попадает.
// Анонимный посетитель видит только каталог, список пользователей виден только администратору.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, visibleState(h.service.State(), identity, ok))
}

func visibleState(st state.State, identity model.User, authenticated bool) state.State {
	if !authenticated {
		return state.State{Catalog: st.Catalog}
	}
	if identity.Role != model.RoleAdmin {
		st.Session.Users = state.RequestState[[]model.User]{}
	}
	return st
}

// Profile возвращает профиль текущего пользователя.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetProfile(r.Context())
	if err != nil {
		h.writeError(w, r, err, apiclient.DefaultErrorMessage)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type adminSummary struct {
	User     model.User `json:"user"`
	Products int        `json:"products"`
	Users    int        `json:"users"`
}

// AdminPanel возвращает сводку панели администратора по загруженному состоянию.
func (h *Handler) AdminPanel(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	st := h.service.State()

	writeJSON(w, http.StatusOK, adminSummary{
		User:     identity,
		Products: len(st.Catalog.List.Data),
		Users:    len(st.Session.Users.Data),
	})
}

// ListUsers возвращает пользователей для администратора.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err, apiclient.DefaultErrorMessage)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// ListProducts возвращает каталог.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, r, err, apiclient.DefaultErrorMessage)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

// CreateProduct создаёт товар по multipart-форме.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	form, err := parseProductForm(r)
	if err != nil {
		h.writeFormError(w, r, err)
		return
	}

	p, err := h.service.CreateProduct(r.Context(), form)
	if err != nil {
		h.writeError(w, r, err, apiclient.DefaultErrorMessage)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdateProduct изменяет товар по multipart-форме.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	form, err := parseProductForm(r)
	if err != nil {
		h.writeFormError(w, r, err)
		return
	}

	p, err := h.service.UpdateProduct(r.Context(), model.ID(chi.URLParam(r, "id")), form)
	if err != nil {
		h.writeError(w, r, err, apiclient.DefaultErrorMessage)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) writeFormError(w http.ResponseWriter, r *http.Request, err error) {
	if validation.IsValidationError(err) {
		h.writeError(w, r, err, "")
		return
	}
	badRequest(w)
}

// GetCart возвращает корзину.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.GetCartItems(r.Context())
	if err != nil {
		h.writeError(w, r, err, apiclient.DefaultErrorMessage)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// AddCartItem добавляет товар в корзину.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var line model.CartLine
	if err := json.NewDecoder(r.Body).Decode(&line); err != nil {
		badRequest(w)
		return
	}

	item, err := h.service.AddCartItem(r.Context(), line)
	if err != nil {
		h.writeError(w, r, err, apiclient.DefaultErrorMessage)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateCartItem меняет количество товара в корзине.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w)
		return
	}

	if err := h.service.UpdateCartItem(r.Context(), model.ID(chi.URLParam(r, "id")), req.Quantity); err != nil {
		h.writeError(w, r, err, apiclient.DefaultErrorMessage)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteCartItem удаляет товар из корзины.
func (h *Handler) DeleteCartItem(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCartItem(r.Context(), model.ID(chi.URLParam(r, "id"))); err != nil {
		h.writeError(w, r, err, apiclient.DefaultErrorMessage)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkoutRequest struct {
	ShippingAddress string `json:"shippingAddress"`
}

type checkoutResponse struct {
	Order   *model.Order `json:"order"`
	Warning string       `json:"warning,omitempty"`
}

// Checkout оформляет заказ из корзины. Неочищенная корзина не отменяет заказ,
// а возвращается предупреждением.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w)
		return
	}

	order, err := h.service.Checkout(r.Context(), req.ShippingAddress)
	if err != nil && !errors.Is(err, service.ErrCartNotCleared) {
		h.writeError(w, r, err, apiclient.DefaultErrorMessage)
		return
	}

	resp := checkoutResponse{Order: order}
	if err != nil {
		h.logger.Warn("checkout finished with warning", zap.Error(err))
		resp.Warning = service.ErrCartNotCleared.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ListOrders возвращает заказы пользователя.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context())
	if err != nil {
		h.writeError(w, r, err, apiclient.DefaultErrorMessage)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
