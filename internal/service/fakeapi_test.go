package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/storefront/internal/apiclient"
	"github.com/mmeshcher/storefront/internal/credentials"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/session/sessiontest"
	"github.com/mmeshcher/storefront/internal/state"
)

// fakeAPI эмулирует удалённое API витрины в памяти.
type fakeAPI struct {
	t  *testing.T
	mu sync.Mutex

	products []model.Product
	cart     []model.CartItem
	orders   []model.Order
	profile  []model.User
	users    []model.User

	loginUser     model.User
	profileStatus int
	orderStatus   int
	clearFailures int

	calls     []string
	forms     map[string]map[string]string
	files     map[string]string
	nextID    int
	lastToken string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	return &fakeAPI{
		t:         t,
		loginUser: model.User{ID: "u1", Name: "Alice", Email: "a@b.com", Role: model.RoleUser},
		forms:     make(map[string]map[string]string),
		files:     make(map[string]string),
	}
}

func (f *fakeAPI) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /user/login", f.login)
	mux.HandleFunc("POST /user/register", f.register)
	mux.HandleFunc("GET /user/{$}", f.profileHandler)
	mux.HandleFunc("GET /product", f.listProducts)
	mux.HandleFunc("POST /product", f.saveProduct)
	mux.HandleFunc("PUT /product/{id}", f.saveProduct)
	mux.HandleFunc("GET /cart", f.listCart)
	mux.HandleFunc("POST /cart", f.addCart)
	mux.HandleFunc("PUT /cart/{id}", f.updateCart)
	mux.HandleFunc("DELETE /cart/{id}", f.deleteCart)
	mux.HandleFunc("POST /cart/clearCart", f.clearCart)
	mux.HandleFunc("GET /order", f.listOrders)
	mux.HandleFunc("POST /order", f.createOrder)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.lastToken = r.Header.Get("Authorization")
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	})
}

func (f *fakeAPI) hits(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func (f *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var creds model.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeMessage(w, http.StatusBadRequest, "bad body")
		return
	}
	if creds.Email == "down@b.com" {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if creds.Password != "x" {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	f.mu.Lock()
	u := f.loginUser
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, model.AuthResponse{
		User:  u,
		Token: sessiontest.Token(f.t, u, time.Now().Add(time.Hour)),
	})
}

func (f *fakeAPI) register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "bad form")
		return
	}
	f.recordForm("register", r)

	if r.FormValue("email") == "taken@b.com" {
		writeMessage(w, http.StatusConflict, "Email already registered")
		return
	}
	writeJSON(w, http.StatusCreated, model.User{
		ID:    "u2",
		Name:  r.FormValue("name"),
		Email: r.FormValue("email"),
		Role:  model.Role(r.FormValue("role")),
	})
}

func (f *fakeAPI) recordForm(key string, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values := make(map[string]string)
	for k, v := range r.MultipartForm.Value {
		values[k] = v[0]
	}
	f.forms[key] = values
	if fh, ok := r.MultipartForm.File["file"]; ok && len(fh) > 0 {
		f.files[key] = fh[0].Filename
	}
}

func (f *fakeAPI) profileHandler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	status, profile := f.profileStatus, f.profile
	f.mu.Unlock()

	if status != 0 {
		writeMessage(w, status, "Profile unavailable")
		return
	}
	if profile == nil {
		profile = []model.User{}
	}
	writeJSON(w, http.StatusOK, profile)
}

func (f *fakeAPI) listProducts(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.products)
}

func (f *fakeAPI) saveProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeMessage(w, http.StatusBadRequest, "bad form")
		return
	}
	key := "create"
	if r.Method == http.MethodPut {
		key = "update"
	}
	f.recordForm(key, r)

	price, err := decimal.NewFromString(r.FormValue("price"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "bad price")
		return
	}
	stock, _ := strconv.Atoi(r.FormValue("stock"))
	reserved, _ := strconv.Atoi(r.FormValue("reserved"))

	p := model.Product{
		ID:          model.ID(r.PathValue("id")),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Price:       price,
		Stock:       stock,
		Reserved:    reserved,
		Category:    r.FormValue("category"),
		Image:       r.FormValue("image"),
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if fh, ok := r.MultipartForm.File["file"]; ok && len(fh) > 0 {
		p.Image = "/uploads/" + fh[0].Filename
	}
	if p.ID == "" {
		f.nextID++
		p.ID = model.ID(fmt.Sprintf("p%d", 100+f.nextID))
		f.products = append(f.products, p)
		writeJSON(w, http.StatusCreated, p)
		return
	}
	for i := range f.products {
		if f.products[i].ID == p.ID {
			f.products[i] = p
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Product not found")
}

func (f *fakeAPI) listCart(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.cart)
}

func (f *fakeAPI) addCart(w http.ResponseWriter, r *http.Request) {
	var line model.CartLine
	if err := json.NewDecoder(r.Body).Decode(&line); err != nil {
		writeMessage(w, http.StatusBadRequest, "bad body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i := range f.cart {
		if f.cart[i].ProductID == line.ProductID {
			f.cart[i].Quantity += line.Quantity
			writeJSON(w, http.StatusOK, f.cart[i])
			return
		}
	}
	for _, p := range f.products {
		if p.ID == line.ProductID {
			item := model.CartItem{
				ProductID:    p.ID,
				ProductName:  p.Title,
				ProductPrice: p.Price,
				Quantity:     line.Quantity,
				Image:        p.Image,
			}
			f.cart = append(f.cart, item)
			// как и настоящее API, подтверждает только количество
			writeJSON(w, http.StatusCreated, map[string]int{"quantity": item.Quantity})
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Product not found")
}

func (f *fakeAPI) updateCart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "bad body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := model.ID(r.PathValue("id"))
	for i := range f.cart {
		if f.cart[i].ProductID == id {
			f.cart[i].Quantity = body.Quantity
			writeJSON(w, http.StatusOK, f.cart[i])
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Item not in cart")
}

func (f *fakeAPI) deleteCart(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := model.ID(r.PathValue("id"))
	kept := f.cart[:0]
	for _, it := range f.cart {
		if it.ProductID != id {
			kept = append(kept, it)
		}
	}
	f.cart = kept
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeAPI) clearCart(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.clearFailures > 0 {
		f.clearFailures--
		writeMessage(w, http.StatusInternalServerError, "database unavailable")
		return
	}
	f.cart = nil
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cart cleared"})
}

func (f *fakeAPI) listOrders(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusOK, f.orders)
}

func (f *fakeAPI) createOrder(w http.ResponseWriter, r *http.Request) {
	var req model.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "bad body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.orderStatus != 0 {
		writeMessage(w, f.orderStatus, "Order rejected")
		return
	}

	f.nextID++
	order := model.Order{
		ID:              model.ID(fmt.Sprintf("o%d", f.nextID)),
		ShippingAddress: req.ShippingAddress,
		Status:          model.OrderStatusPending,
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
	}
	for _, line := range req.Items {
		for _, p := range f.products {
			if p.ID == line.ProductID {
				order.Items = append(order.Items, model.OrderItem{Product: p, Quantity: line.Quantity})
			}
		}
	}
	f.orders = append(f.orders, order)
	writeJSON(w, http.StatusCreated, order)
}

type harness struct {
	svc   *Service
	api   *fakeAPI
	creds *credentials.Chain
	store *state.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	api := newFakeAPI(t)
	srv := httptest.NewServer(api.routes())
	t.Cleanup(srv.Close)

	creds := credentials.NewChain(credentials.NewMemoryStore(), credentials.NewMemoryStore(), zap.NewNop())
	client := apiclient.NewClient(apiclient.Options{
		BaseURL:      srv.URL,
		Timeout:      2 * time.Second,
		RetryMax:     0,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: time.Millisecond,
	}, creds)
	store := state.NewStore(zap.NewNop())

	svc := NewService(client, store, creds, zap.NewNop(),
		WithClearBackoff(func() retry.Backoff {
			return retry.WithMaxRetries(2, retry.NewConstant(time.Millisecond))
		}),
	)
	return &harness{svc: svc, api: api, creds: creds, store: store}
}

func seedProducts(api *fakeAPI, products ...model.Product) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.products = append(api.products, products...)
}

func product(id string, price string, stock, reserved int) model.Product {
	return model.Product{
		ID:          model.ID(id),
		Title:       "Product " + id,
		Description: "desc",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		Reserved:    reserved,
		Category:    "misc",
		Image:       "/uploads/" + id + ".png",
	}
}
