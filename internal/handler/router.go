package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Post("/login", h.Login)
	r.Post("/register", h.Register)
	r.Post("/logout", h.Logout)
	r.Get("/products", h.ListProducts)
	r.With(h.guard.Identify).Get("/state", h.State)

	r.Group(func(r chi.Router) {
		r.Use(h.guard.Require())

		r.Get("/profile", h.Profile)
		r.Get("/orders", h.ListOrders)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/", h.AddCartItem)
			r.Post("/checkout", h.Checkout)
			r.Put("/{id}", h.UpdateCartItem)
			r.Delete("/{id}", h.DeleteCartItem)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.guard.Require(model.RoleAdmin))

		r.Get("/", h.AdminPanel)
		r.Get("/users", h.ListUsers)
		r.Post("/products", h.CreateProduct)
		r.Put("/products/{id}", h.UpdateProduct)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
