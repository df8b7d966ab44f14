package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/storefront/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware витрины.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.With(h.authMiddleware.Middleware).Get("/me", h.Me)
		})

		r.Get("/health", h.Health)
		r.Get("/products", h.ListProducts)
		r.Get("/products/{id}", h.GetProduct)
		r.Get("/content/homepage", h.GetHomepage)
		r.Get("/settings/public", h.GetPublicSettings)
		r.Post("/payment/webhook", h.Webhook)
		r.Get("/payment/track/{trackingNumber}", h.TrackOrder)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/products/{id}/reviews", h.AddReview)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddCartItem)
				r.Put("/items/{productID}", h.UpdateCartItem)
				r.Delete("/items/{productID}", h.RemoveCartItem)
				r.Post("/coupon", h.ApplyCoupon)
				r.Delete("/coupon", h.RemoveCoupon)
			})

			r.Post("/coupons/validate", h.ValidateCoupon)

			r.Post("/payment/create-checkout-session", h.CreateCheckoutSession)
			r.Post("/payment/create-single-checkout", h.CreateSingleCheckout)
			r.Get("/payment/orders", h.ListOrders)
			r.Get("/payment/orders/{id}", h.GetOrder)
			r.Get("/payment/orders/{id}/tracking", h.GetOrderTracking)
			r.Get("/payment/session/{sessionID}", h.GetSessionOrder)

			r.Post("/assistant/chat", h.Chat)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(custommiddleware.RequireAdmin)
			r.Use(custommiddleware.RequireCurrentAdmin(h.currentRole))

			r.Get("/users", h.ListUsers)
			r.Put("/users/{id}/role", h.UpdateUserRole)

			r.Get("/products", h.AdminListProducts)
			r.Post("/products", h.CreateProduct)
			r.Get("/products/{id}", h.AdminGetProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Delete("/products/{id}", h.DeleteProduct)

			r.Get("/orders", h.AdminListOrders)
			r.Get("/orders/{id}", h.AdminGetOrder)
			r.Put("/orders/{id}/status", h.UpdateOrderStatus)
			r.Put("/orders/{id}/tracking", h.UpdateOrderTracking)

			r.Get("/coupons", h.ListCoupons)
			r.Post("/coupons", h.CreateCoupon)
			r.Put("/coupons/{id}", h.UpdateCoupon)
			r.Delete("/coupons/{id}", h.DeleteCoupon)

			r.Put("/homepage", h.UpdateHomepage)
			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.UpdateSettings)
			r.Get("/stats", h.Stats)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
