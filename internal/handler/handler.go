package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/billing"
	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/cart"
	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/checkout"
)

// Handler exposes the storefront API over HTTP, delegating business logic to
// the cart, checkout, and billing services.
type Handler struct {
	carts      *cart.Service
	checkout   *checkout.Service
	reconciler *billing.Reconciler
	invoices   billing.Repository
	verifier   billing.Verifier
	security   *SecurityMiddleware
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	carts *cart.Service,
	co *checkout.Service,
	reconciler *billing.Reconciler,
	invoices billing.Repository,
	verifier billing.Verifier,
	security *SecurityMiddleware,
) *Handler {
	return &Handler{
		carts:      carts,
		checkout:   co,
		reconciler: reconciler,
		invoices:   invoices,
		verifier:   verifier,
		security:   security,
	}
}

// Routes mounts the API surface. Storefront routes require an API key; the
// payment webhook authenticates via its own signature instead.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Route("/api", func(r chi.Router) {
		r.Use(h.security.Handle)

		r.Get("/cart", h.GetCart)
		r.Post("/cart/line-items", h.AddLineItem)
		r.Patch("/cart/line-items/{itemID}", h.UpdateLineItem)
		r.Delete("/cart/line-items/{itemID}", h.RemoveLineItem)

		r.Post("/orders/{orderID}/checkout-session", h.CreateCheckoutSession)
		r.Get("/orders/{orderID}/invoice", h.GetInvoice)
	})

	r.Post("/webhooks/payment", h.PaymentWebhook)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
