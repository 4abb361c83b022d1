package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/billing"
)

type checkoutSessionResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// CreateCheckoutSession opens a payment session for the given order. Vehicles
// are charged their deposit; accessories their full price.
func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFrom(ctx)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	session, err := h.checkout.CreateSession(ctx, actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, checkoutSessionResponse{
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
	})
}

type invoiceBuyerResponse struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

type invoiceResponse struct {
	ID        string               `json:"id"`
	Reference string               `json:"reference"`
	OrderID   string               `json:"order_id"`
	Net       string               `json:"net"`
	Tax       string               `json:"tax"`
	Gross     string               `json:"gross"`
	Buyer     invoiceBuyerResponse `json:"buyer"`
	Lines     []billing.Line       `json:"lines"`
	HostedURL string               `json:"hosted_url,omitempty"`
	IssuedAt  time.Time            `json:"issued_at"`
}

// GetInvoice returns the invoice issued for a finalized order. Ownership is
// checked through the cart aggregate before the invoice is looked up.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFrom(ctx)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	orderID := chi.URLParam(r, "orderID")
	if _, _, err := h.carts.View(ctx, actor, orderID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	inv, err := h.invoices.ByCartID(ctx, orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, invoiceResponse{
		ID:        inv.ID,
		Reference: inv.Reference(),
		OrderID:   inv.CartID,
		Net:       inv.Net.StringFixed(2),
		Tax:       inv.Tax.StringFixed(2),
		Gross:     inv.Gross.StringFixed(2),
		Buyer: invoiceBuyerResponse{
			Name:       inv.Buyer.Name,
			Email:      inv.Buyer.Email,
			Phone:      inv.Buyer.Phone,
			Address:    inv.Buyer.Address,
			PostalCode: inv.Buyer.PostalCode,
		},
		Lines:     inv.Lines,
		HostedURL: inv.HostedURL,
		IssuedAt:  inv.IssuedAt,
	})
}
