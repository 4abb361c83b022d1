package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/cart"
)

// lineItemResponse is the wire shape of a single cart line.
type lineItemResponse struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	ConfigurationID string `json:"configuration_id,omitempty"`
	AccessoryID     string `json:"accessory_id,omitempty"`
	Description     string `json:"description"`
	Quantity        int    `json:"quantity"`
	UnitPrice       string `json:"unit_price"`
	Price           string `json:"price"`
	Deposit         string `json:"deposit"`
}

// cartResponse is the wire shape of the cart aggregate.
type cartResponse struct {
	ID                string             `json:"id"`
	Status            string             `json:"status"`
	TotalPrice        string             `json:"total_price"`
	TotalDeposit      string             `json:"total_deposit"`
	CheckoutSessionID string             `json:"checkout_session_id,omitempty"`
	ReceiptURL        string             `json:"receipt_url,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	ValidatedAt       *time.Time         `json:"validated_at,omitempty"`
	Items             []lineItemResponse `json:"items"`
}

func toLineItemResponse(li *cart.LineItem) lineItemResponse {
	return lineItemResponse{
		ID:              li.ID,
		Kind:            string(li.Kind),
		ConfigurationID: li.ConfigurationID,
		AccessoryID:     li.AccessoryID,
		Description:     li.Description,
		Quantity:        li.Quantity,
		UnitPrice:       li.UnitPrice.StringFixed(2),
		Price:           li.Price.StringFixed(2),
		Deposit:         li.Deposit.StringFixed(2),
	}
}

func toCartResponse(c *cart.Cart, items []cart.LineItem) cartResponse {
	resp := cartResponse{
		ID:                c.ID,
		Status:            string(c.Status),
		TotalPrice:        c.TotalPrice.StringFixed(2),
		TotalDeposit:      c.TotalDeposit.StringFixed(2),
		CheckoutSessionID: c.CheckoutSessionID,
		ReceiptURL:        c.ReceiptURL,
		CreatedAt:         c.CreatedAt,
		ValidatedAt:       c.ValidatedAt,
		Items:             make([]lineItemResponse, 0, len(items)),
	}
	for i := range items {
		resp.Items = append(resp.Items, toLineItemResponse(&items[i]))
	}
	return resp
}

// GetCart returns the caller's active cart, creating an empty one on first
// use.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFrom(ctx)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	c, err := h.carts.ActiveCart(ctx, actor.CustomerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	_, items, err := h.carts.View(ctx, actor, c.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, toCartResponse(c, items))
}

// addLineItemRequest adds a configured vehicle or an accessory to the active
// cart. Exactly one of the two IDs must be set.
type addLineItemRequest struct {
	ConfigurationID string `json:"configuration_id"`
	AccessoryID     string `json:"accessory_id"`
	Quantity        int    `json:"quantity"`
}

func (req *addLineItemRequest) Bind(*http.Request) error {
	if (req.ConfigurationID == "") == (req.AccessoryID == "") {
		return errExactlyOneProduct
	}
	return nil
}

// AddLineItem adds a product to the caller's active cart.
func (h *Handler) AddLineItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFrom(ctx)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	req := &addLineItemRequest{}
	if err := render.Bind(r, req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var (
		li  *cart.LineItem
		err error
	)
	if req.ConfigurationID != "" {
		li, err = h.carts.AddConfiguration(ctx, actor, req.ConfigurationID)
	} else {
		quantity := req.Quantity
		if quantity == 0 {
			quantity = 1
		}
		li, err = h.carts.AddAccessory(ctx, actor, req.AccessoryID, quantity)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toLineItemResponse(li))
}

type updateLineItemRequest struct {
	Quantity int `json:"quantity"`
}

func (req *updateLineItemRequest) Bind(*http.Request) error { return nil }

// UpdateLineItem changes the quantity of a line item in the caller's cart.
func (h *Handler) UpdateLineItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFrom(ctx)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	req := &updateLineItemRequest{}
	if err := render.Bind(r, req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	li, err := h.carts.UpdateQuantity(ctx, actor, chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.JSON(w, r, toLineItemResponse(li))
}

// RemoveLineItem deletes a line item from the caller's cart.
func (h *Handler) RemoveLineItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := actorFrom(ctx)
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.carts.RemoveItem(ctx, actor, chi.URLParam(r, "itemID")); err != nil {
		writeDomainError(w, r, err)
		return
	}

	render.NoContent(w, r)
}
