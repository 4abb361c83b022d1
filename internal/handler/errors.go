package handler

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/billing"
	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/cart"
	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/catalog"
	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/checkout"
)

var errExactlyOneProduct = errors.New("exactly one of configuration_id or accessory_id must be set")

// apiError is the JSON error envelope returned by every endpoint.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, apiError{Code: status, Message: msg})
}

// writeDomainError maps domain errors to HTTP statuses. Unrecognized errors
// become opaque 500s; the details stay in the logs.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, catalog.ErrConfigurationNotFound),
		errors.Is(err, catalog.ErrAccessoryNotFound),
		errors.Is(err, billing.ErrInvoiceNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, cart.ErrNotOwner):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, cart.ErrCartFinalized):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrVehicleQuantity),
		errors.Is(err, cart.ErrUsedVehicle),
		errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrNothingToCharge):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
	default:
		var gwErr *checkout.GatewayError
		if errors.As(err, &gwErr) {
			zctx.From(r.Context()).Warn("Payment gateway error", zap.Error(err))
			writeError(w, r, http.StatusBadGateway, "payment gateway unavailable")
			return
		}

		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
