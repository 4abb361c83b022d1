package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/Dmytriyev/plateforme-porsche-sub000/internal/domain/billing"
)

// SignatureHeader carries the HMAC signature of the raw webhook body.
const SignatureHeader = "X-Payment-Signature"

// maxWebhookBody caps how much of a webhook payload is read before
// verification.
const maxWebhookBody = 1 << 20

// PaymentWebhook receives payment gateway notifications. The signature is
// verified against the raw body before any JSON decoding; rejected payloads
// are logged but never processed.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lg := zctx.From(ctx)

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "cannot read body")
		return
	}

	if err := h.verifier.Verify(payload, r.Header.Get(SignatureHeader)); err != nil {
		lg.Warn("Webhook signature rejected",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		writeError(w, r, http.StatusBadRequest, "invalid signature")
		return
	}

	ev, err := billing.ParseEvent(payload)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed event")
		return
	}

	if err := h.reconciler.HandleEvent(ctx, ev); err != nil {
		if errors.Is(err, billing.ErrMissingCartReference) ||
			errors.Is(err, billing.ErrMissingSessionReference) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		// Unexpected failures return 500 so the gateway redelivers;
		// reconciliation is idempotent.
		lg.Error("Webhook reconciliation failed",
			zap.String("event_id", ev.ID),
			zap.Error(err),
		)
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	w.WriteHeader(http.StatusOK)
}
