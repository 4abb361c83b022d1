package billing

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// EventPaymentCompleted is the only event type that changes state; every
// other type is acknowledged and ignored.
const EventPaymentCompleted = "payment.completed"

// ErrBadSignature is returned when a webhook payload fails authenticity
// verification. It maps to a client error and is never retried.
var ErrBadSignature = errors.New("webhook signature mismatch")

// Verifier checks a webhook payload's authenticity against its signature
// header before any structured decoding happens.
type Verifier interface {
	Verify(payload []byte, signature string) error
}

// Event is a payment-gateway webhook notification. AmountTotal is the
// gateway-reported charge in minor units; it is informational only and never
// trusted for reconciliation.
type Event struct {
	ID          string
	Type        string
	SessionID   string
	CartID      string
	AmountTotal int64
	ReceiptURL  string
}

// ParseEvent decodes a raw webhook body. Unknown fields are skipped so
// gateway payload additions do not break reconciliation.
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	d := jx.DecodeBytes(payload)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			ev.ID = v
			return err
		case "type":
			v, err := d.Str()
			ev.Type = v
			return err
		case "data":
			return d.Obj(func(d *jx.Decoder, key string) error {
				switch key {
				case "session_id":
					v, err := d.Str()
					ev.SessionID = v
					return err
				case "amount_total":
					v, err := d.Int64()
					ev.AmountTotal = v
					return err
				case "receipt_url":
					v, err := d.Str()
					ev.ReceiptURL = v
					return err
				case "metadata":
					return d.Obj(func(d *jx.Decoder, key string) error {
						if key == "cart_id" {
							v, err := d.Str()
							ev.CartID = v
							return err
						}
						return d.Skip()
					})
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode webhook event")
	}
	if ev.Type == "" {
		return nil, errors.New("webhook event has no type")
	}
	return &ev, nil
}
