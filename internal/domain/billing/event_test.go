package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_42",
		"type": "payment.completed",
		"created": 1767225600,
		"data": {
			"session_id": "sess_9",
			"amount_total": 2070000,
			"currency": "eur",
			"receipt_url": "https://pay.example/r/9",
			"metadata": {"cart_id": "cart-9", "source": "storefront"}
		}
	}`)

	ev, err := ParseEvent(payload)
	require.NoError(t, err)

	assert.Equal(t, "evt_42", ev.ID)
	assert.Equal(t, EventPaymentCompleted, ev.Type)
	assert.Equal(t, "sess_9", ev.SessionID)
	assert.Equal(t, "cart-9", ev.CartID)
	assert.Equal(t, int64(2_070_000), ev.AmountTotal)
	assert.Equal(t, "https://pay.example/r/9", ev.ReceiptURL)
}

func TestParseEvent_UnknownType(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"id":"evt_1","type":"payment.session.expired","data":{}}`))
	require.NoError(t, err)
	assert.Equal(t, "payment.session.expired", ev.Type)
	assert.Empty(t, ev.CartID)
}

func TestParseEvent_Malformed(t *testing.T) {
	_, err := ParseEvent([]byte(`{"id":`))
	require.Error(t, err)
}

func TestParseEvent_NoType(t *testing.T) {
	_, err := ParseEvent([]byte(`{"id":"evt_1"}`))
	require.Error(t, err)
}

func TestInvoiceReference(t *testing.T) {
	inv := &Invoice{Year: 2026, Number: 123}
	assert.Equal(t, "2026-000123", inv.Reference())
}

func TestSplitGross(t *testing.T) {
	net, tax := SplitGross(decimal.NewFromInt(120), decimal.NewFromInt(20))
	assert.True(t, decimal.NewFromInt(100).Equal(net))
	assert.True(t, decimal.NewFromInt(20).Equal(tax))

	net, tax = SplitGross(decimal.NewFromInt(103_600), decimal.NewFromInt(20))
	assert.True(t, net.Add(tax).Equal(decimal.NewFromInt(103_600)))

	net, tax = SplitGross(decimal.Zero, decimal.NewFromInt(20))
	assert.True(t, net.IsZero())
	assert.True(t, tax.IsZero())
}
