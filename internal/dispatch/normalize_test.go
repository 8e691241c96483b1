package dispatch

import (
	"testing"

	"bracket/internal/broker"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want broker.OrderUpdate
		ok   bool
	}{
		{
			name: "canonical keys",
			raw:  `{"order_id":"A1","status":"FILLED","filled_qty":10}`,
			want: broker.OrderUpdate{OrderID: "A1", Status: broker.StatusFilled, FilledQty: 10},
			ok:   true,
		},
		{
			name: "camelCase broker",
			raw:  `{"orderId":"B2","orderStatus":"COMPLETE","filledQty":"5"}`,
			want: broker.OrderUpdate{OrderID: "B2", Status: broker.StatusFilled, FilledQty: 5},
			ok:   true,
		},
		{
			name: "noren style",
			raw:  `{"norenordno":"23120100001","status":"CANCELED","fillshares":0}`,
			want: broker.OrderUpdate{OrderID: "23120100001", Status: broker.StatusCancelled},
			ok:   true,
		},
		{
			name: "kotak style trigger pending",
			raw:  `{"nOrdNo":"X9","ordSt":"TRIGGER_PENDING"}`,
			want: broker.OrderUpdate{OrderID: "X9", Status: broker.StatusOpen},
			ok:   true,
		},
		{
			name: "per-symbol order id folds the symbol in",
			raw:  `{"symbol":"btcusdt","orderId":123,"orderStatus":"FILLED","filledQty":"10"}`,
			want: broker.OrderUpdate{OrderID: "BTCUSDT:123", Status: broker.StatusFilled, FilledQty: 10},
			ok:   true,
		},
		{
			name: "composite order id passes through unchanged",
			raw:  `{"symbol":"BTCUSDT","order_id":"BTCUSDT:123","status":"CANCELED"}`,
			want: broker.OrderUpdate{OrderID: "BTCUSDT:123", Status: broker.StatusCancelled},
			ok:   true,
		},
		{
			name: "futures user-stream envelope",
			raw:  `{"e":"ORDER_TRADE_UPDATE","E":1700000000000,"o":{"s":"ETHUSDT","i":456,"X":"PARTIALLY_FILLED","z":"3"}}`,
			want: broker.OrderUpdate{OrderID: "ETHUSDT:456", Status: broker.StatusPartial, FilledQty: 3},
			ok:   true,
		},
		{
			name: "partial fill",
			raw:  `{"order_id":"C3","status":"PARTIALLY_FILLED","filled_quantity":3}`,
			want: broker.OrderUpdate{OrderID: "C3", Status: broker.StatusPartial, FilledQty: 3},
			ok:   true,
		},
		{
			name: "expired maps to cancelled",
			raw:  `{"order_id":"D4","status":"EXPIRED"}`,
			want: broker.OrderUpdate{OrderID: "D4", Status: broker.StatusCancelled},
			ok:   true,
		},
		{
			name: "rejected",
			raw:  `{"order_id":"E5","status":"REJECT"}`,
			want: broker.OrderUpdate{OrderID: "E5", Status: broker.StatusRejected},
			ok:   true,
		},
		{name: "missing order id", raw: `{"status":"FILLED"}`, ok: false},
		{name: "unknown status word", raw: `{"order_id":"F6","status":"FROZEN"}`, ok: false},
		{name: "missing status", raw: `{"order_id":"G7"}`, ok: false},
		{name: "not json", raw: `hello`, ok: false},
		{name: "empty", raw: ``, ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Normalize([]byte(tc.raw))
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.want, got)
			}
		})
	}
}
