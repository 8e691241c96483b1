// Package dispatch turns raw broker order pushes into the normalized
// update events the orchestrator consumes and delivers them at least once.
// All the broker-specific key spellings are probed here, centrally, so the
// core never sees a loose payload.
package dispatch

import (
	"strings"

	"bracket/internal/broker"

	"github.com/tidwall/gjson"
)

// Key spellings observed across retail broker push feeds. The short
// one-letter keys are the Binance futures user-stream fields.
var (
	orderIDKeys   = []string{"order_id", "orderid", "orderId", "orderno", "norenordno", "nOrdNo", "i"}
	statusKeys    = []string{"order_status", "orderStatus", "status", "ordSt", "X"}
	filledQtyKeys = []string{"filled_qty", "filledQty", "fillshares", "filled_quantity", "fldQty", "z"}
	symbolKeys    = []string{"symbol", "s"}
)

// Normalize extracts the {order_id, status, filled_qty} triple from a raw
// broker payload. ok=false means the payload carries no usable order id or
// no recognizable status; such events are dropped by the caller, never
// errored on.
func Normalize(raw []byte) (broker.OrderUpdate, bool) {
	if !gjson.ValidBytes(raw) {
		return broker.OrderUpdate{}, false
	}
	parsed := gjson.ParseBytes(raw)

	// Binance-style stream events wrap the order object in an event
	// envelope; the keys live one level down under "o".
	if o := parsed.Get("o"); o.IsObject() && parsed.Get("e").Exists() {
		parsed = o
	}

	orderID := firstString(parsed, orderIDKeys)
	if orderID == "" {
		return broker.OrderUpdate{}, false
	}
	// Brokers whose order ids are only unique per instrument carry the
	// symbol alongside; fold it in so the id matches the "SYMBOL:ID"
	// composite the gateway stores.
	if symbol := firstString(parsed, symbolKeys); symbol != "" && !strings.Contains(orderID, ":") {
		orderID = strings.ToUpper(symbol) + ":" + orderID
	}
	status, ok := normalizeStatus(firstString(parsed, statusKeys))
	if !ok {
		return broker.OrderUpdate{}, false
	}
	return broker.OrderUpdate{
		OrderID:   orderID,
		Status:    status,
		FilledQty: firstInt(parsed, filledQtyKeys),
	}, true
}

func firstString(parsed gjson.Result, keys []string) string {
	for _, key := range keys {
		if v := parsed.Get(key); v.Exists() {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstInt(parsed gjson.Result, keys []string) int {
	for _, key := range keys {
		if v := parsed.Get(key); v.Exists() {
			return int(v.Int())
		}
	}
	return 0
}

// normalizeStatus maps the many broker status words onto the closed set.
func normalizeStatus(raw string) (broker.OrderStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "OPEN", "NEW", "PENDING", "TRIGGER_PENDING":
		return broker.StatusOpen, true
	case "PARTIAL", "PARTIALLY_FILLED", "PARTIALLY FILLED":
		return broker.StatusPartial, true
	case "FILLED", "COMPLETE", "COMP", "EXECUTED":
		return broker.StatusFilled, true
	case "CANCELLED", "CANCELED", "CXL", "EXPIRED":
		return broker.StatusCancelled, true
	case "REJECTED", "REJECT":
		return broker.StatusRejected, true
	default:
		return "", false
	}
}
