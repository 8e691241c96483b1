// Package broker defines the ports the orchestrator consumes: an order
// gateway for placing/cancelling/modifying orders and a last-price feed.
// Adapters for concrete brokers live under internal/gateway.
package broker

import "context"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the exit side for an entry side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderKind string

const (
	KindMarket    OrderKind = "MARKET"
	KindLimit     OrderKind = "LIMIT"
	KindStopLimit OrderKind = "STOP_LIMIT"
)

// OrderSpec is the full submission payload for one order. Product is an
// opaque broker string (e.g. NORMAL, INTRADAY) passed through untouched.
type OrderSpec struct {
	Exchange     string    `json:"exchange"`
	Instrument   string    `json:"instrument"`
	Side         Side      `json:"side"`
	Quantity     int       `json:"quantity"`
	Price        float64   `json:"price,omitempty"`
	TriggerPrice float64   `json:"trigger_price,omitempty"`
	Kind         OrderKind `json:"kind"`
	Product      string    `json:"product,omitempty"`
}

type PlaceResult struct {
	BrokerOrderID string
	Raw           map[string]any
}

type CancelResult struct {
	Raw map[string]any
}

// ModifyTerms carries the order fields a modify may change. Zero values
// mean "leave unchanged".
type ModifyTerms struct {
	Price        float64
	TriggerPrice float64
	Quantity     int
}

// ModifyResult reports the outcome of a modify. Brokers without a native
// amend endpoint implement modify as cancel+replace; such adapters return
// the replacement id in BrokerOrderID and callers must persist it.
type ModifyResult struct {
	BrokerOrderID string
	Raw           map[string]any
}

type OrderStatus string

const (
	StatusOpen      OrderStatus = "OPEN"
	StatusPartial   OrderStatus = "PARTIAL"
	StatusFilled    OrderStatus = "FILLED"
	StatusCancelled OrderStatus = "CANCELLED"
	StatusRejected  OrderStatus = "REJECTED"
)

// OrderSnapshot is the broker's current view of one order, used to confirm
// ambiguous push events and during restart reconciliation.
type OrderSnapshot struct {
	Status    OrderStatus
	FilledQty int
	AvgPrice  float64
}

// OrderUpdate is the normalized asynchronous order event. The dispatcher
// converts broker-specific payload shapes into this once, centrally.
type OrderUpdate struct {
	OrderID   string
	Status    OrderStatus
	FilledQty int
}

// Terminal reports whether the status can no longer change.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// Gateway is the synchronous order port. Place is not idempotent: callers
// own retry policy because placing twice risks duplicate orders. Cancel of
// an already-closed order returns a GatewayError that callers may tolerate.
type Gateway interface {
	Place(ctx context.Context, spec OrderSpec) (PlaceResult, error)
	Cancel(ctx context.Context, brokerOrderID string) (CancelResult, error)
	Modify(ctx context.Context, brokerOrderID string, terms ModifyTerms) (ModifyResult, error)
	Get(ctx context.Context, brokerOrderID string) (OrderSnapshot, error)
}

// Feed returns the most recent known price for an (exchange, instrument)
// pair. ok=false means "no observation yet" and is not an error; errors are
// reserved for infrastructure failure.
type Feed interface {
	LastPrice(ctx context.Context, exchange, instrument string) (price float64, ok bool, err error)
}
