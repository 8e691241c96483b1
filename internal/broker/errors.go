package broker

import (
	"errors"
	"fmt"
	"strings"
)

// GatewayError wraps any transport or broker-side rejection from a gateway
// call. AlreadyClosed marks the "cancel of a filled/cancelled order" case
// the orchestrator tolerates during sibling cancellation.
type GatewayError struct {
	Op            string
	BrokerOrderID string
	AlreadyClosed bool
	Err           error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	b.WriteString("gateway ")
	b.WriteString(e.Op)
	if e.BrokerOrderID != "" {
		fmt.Fprintf(&b, " order=%s", e.BrokerOrderID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// NewGatewayError builds a GatewayError for op, wrapping cause.
func NewGatewayError(op, brokerOrderID string, cause error) *GatewayError {
	return &GatewayError{Op: op, BrokerOrderID: brokerOrderID, Err: cause}
}

// IsAlreadyClosed reports whether err is a gateway rejection caused by the
// order already being in a terminal state broker-side.
func IsAlreadyClosed(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.AlreadyClosed
	}
	return false
}
