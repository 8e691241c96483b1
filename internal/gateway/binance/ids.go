package binance

import (
	"fmt"
	"strconv"
	"strings"
)

// Binance order ids are int64s scoped to a symbol, and every order
// endpoint requires both. The port's broker-order-id string therefore
// carries the pair as "SYMBOL:ID".
func joinOrderID(symbol string, orderID int64) string {
	return symbol + ":" + strconv.FormatInt(orderID, 10)
}

func splitOrderID(s string) (string, int64, error) {
	symbol, idStr, ok := strings.Cut(s, ":")
	if !ok || symbol == "" {
		return "", 0, fmt.Errorf("malformed order id %q, want SYMBOL:ID", s)
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed order id %q: %w", s, err)
	}
	return symbol, id, nil
}

// Binance wants bare symbols (ETHUSDT), callers may pass ETH/USDT.
func cleanSymbol(instrument string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(instrument), "/", ""))
}
