package binance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderIDRoundTrip(t *testing.T) {
	id := joinOrderID("ETHUSDT", 123456789)
	assert.Equal(t, "ETHUSDT:123456789", id)

	symbol, orderID, err := splitOrderID(id)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", symbol)
	assert.Equal(t, int64(123456789), orderID)
}

func TestSplitOrderIDMalformed(t *testing.T) {
	for _, bad := range []string{"", "ETHUSDT", ":42", "ETHUSDT:abc"} {
		_, _, err := splitOrderID(bad)
		assert.Error(t, err, bad)
	}
}

func TestCleanSymbol(t *testing.T) {
	assert.Equal(t, "ETHUSDT", cleanSymbol("eth/usdt"))
	assert.Equal(t, "BTCUSDT", cleanSymbol(" BTCUSDT "))
	assert.Equal(t, "", cleanSymbol("  "))
}
