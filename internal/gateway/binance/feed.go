package binance

import (
	"context"
	"strconv"

	"bracket/internal/broker"
)

// Feed serves last-traded prices from the futures ticker endpoint. The
// exchange argument of the port is ignored: a Binance feed only ever
// answers for Binance.
type Feed struct {
	gw *Gateway
}

var _ broker.Feed = (*Feed)(nil)

func NewFeed(gw *Gateway) *Feed {
	return &Feed{gw: gw}
}

func (f *Feed) LastPrice(ctx context.Context, _ string, instrument string) (float64, bool, error) {
	symbol := cleanSymbol(instrument)
	if symbol == "" {
		return 0, false, nil
	}
	prices, err := f.gw.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, false, err
	}
	for _, p := range prices {
		if p == nil || p.Symbol != symbol {
			continue
		}
		last, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			continue
		}
		return last, true, nil
	}
	return 0, false, nil
}
