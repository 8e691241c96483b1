// Package binance implements the broker gateway and price feed ports on
// Binance USD-M futures via the go-binance SDK.
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"bracket/internal/broker"
	"bracket/internal/pkg/convert"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

type Gateway struct {
	cfg    Config
	client *futures.Client
}

var _ broker.Gateway = (*Gateway)(nil)

func New(cfg Config) (*Gateway, error) {
	final := cfg.withDefaults()
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyEnabled && final.RESTProxyURL != "" {
		proxyURL, err := url.Parse(final.RESTProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Gateway{cfg: final, client: client}, nil
}

func (g *Gateway) Place(ctx context.Context, spec broker.OrderSpec) (broker.PlaceResult, error) {
	symbol := cleanSymbol(spec.Instrument)
	svc := g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(sideType(spec.Side)).
		Quantity(strconv.Itoa(spec.Quantity))

	switch spec.Kind {
	case broker.KindMarket:
		svc = svc.Type(futures.OrderTypeMarket)
	case broker.KindStopLimit:
		svc = svc.Type(futures.OrderTypeStop).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(formatPrice(spec.Price)).
			StopPrice(formatPrice(triggerOr(spec)))
	default:
		svc = svc.Type(futures.OrderTypeLimit).
			TimeInForce(futures.TimeInForceTypeGTC).
			Price(formatPrice(spec.Price))
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return broker.PlaceResult{}, wrapErr("place", "", err)
	}
	return broker.PlaceResult{
		BrokerOrderID: joinOrderID(symbol, res.OrderID),
		Raw:           rawMap(res),
	}, nil
}

func (g *Gateway) Cancel(ctx context.Context, brokerOrderID string) (broker.CancelResult, error) {
	symbol, orderID, err := splitOrderID(brokerOrderID)
	if err != nil {
		return broker.CancelResult{}, broker.NewGatewayError("cancel", brokerOrderID, err)
	}
	res, err := g.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return broker.CancelResult{}, wrapErr("cancel", brokerOrderID, err)
	}
	return broker.CancelResult{Raw: rawMap(res)}, nil
}

// Modify is cancel+replace: USD-M futures has no amend for working stop
// orders with changed trigger prices, so the original is cancelled, a
// replacement with the new terms is placed, and the replacement's id is
// reported for the caller to persist.
func (g *Gateway) Modify(ctx context.Context, brokerOrderID string, terms broker.ModifyTerms) (broker.ModifyResult, error) {
	symbol, orderID, err := splitOrderID(brokerOrderID)
	if err != nil {
		return broker.ModifyResult{}, broker.NewGatewayError("modify", brokerOrderID, err)
	}

	orig, err := g.client.NewGetOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return broker.ModifyResult{}, wrapErr("modify", brokerOrderID, err)
	}

	if _, err := g.client.NewCancelOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx); err != nil {
		return broker.ModifyResult{}, wrapErr("modify", brokerOrderID, err)
	}

	quantity := orig.OrigQuantity
	if terms.Quantity > 0 {
		quantity = strconv.Itoa(terms.Quantity)
	}
	price := orig.Price
	if terms.Price > 0 {
		price = formatPrice(terms.Price)
	}
	stopPrice := orig.StopPrice
	if terms.TriggerPrice > 0 {
		stopPrice = formatPrice(terms.TriggerPrice)
	}

	svc := g.client.NewCreateOrderService().
		Symbol(symbol).
		Side(orig.Side).
		Type(orig.Type).
		Quantity(quantity)
	if orig.Type != futures.OrderTypeMarket {
		svc = svc.TimeInForce(futures.TimeInForceTypeGTC).Price(price)
	}
	if orig.Type == futures.OrderTypeStop || orig.Type == futures.OrderTypeStopMarket {
		svc = svc.StopPrice(stopPrice)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		// Cancelled but not replaced; the caller's retry next cycle will
		// fail on the stale id and reconciliation surfaces the gap.
		return broker.ModifyResult{}, wrapErr("modify", brokerOrderID, err)
	}
	return broker.ModifyResult{
		BrokerOrderID: joinOrderID(symbol, res.OrderID),
		Raw:           rawMap(res),
	}, nil
}

func (g *Gateway) Get(ctx context.Context, brokerOrderID string) (broker.OrderSnapshot, error) {
	symbol, orderID, err := splitOrderID(brokerOrderID)
	if err != nil {
		return broker.OrderSnapshot{}, broker.NewGatewayError("get", brokerOrderID, err)
	}
	order, err := g.client.NewGetOrderService().
		Symbol(symbol).
		OrderID(orderID).
		Do(ctx)
	if err != nil {
		return broker.OrderSnapshot{}, wrapErr("get", brokerOrderID, err)
	}
	return broker.OrderSnapshot{
		Status:    mapStatus(order.Status),
		FilledQty: convert.ToInt(order.ExecutedQuantity),
		AvgPrice:  convert.ToFloat64(order.AvgPrice),
	}, nil
}

func sideType(s broker.Side) futures.SideType {
	if s == broker.SideSell {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

func triggerOr(spec broker.OrderSpec) float64 {
	if spec.TriggerPrice > 0 {
		return spec.TriggerPrice
	}
	return spec.Price
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func mapStatus(st futures.OrderStatusType) broker.OrderStatus {
	switch st {
	case futures.OrderStatusTypeNew:
		return broker.StatusOpen
	case futures.OrderStatusTypePartiallyFilled:
		return broker.StatusPartial
	case futures.OrderStatusTypeFilled:
		return broker.StatusFilled
	case futures.OrderStatusTypeCanceled, futures.OrderStatusTypeExpired:
		return broker.StatusCancelled
	case futures.OrderStatusTypeRejected:
		return broker.StatusRejected
	default:
		return broker.StatusOpen
	}
}

// Binance rejects operations on closed orders with these API codes.
const (
	codeUnknownOrder  = -2011
	codeNoSuchOrder   = -2013
	codeOrderArchived = -2026
)

func wrapErr(op, brokerOrderID string, err error) *broker.GatewayError {
	ge := broker.NewGatewayError(op, brokerOrderID, err)
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case codeUnknownOrder, codeNoSuchOrder, codeOrderArchived:
			ge.AlreadyClosed = true
		}
	}
	return ge
}

func rawMap(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
