package oco

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"bracket/internal/broker"
	"bracket/internal/store/memory"
	"bracket/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubFeed struct {
	mu    sync.Mutex
	price float64
	ok    bool
}

func (f *stubFeed) set(price float64, ok bool) {
	f.mu.Lock()
	f.price = price
	f.ok = ok
	f.mu.Unlock()
}

func (f *stubFeed) LastPrice(context.Context, string, string) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.price, f.ok, nil
}

// insertTrailingLeg seeds a placed trailing stop leg directly, as it would
// exist after the parent filled and the children were placed.
func insertTrailingLeg(t *testing.T, st *memory.GroupStore, legID string, side broker.Side, stop float64) {
	t.Helper()
	spec, err := json.Marshal(broker.OrderSpec{
		Exchange:     "NSE",
		Instrument:   "SBIN",
		Side:         side,
		Quantity:     10,
		Price:        stop,
		TriggerPrice: stop,
		Kind:         broker.KindStopLimit,
	})
	require.NoError(t, err)
	params, err := json.Marshal(TrailingParams{TrailAmount: 5, PollIntervalSeconds: 0.01})
	require.NoError(t, err)
	require.NoError(t, st.InsertLeg(context.Background(), &model.OrderLegModel{
		LegID:           legID,
		GroupID:         "g1",
		Role:            model.RoleStoploss,
		Quantity:        10,
		LimitPrice:      stop,
		OrderSpec:       spec,
		BrokerOrderID:   "S1",
		Status:          model.LegPlaced,
		TrailingEnabled: true,
		TrailingParams:  params,
	}))
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestTrailingMonitorTightensStop(t *testing.T) {
	ctx := context.Background()
	gw := new(MockGateway)
	feed := &stubFeed{}
	m, st := newTestManager(t, gw, feed)
	insertTrailingLeg(t, st, "leg-1", broker.SideSell, 95)

	feed.set(106, true)
	gw.On("Modify", mock.Anything, "S1", broker.ModifyTerms{Price: 101, TriggerPrice: 101}).
		Return(broker.ModifyResult{BrokerOrderID: "S2"}, nil).Once()

	m.startTrailingMonitor("leg-1")

	waitFor(t, func() bool {
		leg, _ := st.FindLeg(ctx, "leg-1")
		return leg.LimitPrice == 101 && leg.BrokerOrderID == "S2"
	})

	// Price keeps climbing: the replacement order is the one modified now.
	feed.set(112, true)
	gw.On("Modify", mock.Anything, "S2", broker.ModifyTerms{Price: 107, TriggerPrice: 107}).
		Return(broker.ModifyResult{BrokerOrderID: "S3"}, nil).Once()

	waitFor(t, func() bool {
		leg, _ := st.FindLeg(ctx, "leg-1")
		return leg.LimitPrice == 107
	})

	// Pullback must not loosen the stop.
	feed.set(108, true)
	time.Sleep(50 * time.Millisecond)
	leg, _ := st.FindLeg(ctx, "leg-1")
	assert.Equal(t, 107.0, leg.LimitPrice)

	_, err := st.TransitionLeg(ctx, "leg-1", model.ActiveLegStatuses(), model.LegCancelled, nil)
	require.NoError(t, err)
	m.Wait()
	gw.AssertExpectations(t)
}

func TestTrailingMonitorHoldsWithoutPrices(t *testing.T) {
	ctx := context.Background()
	gw := new(MockGateway)
	feed := &stubFeed{} // never has an observation
	m, st := newTestManager(t, gw, feed)
	insertTrailingLeg(t, st, "leg-1", broker.SideSell, 95)

	m.startTrailingMonitor("leg-1")
	time.Sleep(100 * time.Millisecond)

	leg, _ := st.FindLeg(ctx, "leg-1")
	assert.Equal(t, 95.0, leg.LimitPrice)
	gw.AssertNotCalled(t, "Modify", mock.Anything, mock.Anything, mock.Anything)

	_, err := st.TransitionLeg(ctx, "leg-1", model.ActiveLegStatuses(), model.LegCancelled, nil)
	require.NoError(t, err)
	m.Wait()
}

func TestTrailingMonitorShortDirection(t *testing.T) {
	ctx := context.Background()
	gw := new(MockGateway)
	feed := &stubFeed{}
	m, st := newTestManager(t, gw, feed)
	// BUY stop protecting a short entry; stop trails the falling price.
	insertTrailingLeg(t, st, "leg-1", broker.SideBuy, 105)

	feed.set(94, true)
	gw.On("Modify", mock.Anything, "S1", broker.ModifyTerms{Price: 99, TriggerPrice: 99}).
		Return(broker.ModifyResult{}, nil).Once()

	m.startTrailingMonitor("leg-1")

	waitFor(t, func() bool {
		leg, _ := st.FindLeg(ctx, "leg-1")
		return leg.LimitPrice == 99
	})
	// No replacement id returned: broker order id is unchanged.
	leg, _ := st.FindLeg(ctx, "leg-1")
	assert.Equal(t, "S1", leg.BrokerOrderID)

	_, err := st.TransitionLeg(ctx, "leg-1", model.ActiveLegStatuses(), model.LegCancelled, nil)
	require.NoError(t, err)
	m.Wait()
	gw.AssertExpectations(t)
}

func TestTrailingMonitorStopsOnTerminalLeg(t *testing.T) {
	ctx := context.Background()
	gw := new(MockGateway)
	feed := &stubFeed{}
	m, st := newTestManager(t, gw, feed)
	insertTrailingLeg(t, st, "leg-1", broker.SideSell, 95)
	_, err := st.TransitionLeg(ctx, "leg-1", model.ActiveLegStatuses(), model.LegFilled, nil)
	require.NoError(t, err)

	m.startTrailingMonitor("leg-1")
	m.Wait()
	gw.AssertNotCalled(t, "Modify", mock.Anything, mock.Anything, mock.Anything)
}

func TestTrailingMonitorDedup(t *testing.T) {
	gw := new(MockGateway)
	feed := &stubFeed{}
	m, st := newTestManager(t, gw, feed)
	insertTrailingLeg(t, st, "leg-1", broker.SideSell, 95)

	m.startTrailingMonitor("leg-1")
	m.startTrailingMonitor("leg-1")

	m.monMu.Lock()
	running := len(m.monitors)
	m.monMu.Unlock()
	assert.Equal(t, 1, running)

	_, err := st.TransitionLeg(context.Background(), "leg-1", model.ActiveLegStatuses(), model.LegCancelled, nil)
	require.NoError(t, err)
	m.Wait()
}
