package oco

import (
	"context"
	"encoding/json"
	"time"

	"bracket/internal/broker"
	"bracket/internal/logger"
	"bracket/internal/store/model"
)

// startTrailingMonitor launches the monitor goroutine for a trailing stop
// leg, at most one per leg. The monitor's termination condition is purely
// a function of the stored leg status, so it survives being started twice
// across restarts without leaking.
func (m *Manager) startTrailingMonitor(legID string) {
	m.monMu.Lock()
	if _, running := m.monitors[legID]; running {
		m.monMu.Unlock()
		return
	}
	m.monitors[legID] = struct{}{}
	m.monMu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer func() {
			m.monMu.Lock()
			delete(m.monitors, legID)
			m.monMu.Unlock()
		}()
		m.runTrailingMonitor(legID)
	}()
}

func (m *Manager) runTrailingMonitor(legID string) {
	ctx := context.Background()

	leg, err := m.store.FindLeg(ctx, legID)
	if err != nil || leg == nil {
		logger.Warnf("oco: trailing monitor: leg %s unavailable: %v", legID, err)
		return
	}
	if !leg.TrailingEnabled || leg.Status.Terminal() {
		return
	}
	if m.feed == nil {
		logger.Warnf("oco: trailing monitor: no price feed, leg %s not monitored", legID)
		return
	}

	var params TrailingParams
	if err := json.Unmarshal(leg.TrailingParams, &params); err != nil {
		logger.Errorf("oco: trailing monitor: decode params for leg %s: %v", legID, err)
		return
	}
	var spec broker.OrderSpec
	if err := json.Unmarshal(leg.OrderSpec, &spec); err != nil {
		logger.Errorf("oco: trailing monitor: decode spec for leg %s: %v", legID, err)
		return
	}

	// A SELL stop exits a long position; a BUY stop exits a short.
	long := spec.Side == broker.SideSell
	interval := params.pollInterval(m.opts.PollInterval)
	engine := newTrailingEngine(long, params.TrailAmount, params.TrailIsPercent, leg.LimitPrice)

	logger.Infof("oco: trailing monitor started leg=%s long=%t trail=%v interval=%s",
		legID, long, params.TrailAmount, interval)

	for {
		current, err := m.store.FindLeg(ctx, legID)
		if err != nil {
			logger.Warnf("oco: trailing monitor: read leg %s: %v", legID, err)
			if !m.sleep(interval) {
				return
			}
			continue
		}
		if current == nil || current.Status.Terminal() {
			logger.Infof("oco: trailing monitor stopped, leg %s terminal", legID)
			return
		}

		price, ok := m.lastPrice(ctx, spec.Exchange, spec.Instrument)
		if !ok {
			// No observation this cycle; the stop must not move on
			// missing data.
			if !m.sleep(interval) {
				return
			}
			continue
		}

		candidate, improved := engine.Observe(price)
		if improved {
			m.modifyStop(ctx, current, candidate, engine)
		}

		if !m.sleep(interval) {
			return
		}
	}
}

func (m *Manager) lastPrice(ctx context.Context, exchange, instrument string) (float64, bool) {
	fctx, cancel := m.gatewayCtx(ctx)
	defer cancel()
	price, ok, err := m.feed.LastPrice(fctx, exchange, instrument)
	if err != nil {
		logger.Debugf("oco: price feed %s/%s: %v", exchange, instrument, err)
		return 0, false
	}
	return price, ok
}

func (m *Manager) modifyStop(ctx context.Context, leg *model.OrderLegModel, candidate float64, engine *trailingEngine) {
	gctx, cancel := m.gatewayCtx(ctx)
	res, err := m.gw.Modify(gctx, leg.BrokerOrderID, broker.ModifyTerms{
		Price:        candidate,
		TriggerPrice: candidate,
	})
	cancel()
	if err != nil {
		// Retried next cycle; the candidate only gets better meanwhile.
		logger.Warnf("oco: modify stop leg %s failed: %v", leg.LegID, err)
		return
	}

	raw, _ := json.Marshal(res.Raw)
	if err := m.store.SetLegPrice(ctx, leg.LegID, candidate, raw); err != nil {
		logger.Errorf("oco: persist stop price for leg %s: %v", leg.LegID, err)
		return
	}
	if res.BrokerOrderID != "" && res.BrokerOrderID != leg.BrokerOrderID {
		// Cancel+replace broker: track the replacement order.
		if err := m.store.SetLegBrokerID(ctx, leg.LegID, res.BrokerOrderID); err != nil {
			logger.Errorf("oco: persist replacement order for leg %s: %v", leg.LegID, err)
			return
		}
	}
	engine.Accept(candidate)
	logger.Infof("oco: leg %s stop moved to %.4f", leg.LegID, candidate)
}

// sleep waits one poll interval; it returns false when the manager is
// shutting down.
func (m *Manager) sleep(d time.Duration) bool {
	select {
	case <-m.stop:
		return false
	case <-time.After(d):
		return true
	}
}
