package oco

import (
	"context"
	"encoding/json"
	"fmt"

	"bracket/internal/broker"
	"bracket/internal/logger"
	"bracket/internal/store/model"
)

// HandleOrderUpdate is the single entry point for asynchronous order
// events. It is driven by the dispatcher with no synchronous caller to
// report to, so it never lets an error escape: failures are logged and the
// event stream (or Reconcile) converges state later. Duplicate delivery is
// tolerated; events for unknown orders are ignored.
func (m *Manager) HandleOrderUpdate(ctx context.Context, upd broker.OrderUpdate) {
	if upd.OrderID == "" {
		return
	}

	group, err := m.store.FindGroupByParentOrder(ctx, upd.OrderID)
	if err != nil {
		logger.Errorf("oco: lookup parent order %s: %v", upd.OrderID, err)
		return
	}
	if group != nil {
		m.handleParentUpdate(ctx, group, upd)
		return
	}

	leg, err := m.store.FindLegByOrder(ctx, upd.OrderID)
	if err != nil {
		logger.Errorf("oco: lookup leg order %s: %v", upd.OrderID, err)
		return
	}
	if leg != nil {
		m.handleLegUpdate(ctx, leg, upd)
		return
	}

	logger.Debugf("oco: ignoring update for unknown order %s", upd.OrderID)
}

func (m *Manager) handleParentUpdate(ctx context.Context, group *model.OrderGroupModel, upd broker.OrderUpdate) {
	if group.Status.Terminal() {
		return
	}

	switch upd.Status {
	case broker.StatusCancelled:
		m.finishParent(ctx, group.GroupID, model.GroupParentCancelled)
		return
	case broker.StatusRejected:
		m.finishParent(ctx, group.GroupID, model.GroupParentRejected)
		return
	}

	filled := upd.FilledQty
	if filled == 0 && upd.Status == broker.StatusFilled {
		// Ambiguous push: a fill with no quantity. Confirm with the broker
		// before acting on it.
		gctx, cancel := m.gatewayCtx(ctx)
		snap, err := m.gw.Get(gctx, group.ParentOrderID)
		cancel()
		if err != nil {
			logger.Warnf("oco: confirm parent order %s failed: %v", group.ParentOrderID, err)
			return
		}
		filled = snap.FilledQty
	}
	if filled <= 0 {
		return
	}
	m.placeChildren(ctx, group)
}

func (m *Manager) finishParent(ctx context.Context, groupID string, to model.GroupStatus) {
	applied, err := m.store.TransitionGroup(ctx, groupID, model.ActiveGroupStatuses(), to)
	if err != nil {
		logger.Errorf("oco: group %s -> %s failed: %v", groupID, to, err)
		return
	}
	if applied {
		logger.Infof("oco: group %s parent terminal, status=%s", groupID, to)
	}
}

// placeChildren places every leg that has no broker order yet. The
// broker_order_id column gates re-placement across events; the per-group
// mutex serializes concurrent handlers in this process so two of them
// cannot both pass the gate between the read and the gateway call.
func (m *Manager) placeChildren(ctx context.Context, group *model.OrderGroupModel) {
	mu := m.groupLock(group.GroupID)
	mu.Lock()
	defer mu.Unlock()

	legs, err := m.store.ListLegs(ctx, group.GroupID)
	if err != nil {
		logger.Errorf("oco: list legs for group %s: %v", group.GroupID, err)
		return
	}

	for _, leg := range legs {
		if leg.BrokerOrderID != "" || leg.Status != model.LegPending {
			continue
		}
		var spec broker.OrderSpec
		if err := json.Unmarshal(leg.OrderSpec, &spec); err != nil {
			logger.Errorf("oco: decode spec for leg %s: %v", leg.LegID, err)
			continue
		}
		gctx, cancel := m.gatewayCtx(ctx)
		res, err := m.gw.Place(gctx, spec)
		cancel()
		if err != nil {
			logger.Errorf("oco: place leg %s failed: %v", leg.LegID, err)
			continue
		}
		raw, _ := json.Marshal(res.Raw)
		if err := m.store.SetLegOrder(ctx, leg.LegID, res.BrokerOrderID, model.LegPlaced, raw); err != nil {
			logger.Errorf("oco: persist leg %s order failed: %v", leg.LegID, err)
			continue
		}
		logger.Infof("oco: leg %s placed role=%s order=%s", leg.LegID, leg.Role, res.BrokerOrderID)
		if leg.TrailingEnabled {
			m.startTrailingMonitor(leg.LegID)
		}
	}

	applied, err := m.store.TransitionGroup(ctx, group.GroupID, model.ActiveGroupStatuses(), model.GroupChildrenPlaced)
	if err != nil {
		logger.Errorf("oco: group %s -> children placed failed: %v", group.GroupID, err)
		return
	}
	if applied {
		logger.Infof("oco: group %s children placed", group.GroupID)
	}
}

func (m *Manager) handleLegUpdate(ctx context.Context, leg *model.OrderLegModel, upd broker.OrderUpdate) {
	raw, _ := json.Marshal(upd)

	switch upd.Status {
	case broker.StatusFilled:
		m.handleLegFill(ctx, leg, raw)
	case broker.StatusCancelled:
		m.handleLegClosed(ctx, leg, model.LegCancelled, raw)
	case broker.StatusRejected:
		m.handleLegClosed(ctx, leg, model.LegRejected, raw)
	default:
		// OPEN/PARTIAL: audit only, no transition.
		if err := m.store.SetLegRaw(ctx, leg.LegID, raw); err != nil {
			logger.Warnf("oco: record update for leg %s: %v", leg.LegID, err)
		}
	}
}

// handleLegFill claims the fill with a conditional transition; only the
// winner runs sibling cancellation, which makes duplicate fill delivery a
// no-op.
func (m *Manager) handleLegFill(ctx context.Context, leg *model.OrderLegModel, raw []byte) {
	claimed, err := m.store.TransitionLeg(ctx, leg.LegID, model.ActiveLegStatuses(), model.LegFilled, raw)
	if err != nil {
		logger.Errorf("oco: mark leg %s filled failed: %v", leg.LegID, err)
		return
	}
	if !claimed {
		logger.Debugf("oco: leg %s fill already handled", leg.LegID)
		return
	}
	logger.Infof("oco: leg %s filled, cancelling siblings", leg.LegID)

	if err := m.cancelSiblings(ctx, leg.GroupID, leg.LegID); err != nil {
		logger.Errorf("oco: cancel siblings of leg %s: %v", leg.LegID, err)
	}

	if _, err := m.store.TransitionGroup(ctx, leg.GroupID, model.ActiveGroupStatuses(), model.GroupChildFilled); err != nil {
		logger.Errorf("oco: group %s -> child filled failed: %v", leg.GroupID, err)
	}
}

func (m *Manager) cancelSiblings(ctx context.Context, groupID, filledLegID string) error {
	legs, err := m.store.ListLegs(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list legs: %w", err)
	}
	for _, sib := range legs {
		if sib.LegID == filledLegID || sib.Status.Terminal() || sib.BrokerOrderID == "" {
			continue
		}
		gctx, cancel := m.gatewayCtx(ctx)
		_, err := m.gw.Cancel(gctx, sib.BrokerOrderID)
		cancel()
		if err != nil {
			// Tolerated: the sibling may already be closed broker-side.
			logger.Warnf("oco: cancel sibling %s order=%s failed: %v", sib.LegID, sib.BrokerOrderID, err)
		}
		if _, err := m.store.TransitionLeg(ctx, sib.LegID, model.ActiveLegStatuses(), model.LegCancelled, nil); err != nil {
			logger.Errorf("oco: mark sibling %s cancelled failed: %v", sib.LegID, err)
		}
	}
	return nil
}

// handleLegClosed records a terminal non-fill status and, once every leg
// of the group is terminal without a fill, closes the group.
func (m *Manager) handleLegClosed(ctx context.Context, leg *model.OrderLegModel, to model.LegStatus, raw []byte) {
	applied, err := m.store.TransitionLeg(ctx, leg.LegID, model.ActiveLegStatuses(), to, raw)
	if err != nil {
		logger.Errorf("oco: mark leg %s %s failed: %v", leg.LegID, to, err)
		return
	}
	if !applied {
		// Already terminal; keep the payload for audit.
		if err := m.store.SetLegRaw(ctx, leg.LegID, raw); err != nil {
			logger.Warnf("oco: record update for leg %s: %v", leg.LegID, err)
		}
		return
	}

	legs, err := m.store.ListLegs(ctx, leg.GroupID)
	if err != nil {
		logger.Errorf("oco: list legs for group %s: %v", leg.GroupID, err)
		return
	}
	for _, l := range legs {
		if l.Status == model.LegFilled || !l.Status.Terminal() {
			return
		}
	}
	if _, err := m.store.TransitionGroup(ctx, leg.GroupID, model.ActiveGroupStatuses(), model.GroupAllChildrenCancelled); err != nil {
		logger.Errorf("oco: group %s -> all children cancelled failed: %v", leg.GroupID, err)
	}
}
