package oco

import (
	"context"
	"fmt"
	"time"

	"bracket/internal/broker"
	"bracket/internal/logger"
	"bracket/internal/store/model"
)

// Reconcile converges store state with live broker state after a restart.
// It re-fetches every non-terminal parent and leg order, feeds the
// snapshots through HandleOrderUpdate as synthetic events, and restarts
// trailing monitors for legs that are still working. This closes the crash
// window between a successful gateway call and a failed store write.
func (m *Manager) Reconcile(ctx context.Context) error {
	groups, err := m.store.ListGroups(ctx, model.ActiveGroupStatuses()...)
	if err != nil {
		return fmt.Errorf("list active groups: %w", err)
	}
	if len(groups) == 0 {
		return nil
	}
	logger.Infof("oco: reconciling %d active group(s)", len(groups))

	for _, group := range groups {
		legs, err := m.store.ListLegs(ctx, group.GroupID)
		if err != nil {
			logger.Errorf("oco: reconcile list legs %s: %v", group.GroupID, err)
			continue
		}
		switch {
		case group.Status == model.GroupParentPlaced && group.ParentOrderID != "":
			m.reconcileOrder(ctx, group.ParentOrderID)
		case group.Status == model.GroupChildrenPlaced && group.ParentOrderID != "" && hasUnplacedLeg(legs):
			// A crash mid child placement leaves a leg PENDING with no
			// broker order; replaying the parent fill re-runs the
			// idempotent placement and heals the missing leg.
			m.reconcileOrder(ctx, group.ParentOrderID)
		}
		for _, leg := range legs {
			if leg.Status.Terminal() || leg.BrokerOrderID == "" {
				continue
			}
			m.reconcileOrder(ctx, leg.BrokerOrderID)
		}
	}

	m.resumeMonitors(ctx)
	return nil
}

func hasUnplacedLeg(legs []model.OrderLegModel) bool {
	for _, leg := range legs {
		if leg.Status == model.LegPending && leg.BrokerOrderID == "" {
			return true
		}
	}
	return false
}

// ReconcileLoop re-runs Reconcile on a fixed cadence until ctx ends or
// the manager closes. The push stream is the primary convergence path;
// the loop catches pushes that were dropped or never delivered.
func (m *Manager) ReconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(m.opts.ReconcileInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			if err := m.Reconcile(ctx); err != nil {
				logger.Warnf("oco: periodic reconcile: %v", err)
			}
		}
	}
}

// reconcileOrder fetches one order's live status and replays it through
// the normal update path.
func (m *Manager) reconcileOrder(ctx context.Context, brokerOrderID string) {
	gctx, cancel := m.gatewayCtx(ctx)
	snap, err := m.gw.Get(gctx, brokerOrderID)
	cancel()
	if err != nil {
		logger.Warnf("oco: reconcile fetch order %s: %v", brokerOrderID, err)
		return
	}
	m.HandleOrderUpdate(ctx, broker.OrderUpdate{
		OrderID:   brokerOrderID,
		Status:    snap.Status,
		FilledQty: snap.FilledQty,
	})
}

// resumeMonitors restarts trailing monitors for placed trailing legs. The
// previous process's monitors died with it; termination remains a function
// of durable state, so restarting is always safe.
func (m *Manager) resumeMonitors(ctx context.Context) {
	groups, err := m.store.ListGroups(ctx, model.GroupChildrenPlaced)
	if err != nil {
		logger.Errorf("oco: resume monitors list groups: %v", err)
		return
	}
	for _, group := range groups {
		legs, err := m.store.ListLegs(ctx, group.GroupID)
		if err != nil {
			logger.Errorf("oco: resume monitors list legs %s: %v", group.GroupID, err)
			continue
		}
		for _, leg := range legs {
			if leg.TrailingEnabled && leg.Status == model.LegPlaced {
				m.startTrailingMonitor(leg.LegID)
			}
		}
	}
}
