// Package oco orchestrates OCO (one-cancels-other) order groups with
// optional trailing stop-losses. A group is one parent entry order plus
// exit legs (targets and at most one stoploss); when the parent fills the
// legs are placed, when any leg fills its siblings are cancelled, and a
// trailing-enabled stoploss is re-priced against the live feed until it
// reaches a terminal state.
//
// The manager holds no long-lived in-memory state: every decision re-reads
// the store, so a process restart plus Reconcile converges to the same
// outcome.
package oco

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"bracket/internal/broker"
	"bracket/internal/logger"
	"bracket/internal/store"
	"bracket/internal/store/model"

	"github.com/google/uuid"
)

type Options struct {
	// PollInterval is the default trailing-monitor cadence when a leg's
	// trailing params do not set one.
	PollInterval time.Duration
	// GatewayTimeout bounds each gateway call issued from background
	// loops so a hung network call cannot stall a monitor cycle.
	GatewayTimeout time.Duration
	// ReconcileInterval is the cadence of ReconcileLoop.
	ReconcileInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.GatewayTimeout <= 0 {
		o.GatewayTimeout = 10 * time.Second
	}
	if o.ReconcileInterval <= 0 {
		o.ReconcileInterval = time.Minute
	}
	return o
}

type Manager struct {
	gw    broker.Gateway
	feed  broker.Feed
	store store.GroupStore
	opts  Options

	// Per-group serialization for the child-placement window; the durable
	// guard is still the broker_order_id column.
	lockMu     sync.Mutex
	groupLocks map[string]*sync.Mutex

	monMu    sync.Mutex
	monitors map[string]struct{}
	wg       sync.WaitGroup

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager wires the orchestrator with explicit dependencies; there are
// no package-level defaults.
func NewManager(gw broker.Gateway, feed broker.Feed, st store.GroupStore, opts Options) (*Manager, error) {
	if gw == nil {
		return nil, fmt.Errorf("oco: gateway is required")
	}
	if st == nil {
		return nil, fmt.Errorf("oco: store is required")
	}
	return &Manager{
		gw:         gw,
		feed:       feed,
		store:      st,
		opts:       opts.withDefaults(),
		groupLocks: make(map[string]*sync.Mutex),
		monitors:   make(map[string]struct{}),
		stop:       make(chan struct{}),
	}, nil
}

// Close signals every trailing monitor to stop and waits for them.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

// Wait blocks until all trailing monitors have stopped. Used by tests.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) groupLock(groupID string) *sync.Mutex {
	m.lockMu.Lock()
	defer m.lockMu.Unlock()
	mu, ok := m.groupLocks[groupID]
	if !ok {
		mu = &sync.Mutex{}
		m.groupLocks[groupID] = mu
	}
	return mu
}

func (m *Manager) gatewayCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.opts.GatewayTimeout)
}

// CreateGroup persists the group and its legs durably before any network
// call: a crash immediately after leaves a recoverable CREATED group with
// no broker orders outstanding. With PlaceParentImmediately the parent is
// placed in the same call; on placement failure the group id is still
// returned alongside the error so the caller can retry PlaceParent.
func (m *Manager) CreateGroup(ctx context.Context, req CreateGroupRequest) (string, error) {
	if err := validateCreate(req); err != nil {
		return "", err
	}

	parentJSON, err := json.Marshal(req.Parent)
	if err != nil {
		return "", fmt.Errorf("marshal parent spec: %w", err)
	}
	metaJSON, err := json.Marshal(req.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	groupID := uuid.NewString()
	group := &model.OrderGroupModel{
		GroupID:    groupID,
		ParentSpec: parentJSON,
		Status:     model.GroupCreated,
		Metadata:   metaJSON,
	}
	if err := m.store.InsertGroup(ctx, group); err != nil {
		return "", fmt.Errorf("insert group: %w", err)
	}

	for _, t := range req.Targets {
		leg, err := buildLeg(groupID, model.RoleTarget, t, req.Parent, nil)
		if err != nil {
			return "", err
		}
		if err := m.store.InsertLeg(ctx, leg); err != nil {
			return "", fmt.Errorf("insert target leg: %w", err)
		}
	}
	if req.Stoploss != nil {
		leg, err := buildLeg(groupID, model.RoleStoploss, req.Stoploss.LegRequest, req.Parent, req.Stoploss.Trailing)
		if err != nil {
			return "", err
		}
		if err := m.store.InsertLeg(ctx, leg); err != nil {
			return "", fmt.Errorf("insert stoploss leg: %w", err)
		}
	}

	logger.Infof("oco: group %s created targets=%d stoploss=%t", groupID, len(req.Targets), req.Stoploss != nil)

	if req.PlaceParentImmediately {
		if _, err := m.PlaceParent(ctx, groupID); err != nil {
			return groupID, err
		}
	}
	return groupID, nil
}

func validateCreate(req CreateGroupRequest) error {
	if req.Parent.Instrument == "" {
		return fmt.Errorf("%w: parent instrument is required", ErrInvalidRequest)
	}
	if req.Parent.Side != broker.SideBuy && req.Parent.Side != broker.SideSell {
		return fmt.Errorf("%w: parent side must be BUY or SELL", ErrInvalidRequest)
	}
	if req.Parent.Quantity <= 0 {
		return fmt.Errorf("%w: parent quantity must be positive", ErrInvalidRequest)
	}
	for i, t := range req.Targets {
		if t.Quantity <= 0 && t.Spec == nil {
			return fmt.Errorf("%w: target %d quantity must be positive", ErrInvalidRequest, i)
		}
	}
	if sl := req.Stoploss; sl != nil {
		if sl.Quantity <= 0 && sl.Spec == nil {
			return fmt.Errorf("%w: stoploss quantity must be positive", ErrInvalidRequest)
		}
		if sl.Trailing != nil && sl.Trailing.TrailAmount <= 0 {
			return fmt.Errorf("%w: trail amount must be positive", ErrInvalidRequest)
		}
	}
	return nil
}

func buildLeg(groupID string, role model.LegRole, req LegRequest, parent broker.OrderSpec, trailing *TrailingParams) (*model.OrderLegModel, error) {
	spec := req.Spec
	if spec == nil {
		s := synthesizeExitSpec(parent, role, req)
		spec = &s
	}
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, fmt.Errorf("marshal leg spec: %w", err)
	}
	leg := &model.OrderLegModel{
		LegID:      uuid.NewString(),
		GroupID:    groupID,
		Role:       role,
		Quantity:   spec.Quantity,
		LimitPrice: req.Price,
		OrderSpec:  specJSON,
		Status:     model.LegPending,
	}
	if trailing != nil {
		tJSON, err := json.Marshal(trailing)
		if err != nil {
			return nil, fmt.Errorf("marshal trailing params: %w", err)
		}
		leg.TrailingEnabled = true
		leg.TrailingParams = tJSON
	}
	return leg, nil
}

// synthesizeExitSpec derives a leg's order from the parent: exit side is
// the opposite of entry, instrument/exchange/product are inherited.
// Targets become LIMIT orders; a priced stoploss becomes a STOP_LIMIT with
// the trigger at the stop price.
func synthesizeExitSpec(parent broker.OrderSpec, role model.LegRole, req LegRequest) broker.OrderSpec {
	spec := broker.OrderSpec{
		Exchange:   parent.Exchange,
		Instrument: parent.Instrument,
		Side:       parent.Side.Opposite(),
		Quantity:   req.Quantity,
		Price:      req.Price,
		Kind:       broker.KindLimit,
		Product:    parent.Product,
	}
	if role == model.RoleStoploss && req.Price > 0 {
		spec.Kind = broker.KindStopLimit
		spec.TriggerPrice = req.Price
	}
	return spec
}

// PlaceParent places the group's entry order and persists the broker id.
// On gateway failure the group's status is left untouched and the error
// propagates; a retry may place a duplicate parent order if the first
// attempt actually reached the broker (known limitation, the gateway has
// no idempotency key).
func (m *Manager) PlaceParent(ctx context.Context, groupID string) (broker.PlaceResult, error) {
	group, err := m.store.FindGroup(ctx, groupID)
	if err != nil {
		return broker.PlaceResult{}, fmt.Errorf("find group: %w", err)
	}
	if group == nil {
		return broker.PlaceResult{}, ErrNotFound
	}
	if group.Status.Terminal() {
		return broker.PlaceResult{}, fmt.Errorf("oco: group %s already %s", groupID, group.Status)
	}

	var spec broker.OrderSpec
	if err := json.Unmarshal(group.ParentSpec, &spec); err != nil {
		return broker.PlaceResult{}, fmt.Errorf("decode parent spec: %w", err)
	}

	res, err := m.gw.Place(ctx, spec)
	if err != nil {
		return broker.PlaceResult{}, err
	}
	if err := m.store.SetGroupParentOrder(ctx, groupID, res.BrokerOrderID, model.GroupParentPlaced); err != nil {
		// Broker-side effect exists but the store write failed; Reconcile
		// picks this up on restart via the live order status.
		return res, fmt.Errorf("persist parent order: %w", err)
	}
	logger.Infof("oco: group %s parent placed order=%s", groupID, res.BrokerOrderID)
	return res, nil
}

// CancelGroup cancels every placed, non-terminal leg and, if the parent
// has not filled yet, the parent order too. Individual cancel failures are
// logged and do not abort the loop; a leg the broker reports as already
// closed keeps its last known status (the true terminal state arrives via
// the update stream or Reconcile). The group converges to GROUP_CANCELLED.
func (m *Manager) CancelGroup(ctx context.Context, groupID string) error {
	group, err := m.store.FindGroup(ctx, groupID)
	if err != nil {
		return fmt.Errorf("find group: %w", err)
	}
	if group == nil {
		return ErrNotFound
	}
	if group.Status.Terminal() {
		return nil
	}

	legs, err := m.store.ListLegs(ctx, groupID)
	if err != nil {
		return fmt.Errorf("list legs: %w", err)
	}
	for _, leg := range legs {
		if leg.Status.Terminal() {
			continue
		}
		if leg.BrokerOrderID != "" {
			if _, err := m.gw.Cancel(ctx, leg.BrokerOrderID); err != nil {
				logger.Warnf("oco: cancel leg %s order=%s failed: %v", leg.LegID, leg.BrokerOrderID, err)
				if broker.IsAlreadyClosed(err) {
					continue
				}
			}
		}
		if _, err := m.store.TransitionLeg(ctx, leg.LegID, model.ActiveLegStatuses(), model.LegCancelled, nil); err != nil {
			logger.Errorf("oco: mark leg %s cancelled failed: %v", leg.LegID, err)
		}
	}

	if group.Status == model.GroupParentPlaced && group.ParentOrderID != "" {
		if _, err := m.gw.Cancel(ctx, group.ParentOrderID); err != nil {
			logger.Warnf("oco: cancel parent order=%s failed: %v", group.ParentOrderID, err)
		}
	}

	applied, err := m.store.TransitionGroup(ctx, groupID, model.ActiveGroupStatuses(), model.GroupCancelled)
	if err != nil {
		return fmt.Errorf("set group status: %w", err)
	}
	if applied {
		logger.Infof("oco: group %s cancelled", groupID)
	}
	return nil
}
