// Package memory provides an in-memory store.GroupStore. It exists for
// tests and for running the orchestrator without durability (store.kind:
// memory); it honors the same conditional-transition contract as the
// sqlite store.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"bracket/internal/store"
	"bracket/internal/store/model"
)

type GroupStore struct {
	mu     sync.RWMutex
	groups map[string]*model.OrderGroupModel
	legs   map[string]*model.OrderLegModel
	nextID int64
}

var _ store.GroupStore = (*GroupStore)(nil)

func New() *GroupStore {
	return &GroupStore{
		groups: make(map[string]*model.OrderGroupModel),
		legs:   make(map[string]*model.OrderLegModel),
	}
}

func (s *GroupStore) Close() error { return nil }

func (s *GroupStore) InsertGroup(_ context.Context, group *model.OrderGroupModel) error {
	if group == nil {
		return errors.New("group cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.GroupID]; ok {
		return fmt.Errorf("group %s already exists", group.GroupID)
	}
	s.nextID++
	cp := *group
	cp.ID = s.nextID
	now := time.Now().Unix()
	if cp.CreatedAtUnix == 0 {
		cp.CreatedAtUnix = now
	}
	cp.UpdatedAtUnix = now
	s.groups[cp.GroupID] = &cp
	group.ID = cp.ID
	return nil
}

func (s *GroupStore) InsertLeg(_ context.Context, leg *model.OrderLegModel) error {
	if leg == nil {
		return errors.New("leg cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.legs[leg.LegID]; ok {
		return fmt.Errorf("leg %s already exists", leg.LegID)
	}
	s.nextID++
	cp := *leg
	cp.ID = s.nextID
	now := time.Now().Unix()
	if cp.CreatedAtUnix == 0 {
		cp.CreatedAtUnix = now
	}
	cp.UpdatedAtUnix = now
	s.legs[cp.LegID] = &cp
	leg.ID = cp.ID
	return nil
}

func (s *GroupStore) SetGroupParentOrder(_ context.Context, groupID, brokerOrderID string, status model.GroupStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s not found", groupID)
	}
	g.ParentOrderID = brokerOrderID
	g.Status = status
	g.UpdatedAtUnix = time.Now().Unix()
	return nil
}

func (s *GroupStore) SetGroupStatus(_ context.Context, groupID string, status model.GroupStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return fmt.Errorf("group %s not found", groupID)
	}
	g.Status = status
	g.UpdatedAtUnix = time.Now().Unix()
	return nil
}

func (s *GroupStore) TransitionGroup(_ context.Context, groupID string, from []model.GroupStatus, to model.GroupStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return false, nil
	}
	for _, st := range from {
		if g.Status == st {
			g.Status = to
			g.UpdatedAtUnix = time.Now().Unix()
			return true, nil
		}
	}
	return false, nil
}

func (s *GroupStore) SetLegOrder(_ context.Context, legID, brokerOrderID string, status model.LegStatus, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.legs[legID]
	if !ok {
		return fmt.Errorf("leg %s not found", legID)
	}
	l.BrokerOrderID = brokerOrderID
	l.Status = status
	if raw != nil {
		l.RawResponse = append([]byte(nil), raw...)
	}
	l.UpdatedAtUnix = time.Now().Unix()
	return nil
}

func (s *GroupStore) SetLegPrice(_ context.Context, legID string, price float64, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.legs[legID]
	if !ok {
		return fmt.Errorf("leg %s not found", legID)
	}
	l.LimitPrice = price
	if raw != nil {
		l.RawResponse = append([]byte(nil), raw...)
	}
	l.UpdatedAtUnix = time.Now().Unix()
	return nil
}

func (s *GroupStore) SetLegBrokerID(_ context.Context, legID, brokerOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.legs[legID]
	if !ok {
		return fmt.Errorf("leg %s not found", legID)
	}
	l.BrokerOrderID = brokerOrderID
	l.UpdatedAtUnix = time.Now().Unix()
	return nil
}

func (s *GroupStore) SetLegRaw(_ context.Context, legID string, raw []byte) error {
	if raw == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.legs[legID]
	if !ok {
		return fmt.Errorf("leg %s not found", legID)
	}
	l.RawResponse = append([]byte(nil), raw...)
	l.UpdatedAtUnix = time.Now().Unix()
	return nil
}

func (s *GroupStore) TransitionLeg(_ context.Context, legID string, from []model.LegStatus, to model.LegStatus, raw []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.legs[legID]
	if !ok {
		return false, nil
	}
	for _, st := range from {
		if l.Status == st {
			l.Status = to
			if raw != nil {
				l.RawResponse = append([]byte(nil), raw...)
			}
			l.UpdatedAtUnix = time.Now().Unix()
			return true, nil
		}
	}
	return false, nil
}

func (s *GroupStore) FindGroup(_ context.Context, groupID string) (*model.OrderGroupModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (s *GroupStore) FindGroupByParentOrder(_ context.Context, brokerOrderID string) (*model.OrderGroupModel, error) {
	if brokerOrderID == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.groups {
		if g.ParentOrderID == brokerOrderID {
			cp := *g
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *GroupStore) FindLeg(_ context.Context, legID string) (*model.OrderLegModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.legs[legID]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (s *GroupStore) FindLegByOrder(_ context.Context, brokerOrderID string) (*model.OrderLegModel, error) {
	if brokerOrderID == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.legs {
		if l.BrokerOrderID == brokerOrderID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *GroupStore) ListLegs(_ context.Context, groupID string) ([]model.OrderLegModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.OrderLegModel
	for _, l := range s.legs {
		if l.GroupID == groupID {
			out = append(out, *l)
		}
	}
	sortLegs(out)
	return out, nil
}

func (s *GroupStore) ListGroups(_ context.Context, statuses ...model.GroupStatus) ([]model.OrderGroupModel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.OrderGroupModel
	for _, g := range s.groups {
		if len(statuses) == 0 || containsGroupStatus(statuses, g.Status) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func containsGroupStatus(statuses []model.GroupStatus, st model.GroupStatus) bool {
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Insertion order matters to callers walking a group's legs.
func sortLegs(legs []model.OrderLegModel) {
	sort.Slice(legs, func(i, j int) bool { return legs[i].ID < legs[j].ID })
}
