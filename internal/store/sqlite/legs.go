package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bracket/internal/store/model"

	"gorm.io/gorm"
)

func (s *GroupStore) InsertLeg(ctx context.Context, leg *model.OrderLegModel) error {
	if leg == nil {
		return errors.New("leg cannot be nil")
	}
	if strings.TrimSpace(leg.LegID) == "" || strings.TrimSpace(leg.GroupID) == "" {
		return errors.New("leg_id and group_id cannot be empty")
	}
	now := nowUnix()
	if leg.CreatedAtUnix == 0 {
		leg.CreatedAtUnix = now
	}
	leg.UpdatedAtUnix = now
	return s.tx(ctx).Create(leg).Error
}

func (s *GroupStore) SetLegOrder(ctx context.Context, legID, brokerOrderID string, status model.LegStatus, raw []byte) error {
	updates := map[string]any{
		"broker_order_id": brokerOrderID,
		"status":          int(status),
		"updated_at":      nowUnix(),
	}
	if raw != nil {
		updates["raw_response"] = string(raw)
	}
	res := s.tx(ctx).Model(&model.OrderLegModel{}).
		Where("leg_id = ?", legID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("leg %s not found", legID)
	}
	return nil
}

func (s *GroupStore) SetLegPrice(ctx context.Context, legID string, price float64, raw []byte) error {
	updates := map[string]any{
		"limit_price": price,
		"updated_at":  nowUnix(),
	}
	if raw != nil {
		updates["raw_response"] = string(raw)
	}
	res := s.tx(ctx).Model(&model.OrderLegModel{}).
		Where("leg_id = ?", legID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("leg %s not found", legID)
	}
	return nil
}

func (s *GroupStore) SetLegBrokerID(ctx context.Context, legID, brokerOrderID string) error {
	res := s.tx(ctx).Model(&model.OrderLegModel{}).
		Where("leg_id = ?", legID).
		Updates(map[string]any{"broker_order_id": brokerOrderID, "updated_at": nowUnix()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("leg %s not found", legID)
	}
	return nil
}

// SetLegRaw records the latest broker payload for audit without touching
// the status column.
func (s *GroupStore) SetLegRaw(ctx context.Context, legID string, raw []byte) error {
	if raw == nil {
		return nil
	}
	res := s.tx(ctx).Model(&model.OrderLegModel{}).
		Where("leg_id = ?", legID).
		Updates(map[string]any{"raw_response": string(raw), "updated_at": nowUnix()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("leg %s not found", legID)
	}
	return nil
}

// TransitionLeg applies the status change only while the current status is
// in from; terminal legs therefore never move again.
func (s *GroupStore) TransitionLeg(ctx context.Context, legID string, from []model.LegStatus, to model.LegStatus, raw []byte) (bool, error) {
	ints := make([]int, 0, len(from))
	for _, st := range from {
		ints = append(ints, int(st))
	}
	updates := map[string]any{"status": int(to), "updated_at": nowUnix()}
	if raw != nil {
		updates["raw_response"] = string(raw)
	}
	res := s.tx(ctx).Model(&model.OrderLegModel{}).
		Where("leg_id = ? AND status IN ?", legID, ints).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GroupStore) FindLeg(ctx context.Context, legID string) (*model.OrderLegModel, error) {
	var leg model.OrderLegModel
	err := s.tx(ctx).Where("leg_id = ?", legID).First(&leg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &leg, nil
}

func (s *GroupStore) FindLegByOrder(ctx context.Context, brokerOrderID string) (*model.OrderLegModel, error) {
	if strings.TrimSpace(brokerOrderID) == "" {
		return nil, nil
	}
	var leg model.OrderLegModel
	err := s.tx(ctx).Where("broker_order_id = ?", brokerOrderID).First(&leg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &leg, nil
}

func (s *GroupStore) ListLegs(ctx context.Context, groupID string) ([]model.OrderLegModel, error) {
	var legs []model.OrderLegModel
	if err := s.tx(ctx).Where("group_id = ?", groupID).Order("id ASC").Find(&legs).Error; err != nil {
		return nil, err
	}
	return legs, nil
}
