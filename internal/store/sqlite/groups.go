package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bracket/internal/store/model"

	"gorm.io/gorm"
)

func (s *GroupStore) InsertGroup(ctx context.Context, group *model.OrderGroupModel) error {
	if group == nil {
		return errors.New("group cannot be nil")
	}
	if strings.TrimSpace(group.GroupID) == "" {
		return errors.New("group_id cannot be empty")
	}
	now := nowUnix()
	if group.CreatedAtUnix == 0 {
		group.CreatedAtUnix = now
	}
	group.UpdatedAtUnix = now
	return s.tx(ctx).Create(group).Error
}

func (s *GroupStore) SetGroupParentOrder(ctx context.Context, groupID, brokerOrderID string, status model.GroupStatus) error {
	res := s.tx(ctx).Model(&model.OrderGroupModel{}).
		Where("group_id = ?", groupID).
		Updates(map[string]any{
			"parent_order_id": brokerOrderID,
			"status":          int(status),
			"updated_at":      nowUnix(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("group %s not found", groupID)
	}
	return nil
}

func (s *GroupStore) SetGroupStatus(ctx context.Context, groupID string, status model.GroupStatus) error {
	res := s.tx(ctx).Model(&model.OrderGroupModel{}).
		Where("group_id = ?", groupID).
		Updates(map[string]any{"status": int(status), "updated_at": nowUnix()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("group %s not found", groupID)
	}
	return nil
}

// TransitionGroup applies the status change only while the current status
// is in from. RowsAffected tells us whether this writer won the race.
func (s *GroupStore) TransitionGroup(ctx context.Context, groupID string, from []model.GroupStatus, to model.GroupStatus) (bool, error) {
	res := s.tx(ctx).Model(&model.OrderGroupModel{}).
		Where("group_id = ? AND status IN ?", groupID, statusInts(from)).
		Updates(map[string]any{"status": int(to), "updated_at": nowUnix()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *GroupStore) FindGroup(ctx context.Context, groupID string) (*model.OrderGroupModel, error) {
	var group model.OrderGroupModel
	err := s.tx(ctx).Where("group_id = ?", groupID).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *GroupStore) FindGroupByParentOrder(ctx context.Context, brokerOrderID string) (*model.OrderGroupModel, error) {
	if strings.TrimSpace(brokerOrderID) == "" {
		return nil, nil
	}
	var group model.OrderGroupModel
	err := s.tx(ctx).Where("parent_order_id = ?", brokerOrderID).First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (s *GroupStore) ListGroups(ctx context.Context, statuses ...model.GroupStatus) ([]model.OrderGroupModel, error) {
	q := s.tx(ctx).Model(&model.OrderGroupModel{})
	if len(statuses) > 0 {
		ints := make([]int, 0, len(statuses))
		for _, st := range statuses {
			ints = append(ints, int(st))
		}
		q = q.Where("status IN ?", ints)
	}
	var groups []model.OrderGroupModel
	if err := q.Order("created_at DESC, id DESC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func statusInts(statuses []model.GroupStatus) []int {
	out := make([]int, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, int(st))
	}
	return out
}
