// Package store defines durable persistence for OCO groups and legs.
// Every write commits synchronously: the orchestrator must be able to
// crash at any point and resume from store contents plus live broker
// order status alone.
package store

import (
	"context"

	"bracket/internal/store/model"
)

// GroupStore is the persistence port the orchestrator drives. Find methods
// return (nil, nil) when the row does not exist.
//
// TransitionGroup and TransitionLeg are conditional single-row updates:
// the write applies only while the current status is in from, and the
// returned bool reports whether it did. This is the one concurrency
// control point two concurrent update handlers race on, so it must be
// atomic at the store layer, not read-then-write above it.
type GroupStore interface {
	InsertGroup(ctx context.Context, group *model.OrderGroupModel) error
	InsertLeg(ctx context.Context, leg *model.OrderLegModel) error

	SetGroupParentOrder(ctx context.Context, groupID, brokerOrderID string, status model.GroupStatus) error
	SetGroupStatus(ctx context.Context, groupID string, status model.GroupStatus) error
	TransitionGroup(ctx context.Context, groupID string, from []model.GroupStatus, to model.GroupStatus) (bool, error)

	SetLegOrder(ctx context.Context, legID, brokerOrderID string, status model.LegStatus, raw []byte) error
	SetLegPrice(ctx context.Context, legID string, price float64, raw []byte) error
	SetLegBrokerID(ctx context.Context, legID, brokerOrderID string) error
	SetLegRaw(ctx context.Context, legID string, raw []byte) error
	TransitionLeg(ctx context.Context, legID string, from []model.LegStatus, to model.LegStatus, raw []byte) (bool, error)

	FindGroup(ctx context.Context, groupID string) (*model.OrderGroupModel, error)
	FindGroupByParentOrder(ctx context.Context, brokerOrderID string) (*model.OrderGroupModel, error)
	FindLeg(ctx context.Context, legID string) (*model.OrderLegModel, error)
	FindLegByOrder(ctx context.Context, brokerOrderID string) (*model.OrderLegModel, error)
	ListLegs(ctx context.Context, groupID string) ([]model.OrderLegModel, error)
	ListGroups(ctx context.Context, statuses ...model.GroupStatus) ([]model.OrderGroupModel, error)

	Close() error
}
