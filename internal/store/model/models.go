package model

import (
	"gorm.io/datatypes"
)

type GroupStatus int

const (
	GroupStatusUnknown        GroupStatus = 0
	GroupCreated              GroupStatus = 1
	GroupParentPlaced         GroupStatus = 2
	GroupChildrenPlaced       GroupStatus = 3
	GroupChildFilled          GroupStatus = 4
	GroupAllChildrenCancelled GroupStatus = 5
	GroupParentCancelled      GroupStatus = 6
	GroupParentRejected       GroupStatus = 7
	GroupParentFailed         GroupStatus = 8
	GroupCancelled            GroupStatus = 9
)

var groupStatusNames = map[GroupStatus]string{
	GroupStatusUnknown:        "UNKNOWN",
	GroupCreated:              "CREATED",
	GroupParentPlaced:         "PARENT_PLACED",
	GroupChildrenPlaced:       "PARENT_FILLED_CHILDREN_PLACED",
	GroupChildFilled:          "CHILD_FILLED",
	GroupAllChildrenCancelled: "ALL_CHILDREN_CANCELLED",
	GroupParentCancelled:      "PARENT_CANCELLED",
	GroupParentRejected:       "PARENT_REJECTED",
	GroupParentFailed:         "PARENT_FAILED",
	GroupCancelled:            "GROUP_CANCELLED",
}

func (s GroupStatus) String() string {
	if name, ok := groupStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Terminal reports whether the group can no longer transition.
func (s GroupStatus) Terminal() bool {
	switch s {
	case GroupChildFilled, GroupAllChildrenCancelled, GroupParentCancelled,
		GroupParentRejected, GroupParentFailed, GroupCancelled:
		return true
	}
	return false
}

// ActiveGroupStatuses is the set of non-terminal group statuses, in the
// order the state machine visits them.
func ActiveGroupStatuses() []GroupStatus {
	return []GroupStatus{GroupCreated, GroupParentPlaced, GroupChildrenPlaced}
}

type LegStatus int

const (
	LegStatusUnknown LegStatus = 0
	LegPending       LegStatus = 1
	LegPlaced        LegStatus = 2
	LegFilled        LegStatus = 3
	LegCancelled     LegStatus = 4
	LegRejected      LegStatus = 5
)

var legStatusNames = map[LegStatus]string{
	LegStatusUnknown: "UNKNOWN",
	LegPending:       "PENDING",
	LegPlaced:        "PLACED",
	LegFilled:        "FILLED",
	LegCancelled:     "CANCELLED",
	LegRejected:      "REJECTED",
}

func (s LegStatus) String() string {
	if name, ok := legStatusNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

func (s LegStatus) Terminal() bool {
	switch s {
	case LegFilled, LegCancelled, LegRejected:
		return true
	}
	return false
}

// ActiveLegStatuses is the set of non-terminal leg statuses.
func ActiveLegStatuses() []LegStatus {
	return []LegStatus{LegPending, LegPlaced}
}

type LegRole string

const (
	RoleTarget   LegRole = "TARGET"
	RoleStoploss LegRole = "STOPLOSS"
)

// OrderGroupModel is one OCO unit. Terminal rows are never deleted; they
// stay for audit.
type OrderGroupModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	GroupID       string         `gorm:"column:group_id;uniqueIndex"`
	ParentSpec    datatypes.JSON `gorm:"column:parent_spec;type:TEXT"`
	ParentOrderID string         `gorm:"column:parent_order_id;index"`
	Status        GroupStatus    `gorm:"column:status;index"`
	Metadata      datatypes.JSON `gorm:"column:metadata;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (OrderGroupModel) TableName() string { return "oco_groups" }

// OrderLegModel is one exit order belonging to a group.
type OrderLegModel struct {
	ID              int64          `gorm:"column:id;primaryKey"`
	LegID           string         `gorm:"column:leg_id;uniqueIndex"`
	GroupID         string         `gorm:"column:group_id;index"`
	Role            LegRole        `gorm:"column:role"`
	Quantity        int            `gorm:"column:quantity"`
	LimitPrice      float64        `gorm:"column:limit_price"`
	OrderSpec       datatypes.JSON `gorm:"column:order_spec;type:TEXT"`
	BrokerOrderID   string         `gorm:"column:broker_order_id;index"`
	Status          LegStatus      `gorm:"column:status;index"`
	TrailingEnabled bool           `gorm:"column:trailing_enabled"`
	TrailingParams  datatypes.JSON `gorm:"column:trailing_params;type:TEXT"`
	RawResponse     datatypes.JSON `gorm:"column:raw_response;type:TEXT"`
	CreatedAtUnix   int64          `gorm:"column:created_at"`
	UpdatedAtUnix   int64          `gorm:"column:updated_at"`
}

func (OrderLegModel) TableName() string { return "oco_legs" }
