package apihttp

import (
	"encoding/json"

	"bracket/internal/store/model"
)

type groupView struct {
	GroupID       string          `json:"group_id"`
	Status        string          `json:"status"`
	ParentSpec    json.RawMessage `json:"parent_spec,omitempty"`
	ParentOrderID string          `json:"parent_order_id,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     int64           `json:"created_at"`
	UpdatedAt     int64           `json:"updated_at"`
}

type legView struct {
	LegID           string          `json:"leg_id"`
	GroupID         string          `json:"group_id"`
	Role            string          `json:"role"`
	Status          string          `json:"status"`
	Quantity        int             `json:"quantity"`
	LimitPrice      float64         `json:"limit_price"`
	OrderSpec       json.RawMessage `json:"order_spec,omitempty"`
	BrokerOrderID   string          `json:"broker_order_id,omitempty"`
	TrailingEnabled bool            `json:"trailing_enabled"`
	TrailingParams  json.RawMessage `json:"trailing_params,omitempty"`
	UpdatedAt       int64           `json:"updated_at"`
}

func buildGroupView(g *model.OrderGroupModel) groupView {
	return groupView{
		GroupID:       g.GroupID,
		Status:        g.Status.String(),
		ParentSpec:    json.RawMessage(g.ParentSpec),
		ParentOrderID: g.ParentOrderID,
		Metadata:      json.RawMessage(g.Metadata),
		CreatedAt:     g.CreatedAtUnix,
		UpdatedAt:     g.UpdatedAtUnix,
	}
}

func buildLegViews(legs []model.OrderLegModel) []legView {
	out := make([]legView, 0, len(legs))
	for _, leg := range legs {
		out = append(out, legView{
			LegID:           leg.LegID,
			GroupID:         leg.GroupID,
			Role:            string(leg.Role),
			Status:          leg.Status.String(),
			Quantity:        leg.Quantity,
			LimitPrice:      leg.LimitPrice,
			OrderSpec:       json.RawMessage(leg.OrderSpec),
			BrokerOrderID:   leg.BrokerOrderID,
			TrailingEnabled: leg.TrailingEnabled,
			TrailingParams:  json.RawMessage(leg.TrailingParams),
			UpdatedAt:       leg.UpdatedAtUnix,
		})
	}
	return out
}
