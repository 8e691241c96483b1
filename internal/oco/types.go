package oco

import (
	"time"

	"bracket/internal/broker"
)

// TrailingParams configures the trailing-stop monitor for a stoploss leg.
// The JSON shape is what gets persisted on the leg row.
type TrailingParams struct {
	TrailAmount         float64 `json:"trail_amount"`
	TrailIsPercent      bool    `json:"trail_is_percent"`
	PollIntervalSeconds float64 `json:"poll_interval_seconds,omitempty"`
}

func (p TrailingParams) pollInterval(fallback time.Duration) time.Duration {
	if p.PollIntervalSeconds > 0 {
		return time.Duration(p.PollIntervalSeconds * float64(time.Second))
	}
	if fallback > 0 {
		return fallback
	}
	return time.Second
}

// LegRequest describes one exit leg. Spec may be nil, in which case the
// leg's order is synthesized from the parent: opposite side, same
// instrument/exchange/product, LIMIT at Price.
type LegRequest struct {
	Quantity int               `json:"quantity"`
	Price    float64           `json:"price,omitempty"`
	Spec     *broker.OrderSpec `json:"spec,omitempty"`
}

// StopLossRequest is a LegRequest plus optional trailing configuration.
type StopLossRequest struct {
	LegRequest
	Trailing *TrailingParams `json:"trailing,omitempty"`
}

// CreateGroupRequest carries everything CreateGroup needs. Metadata is
// stored verbatim and never interpreted.
type CreateGroupRequest struct {
	Parent                 broker.OrderSpec `json:"parent"`
	Targets                []LegRequest     `json:"targets,omitempty"`
	Stoploss               *StopLossRequest `json:"stoploss,omitempty"`
	Metadata               map[string]any   `json:"metadata,omitempty"`
	PlaceParentImmediately bool             `json:"place_parent_immediately,omitempty"`
}
