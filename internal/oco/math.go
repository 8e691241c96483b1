package oco

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	decHundred = decimal.NewFromInt(100)
	decEps     = decimal.NewFromFloat(1e-8)
)

func decFromFloat(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

func decToFloat(v decimal.Decimal) float64 {
	f, _ := v.Float64()
	return f
}

// trailingEngine tracks the running extreme of observed prices for one
// stop leg and proposes tighter stop prices. For a long-position exit
// (SELL stop) the extreme is the maximum and the stop only ever moves up;
// for a short-position exit (BUY stop) the extreme is the minimum and the
// stop only ever moves down.
type trailingEngine struct {
	long      bool
	trail     decimal.Decimal
	isPercent bool

	best    decimal.Decimal
	seeded  bool
	current decimal.Decimal
}

func newTrailingEngine(long bool, trailAmount float64, isPercent bool, currentStop float64) *trailingEngine {
	return &trailingEngine{
		long:      long,
		trail:     decFromFloat(trailAmount),
		isPercent: isPercent,
		current:   decFromFloat(currentStop),
	}
}

// Observe folds one price into the running extreme and returns the
// candidate stop plus whether it strictly improves protection. The first
// observation seeds the extreme directly. Callers must confirm the broker
// accepted the new price via Accept before the engine treats it as current.
func (e *trailingEngine) Observe(price float64) (float64, bool) {
	p := decFromFloat(price)
	if !e.seeded {
		e.best = p
		e.seeded = true
	} else if e.long {
		if p.GreaterThan(e.best) {
			e.best = p
		}
	} else {
		if p.LessThan(e.best) {
			e.best = p
		}
	}

	delta := e.trail
	if e.isPercent {
		delta = e.best.Mul(e.trail).Div(decHundred)
	}
	var candidate decimal.Decimal
	if e.long {
		candidate = e.best.Sub(delta)
	} else {
		candidate = e.best.Add(delta)
	}

	var improved bool
	if e.long {
		improved = candidate.Cmp(e.current.Add(decEps)) > 0
	} else {
		improved = candidate.Cmp(e.current.Sub(decEps)) < 0
	}
	return decToFloat(candidate), improved
}

// Accept records a broker-confirmed stop price as the new current stop.
func (e *trailingEngine) Accept(price float64) {
	e.current = decFromFloat(price)
}

// Current returns the last accepted stop price.
func (e *trailingEngine) Current() float64 {
	return decToFloat(e.current)
}
