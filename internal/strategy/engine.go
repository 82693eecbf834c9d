// Package strategy turns an analysed candle window into trading signals.
//
// The Engine runs the trend indicator over the whole window and then lets
// the Strategy label every candle that has no signal yet. Signals are never
// overwritten, so repeated passes only label newly appended candles.
package strategy

import (
	"coindog/internal/indicator"
	"coindog/internal/model"
)

// Strategy labels candles with BUY/SELL/WAIT.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// Label assigns a signal to every unlabelled candle it is able to judge
	// and returns their indices in ascending order.
	Label(candles []model.Candle, inPosition bool) []int
}

// Result summarises one analysis pass.
type Result struct {
	Analyzed bool  // the indicator produced values
	Labelled []int // indices labelled in this pass

	// Latest is the signal of the newest candle when it was labelled in
	// this pass, SignalNone otherwise.
	Latest model.Signal
}

// Engine pairs a trend indicator with a strategy.
type Engine struct {
	indicator indicator.Indicator
	strategy  Strategy
}

// NewEngine creates an engine.
func NewEngine(ind indicator.Indicator, s Strategy) *Engine {
	return &Engine{indicator: ind, strategy: s}
}

// Name returns "<indicator>/<strategy>".
func (e *Engine) Name() string {
	return e.indicator.Name() + "/" + e.strategy.Name()
}

// Analyze annotates candles in place and labels new candles.
func (e *Engine) Analyze(candles []model.Candle, pricePrecision int32, inPosition bool) Result {
	var res Result
	res.Analyzed = e.indicator.Apply(candles, pricePrecision)
	if !res.Analyzed {
		return res
	}
	res.Labelled = e.strategy.Label(candles, inPosition)
	if n := len(res.Labelled); n > 0 && res.Labelled[n-1] == len(candles)-1 {
		res.Latest = candles[len(candles)-1].Signal
	}
	return res
}
