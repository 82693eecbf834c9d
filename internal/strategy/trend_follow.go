package strategy

import "coindog/internal/model"

// TrendFollow buys when the trend turns up and sells when it turns down.
//
// For each unlabelled candle from index period+1 the first matching rule wins:
//
//	prev down, cur up,   flat     -> BUY
//	prev up,   cur down, holding  -> SELL
//	cur up,    flat               -> BUY
//	cur down,  holding            -> SELL
//	otherwise                     -> WAIT
type TrendFollow struct {
	period int
}

// NewTrendFollow creates the strategy for a trend indicator with the given period.
func NewTrendFollow(period int) *TrendFollow {
	return &TrendFollow{period: period}
}

func (s *TrendFollow) Name() string { return "TREND_FOLLOW" }

// Label implements Strategy.
func (s *TrendFollow) Label(candles []model.Candle, inPosition bool) []int {
	var labelled []int
	for i := s.period + 1; i < len(candles); i++ {
		cur := &candles[i]
		if cur.Signal != model.SignalNone {
			continue
		}
		cur.Signal = Decide(candles[i-1].IsUptrend(), cur.IsUptrend(), inPosition)
		labelled = append(labelled, i)
	}
	return labelled
}

// Decide applies the signal rules to one candle transition.
func Decide(prevUp, curUp, inPosition bool) model.Signal {
	switch {
	case !prevUp && curUp && !inPosition:
		return model.SignalBuy
	case prevUp && !curUp && inPosition:
		return model.SignalSell
	case curUp && !inPosition:
		return model.SignalBuy
	case !curUp && inPosition:
		return model.SignalSell
	default:
		return model.SignalWait
	}
}
