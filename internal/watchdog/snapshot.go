package watchdog

import (
	"coindog/internal/model"
	"coindog/internal/ringbuf"
)

// mergeCandles joins a stored snapshot with the live window. Stored candles
// are kept only where they precede the live window; the live candles carry
// the latest analysis. The result obeys the window invariants.
func mergeCandles(stored, live []model.Candle, capacity int) []model.Candle {
	buf := ringbuf.New(capacity)
	if len(live) == 0 {
		buf.Add(stored...)
		return buf.Snapshot()
	}
	head := live[0].Timestamp
	for _, c := range stored {
		if c.Timestamp >= head {
			break
		}
		buf.Add(c)
	}
	buf.Add(live...)
	return buf.Snapshot()
}
