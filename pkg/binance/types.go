package binance

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"coindog/internal/model"
)

type exchangeInfo struct {
	RateLimits []struct {
		RateLimitType string `json:"rateLimitType"`
		Interval      string `json:"interval"`
		IntervalNum   int    `json:"intervalNum"`
		Limit         int    `json:"limit"`
	} `json:"rateLimits"`
	Symbols []symbolInfo `json:"symbols"`
}

// requestWeightPerMinute returns the REQUEST_WEIGHT limit scaled to one minute.
func (i *exchangeInfo) requestWeightPerMinute() int {
	for _, rl := range i.RateLimits {
		if rl.RateLimitType != "REQUEST_WEIGHT" || rl.IntervalNum <= 0 {
			continue
		}
		switch rl.Interval {
		case "SECOND":
			return rl.Limit * 60 / rl.IntervalNum
		case "MINUTE":
			return rl.Limit / rl.IntervalNum
		}
	}
	return 0
}

type symbolInfo struct {
	Symbol     string                   `json:"symbol"`
	Status     string                   `json:"status"`
	BaseAsset  string                   `json:"baseAsset"`
	QuoteAsset string                   `json:"quoteAsset"`
	Filters    []map[string]interface{} `json:"filters"`
}

func (s *symbolInfo) meta() (model.MarketMeta, error) {
	m := model.MarketMeta{
		Symbol: model.UnifiedSymbol(s.BaseAsset, s.QuoteAsset),
		ID:     s.Symbol,
		Base:   strings.ToUpper(s.BaseAsset),
		Quote:  strings.ToUpper(s.QuoteAsset),
		Active: s.Status == "TRADING",
	}
	for _, f := range s.Filters {
		var err error
		switch f["filterType"] {
		case "LOT_SIZE":
			m.Precision.Amount, err = stepDecimals(str(f["stepSize"]))
			if err == nil {
				m.Limits.Amount, err = minMax(f["minQty"], f["maxQty"])
			}
		case "PRICE_FILTER":
			m.Precision.Price, err = stepDecimals(str(f["tickSize"]))
			if err == nil {
				m.Limits.Price, err = minMax(f["minPrice"], f["maxPrice"])
			}
		case "NOTIONAL":
			m.Limits.Cost, err = minMax(f["minNotional"], f["maxNotional"])
		case "MIN_NOTIONAL":
			m.Limits.Cost, err = minMax(f["minNotional"], nil)
		}
		if err != nil {
			return model.MarketMeta{}, errors.Wrapf(err, "filter %v", f["filterType"])
		}
	}
	return m, nil
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

// stepDecimals converts a step such as "0.00100000" to 3 decimal places.
func stepDecimals(step string) (int32, error) {
	if step == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(step)
	if err != nil {
		return 0, errors.Wrapf(err, "step %q", step)
	}
	if !d.IsPositive() {
		return 0, nil
	}
	if i := strings.IndexByte(step, '.'); i >= 0 {
		frac := strings.TrimRight(step[i+1:], "0")
		return int32(len(frac)), nil
	}
	return 0, nil
}

func minMax(lo, hi interface{}) (model.MinMax, error) {
	var (
		mm  model.MinMax
		err error
	)
	if s := str(lo); s != "" {
		if mm.Min, err = strconv.ParseFloat(s, 64); err != nil {
			return mm, err
		}
	}
	if s := str(hi); s != "" {
		if mm.Max, err = strconv.ParseFloat(s, 64); err != nil {
			return mm, err
		}
	}
	return mm, nil
}

type account struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

func (a *account) balance() (model.Balance, error) {
	bal := make(model.Balance)
	for _, b := range a.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			return nil, errors.Wrapf(err, "free %s", b.Asset)
		}
		used, err := decimal.NewFromString(b.Locked)
		if err != nil {
			return nil, errors.Wrapf(err, "locked %s", b.Asset)
		}
		total := free.Add(used)
		if total.IsZero() {
			continue
		}
		bal[b.Asset] = model.Asset{Free: free, Used: used, Total: total}
	}
	return bal, nil
}

// parseKline converts [openTime, "open", "high", "low", "close", "volume", ...].
func parseKline(k []interface{}) (model.OHLCV, error) {
	var row model.OHLCV
	if len(k) < 6 {
		return row, errors.Errorf("expected at least 6 fields, got %d", len(k))
	}
	ts, ok := k[0].(float64)
	if !ok {
		return row, errors.Errorf("open time %v is not a number", k[0])
	}
	row[0] = ts
	for i := 1; i <= 5; i++ {
		v, err := strconv.ParseFloat(str(k[i]), 64)
		if err != nil {
			return row, errors.Wrapf(err, "field %d", i)
		}
		row[i] = v
	}
	return row, nil
}
