package watchdog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"

	"coindog/internal/model"
)

// ErrNoMatch is returned when a query matches no tracked market.
var ErrNoMatch = errors.New("watchdog: no matching market")

// Track adds symbol to the tracked markets and rewrites the market list.
// Tracking an already tracked symbol is a no-op. Not safe to call while Run
// is active.
func (w *Watchdog) Track(ctx context.Context, symbol string) (model.MarketMeta, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if m, ok := w.registry.get(symbol); ok {
		return m.MarketMeta, nil
	}

	all, err := w.exchange.LoadMarkets(ctx)
	if err != nil {
		return model.MarketMeta{}, fmt.Errorf("load exchange markets: %w", err)
	}
	meta, ok := all[symbol]
	if !ok {
		return model.MarketMeta{}, fmt.Errorf("%w: %s", model.ErrUnknownSymbol, symbol)
	}

	w.registry.add(meta, w.cfg.Capacity)
	if err := w.markets.SaveMarkets(w.registry.metas()); err != nil {
		w.registry.remove(symbol)
		return model.MarketMeta{}, fmt.Errorf("save market list: %w", err)
	}
	w.log.Info("tracking market", zap.String("symbol", symbol))
	return meta, nil
}

// Untrack removes the tracked market best matching query (fuzzy, case
// insensitive) and rewrites the market list. Returns the removed symbol.
// Not safe to call while Run is active.
func (w *Watchdog) Untrack(query string) (string, error) {
	ranked := rank(query, w.registry.symbols())
	if len(ranked) == 0 {
		return "", fmt.Errorf("%w: %q", ErrNoMatch, query)
	}
	symbol := ranked[0]

	m, _ := w.registry.get(symbol)
	meta := m.MarketMeta
	w.registry.remove(symbol)
	w.queue.remove(symbol)
	if err := w.markets.SaveMarkets(w.registry.metas()); err != nil {
		w.registry.add(meta, w.cfg.Capacity)
		return "", fmt.Errorf("save market list: %w", err)
	}
	w.log.Info("untracked market", zap.String("symbol", symbol))
	return symbol, nil
}

// Search ranks the exchange's markets against query, best first, returning
// at most limit results (all when limit <= 0).
func (w *Watchdog) Search(ctx context.Context, query string, limit int) ([]model.MarketMeta, error) {
	all, err := w.exchange.LoadMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load exchange markets: %w", err)
	}
	symbols := make([]string, 0, len(all))
	for s := range all {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	ranked := rank(query, symbols)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]model.MarketMeta, len(ranked))
	for i, s := range ranked {
		out[i] = all[s]
	}
	return out, nil
}

// Tracked returns the descriptors of all tracked markets in list order.
func (w *Watchdog) Tracked() []model.MarketMeta {
	return w.registry.metas()
}

// rank returns the targets fuzzily matching query, closest first. Ties keep
// the input order.
func rank(query string, targets []string) []string {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	ranks := fuzzy.RankFindNormalizedFold(query, targets)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})
	out := make([]string, len(ranks))
	for i, r := range ranks {
		out[i] = r.Target
	}
	return out
}
