package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"coindog/config"
	"coindog/internal/model"
)

const searchLimit = 20

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	headStyle = lipgloss.NewStyle().Bold(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers(headers...)
}

func runInfo(ctx context.Context, cfg *config.Config, log *zap.Logger, _ []string) error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.exchange.FetchStatus(ctx)
	if err != nil {
		return err
	}
	status := okStyle.Render(st.Status)
	if st.Status != "ok" {
		status = badStyle.Render(st.Status)
	}
	fmt.Printf("status:     %s (%s)\n", status, time.UnixMilli(st.Updated).Format(time.RFC3339))
	if st.Message != "" {
		fmt.Printf("message:    %s\n", st.Message)
	}

	tracked, err := a.markets.LoadMarkets()
	if err != nil {
		return err
	}
	all, err := a.exchange.LoadMarkets(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("markets:    %d\n", len(all))
	fmt.Printf("rate limit: %d requests/min (budget %d)\n", a.client.RateLimit(), cfg.Watch.Budget)
	fmt.Printf("timeframe:  %s\n", cfg.Watch.Timeframe)

	fmt.Printf("\nwatching: %d\n", len(tracked))
	t := newTable("symbol", "id", "amount prec", "price prec", "min amount", "min price")
	for _, m := range tracked {
		t.Row(m.Symbol, m.ID,
			strconv.Itoa(int(m.Precision.Amount)), strconv.Itoa(int(m.Precision.Price)),
			strconv.FormatFloat(m.Limits.Amount.Min, 'f', -1, 64),
			strconv.FormatFloat(m.Limits.Price.Min, 'f', -1, 64))
	}
	fmt.Println(t.Render())

	bal, err := a.exchange.FetchBalance(ctx)
	if errors.Is(err, model.ErrUnauthenticated) {
		fmt.Println("\nbalance: no credentials configured")
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Println()
	bt := newTable("asset", "free", "used", "total")
	for _, code := range bal.Codes() {
		as := bal.Get(code)
		bt.Row(code, as.Free.String(), as.Used.String(), as.Total.String())
	}
	fmt.Println(bt.Render())
	return nil
}

func runSearch(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: coindog search <query>")
	}
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	wd, err := a.watchdog(nil, nil)
	if err != nil {
		return err
	}
	found, err := wd.Search(ctx, args[0], searchLimit)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Printf("no markets found for: %s\n", args[0])
		return nil
	}
	t := newTable("symbol", "id", "active")
	for _, m := range found {
		active := okStyle.Render("yes")
		if !m.Active {
			active = badStyle.Render("no")
		}
		t.Row(m.Symbol, m.ID, active)
	}
	fmt.Println(t.Render())
	fmt.Println("track one with: coindog add <symbol>")
	return nil
}

func runAdd(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: coindog add <symbol>")
	}
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.markets.Ensure(); err != nil {
		return err
	}
	wd, err := a.watchdog(nil, nil)
	if err != nil {
		return err
	}
	if err := wd.Initialize(ctx); err != nil {
		return err
	}
	meta, err := wd.Track(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s saved to %s\n", meta.Symbol, a.markets.MarketsPath())
	return nil
}

func runRemove(ctx context.Context, cfg *config.Config, log *zap.Logger, args []string) error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	wd, err := a.watchdog(nil, nil)
	if err != nil {
		return err
	}
	if err := wd.Initialize(ctx); err != nil {
		return err
	}
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: coindog remove <query>; tracked:")
		for _, m := range wd.Tracked() {
			fmt.Fprintln(os.Stderr, "  "+m.Symbol)
		}
		return errors.New("missing query")
	}
	symbol, err := wd.Untrack(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s removed\n", symbol)
	return nil
}
