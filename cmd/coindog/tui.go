package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"coindog/internal/events"
	"coindog/internal/execution"
	"coindog/internal/model"
)

const maxOrderLines = 5

// eventMsg carries a watch loop event into the view.
type eventMsg events.Event

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// view is the bubbletea model of the watch status screen.
type view struct {
	symbols []string
	markets map[string]events.MarketSummary
	sched   events.SchedulerStats
	status  string
	orders  []string
	sim     *execution.Simulator
	width   int
}

func newView(sim *execution.Simulator) *view {
	return &view{markets: make(map[string]events.MarketSummary), sim: sim}
}

func (v *view) Init() tea.Cmd { return nil }

func (v *view) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			v.status = "stopping..."
			return v, tea.Quit
		}
	case tea.WindowSizeMsg:
		v.width = msg.Width
	case eventMsg:
		return v, v.apply(events.Event(msg))
	}
	return v, nil
}

func (v *view) apply(e events.Event) tea.Cmd {
	switch e.Kind {
	case events.KindInitializing:
		v.status = "loading..."
	case events.KindInitialized:
		v.status = ""
	case events.KindFetching:
		v.status = "fetching " + e.Symbol + " ..."
	case events.KindFetched:
		v.upsert(e.Market)
		v.status = "fetching " + e.Symbol + " ...done"
	case events.KindAnalyzing:
		v.status = "analyzing " + e.Symbol + " ..."
	case events.KindAnalyzed:
		v.upsert(e.Market)
		v.status = "analyzing " + e.Symbol + " ...done"
	case events.KindPause:
		if e.Scheduler != nil {
			v.sched = *e.Scheduler
		}
	case events.KindOrder:
		if e.Order != nil {
			v.pushOrder(formatOrder(*e.Order))
		}
	case events.KindRejected:
		if e.Rejection != nil {
			v.pushOrder(e.Rejection.String())
		}
	case events.KindStopped:
		v.status = "stopped"
		return tea.Quit
	}
	return nil
}

func (v *view) upsert(m *events.MarketSummary) {
	if m == nil {
		return
	}
	if _, ok := v.markets[m.Symbol]; !ok {
		v.symbols = append(v.symbols, m.Symbol)
	}
	v.markets[m.Symbol] = *m
}

func (v *view) pushOrder(line string) {
	v.orders = append(v.orders, line)
	if len(v.orders) > maxOrderLines {
		v.orders = v.orders[len(v.orders)-maxOrderLines:]
	}
}

func (v *view) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("COINDOG"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "next: %s  rpm: %.2f/%d  share: %.2f  queue: %d  requests: %d\n\n",
		v.sched.NextDelay.Round(time.Millisecond), v.sched.RPM, v.sched.Budget,
		v.sched.Share, v.sched.QueueDepth, v.sched.Requests)

	t := newTable("symbol", "first", "last", "fetched", "rpm", "rate", "position", "trend", "signal")
	for _, s := range v.symbols {
		m := v.markets[s]
		t.Row(m.Symbol, clock(m.First), clock(m.Last),
			fmt.Sprintf("%d/%d", m.Candles, m.Capacity),
			fmt.Sprintf("%.2f", m.RPM), fmt.Sprintf("%.2f", m.Rate),
			yesNo(m.Position), trend(m), signal(m.Signal))
	}
	b.WriteString(t.Render())
	b.WriteString("\n")

	if v.sim != nil {
		b.WriteString("\n")
		b.WriteString(formatBalance(v.sim.Balance()))
	}
	if len(v.orders) > 0 {
		b.WriteString("\n")
		for _, o := range v.orders {
			b.WriteString(o)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(v.status)
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q: quit"))
	return b.String()
}

func clock(ts int64) string {
	if ts == 0 {
		return "-"
	}
	return time.UnixMilli(ts).UTC().Format("01-02 15:04")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func trend(m events.MarketSummary) string {
	if m.Candles == 0 {
		return "-"
	}
	if m.Uptrend {
		return okStyle.Render("up")
	}
	return badStyle.Render("down")
}

func signal(s model.Signal) string {
	switch s {
	case model.SignalBuy:
		return okStyle.Render(string(s))
	case model.SignalSell:
		return badStyle.Render(string(s))
	case model.SignalNone:
		return "-"
	}
	return string(s)
}

func formatOrder(o model.Order) string {
	line := fmt.Sprintf("%s %s %s @ %s = %s", o.Signal, o.Symbol, o.Amount, o.ClosePrice, o.Price)
	if o.Delta.Valid {
		line += " (delta " + o.Delta.Decimal.String() + ")"
	}
	return line
}

func formatBalance(bal model.Balance) string {
	var b strings.Builder
	for _, code := range bal.Codes() {
		fmt.Fprintf(&b, "%-6s %s\n", code, bal.Get(code).Free)
	}
	return b.String()
}
