package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"coindog/internal/events"
	"coindog/internal/model"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (r *recordingNotifier) Send(_ context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.alerts)
}

func TestAlertFromEvent(t *testing.T) {
	order := &model.Order{
		Symbol:     "BTC/USDT",
		Signal:     model.SignalSell,
		ClosePrice: decimal.RequireFromString("101.5"),
		Amount:     decimal.RequireFromString("0.2"),
		Price:      decimal.RequireFromString("20.3"),
		Delta:      decimal.NewNullDecimal(decimal.RequireFromString("1.3")),
	}
	a, ok := AlertFromEvent(events.Event{Kind: events.KindOrder, Order: order})
	if !ok {
		t.Fatal("expected an alert for an order")
	}
	if a.Level != AlertInfo || a.Title != "SELL BTC/USDT" || a.Symbol != "BTC/USDT" {
		t.Fatalf("unexpected alert %+v", a)
	}
	if !strings.Contains(a.Message, "0.2 BTC/USDT @ 101.5") || !strings.Contains(a.Message, "delta 1.3") {
		t.Fatalf("unexpected message %q", a.Message)
	}

	a, ok = AlertFromEvent(events.Event{Kind: events.KindRejected,
		Rejection: &model.Rejection{Symbol: "ETH/USDT", Signal: model.SignalBuy, Reason: "no funds"}})
	if !ok || a.Level != AlertWarning || !strings.HasPrefix(a.Message, "no funds") {
		t.Fatalf("unexpected rejection alert %+v", a)
	}

	if _, ok := AlertFromEvent(events.Event{Kind: events.KindStopped}); !ok {
		t.Fatal("expected an alert when the loop stops")
	}
	for _, k := range []events.Kind{events.KindFetching, events.KindAnalyzed, events.KindPause, events.KindOrder} {
		if _, ok := AlertFromEvent(events.Event{Kind: k}); ok {
			t.Fatalf("expected no alert for %s without payload", k)
		}
	}
}

func TestDispatcherDeliversToAll(t *testing.T) {
	a := &recordingNotifier{}
	b := &recordingNotifier{err: errors.New("down")}
	d := NewDispatcher(8, nil, a, b)

	d.Notify(events.Event{Kind: events.KindFetching})
	d.Notify(events.Event{Kind: events.KindStopped})
	d.Notify(events.Event{Kind: events.KindRejected, Rejection: &model.Rejection{Symbol: "X/Y"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)

	if a.count() != 2 || b.count() != 2 {
		t.Fatalf("expected 2 alerts each, got %d and %d", a.count(), b.count())
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(1, nil, n)
	d.Notify(events.Event{Kind: events.KindStopped})
	d.Notify(events.Event{Kind: events.KindStopped})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Run(ctx)
	if n.count() != 1 {
		t.Fatalf("expected 1 alert, got %d", n.count())
	}
}

func TestWebhookNotifier(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected json content type, got %q", r.Header.Get("Content-Type"))
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	n.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "BUY BTC/USDT", Message: "m", Symbol: "BTC/USDT"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Title != "BUY BTC/USDT" || got.Level != "INFO" || got.TS != "2024-01-01T00:00:00Z" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestWebhookNotifierStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL).Send(context.Background(), Alert{}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestTelegramNotifier(t *testing.T) {
	var (
		mu     sync.Mutex
		chatID string
		text   string
		mode   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"coindog","username":"coindog_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			r.ParseForm()
			mu.Lock()
			chatID, text, mode = r.FormValue("chat_id"), r.FormValue("text"), r.FormValue("parse_mode")
			mu.Unlock()
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	n, err := NewTelegramNotifier("123:abc", 42, srv.URL+"/bot%s/%s", nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := n.Send(context.Background(), Alert{Level: AlertWarning, Title: "BUY BTC/USDT rejected", Message: "no funds (amount 0.1)"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if chatID != "42" || mode != "MarkdownV2" {
		t.Fatalf("expected chat 42 in MarkdownV2, got %q %q", chatID, mode)
	}
	if !strings.Contains(text, "⚠️") || !strings.Contains(text, `\(amount 0\.1\)`) {
		t.Fatalf("expected escaped warning text, got %q", text)
	}
}
