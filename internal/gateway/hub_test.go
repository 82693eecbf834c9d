package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"coindog/internal/events"
	"coindog/internal/model"
)

type envelope struct {
	Channel    string          `json:"channel"`
	Data       json.RawMessage `json:"data"`
	TS         string          `json:"ts"`
	Seq        int64           `json:"seq"`
	ChannelSeq int64           `json:"channel_seq"`
	Initial    bool            `json:"initial"`
}

var hubT0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestHub() *Hub {
	h := NewHub(10, nil)
	h.now = func() time.Time { return hubT0.Add(250 * time.Millisecond) }
	return h
}

func analyzed(symbol string, close float64) events.Event {
	return events.Event{Kind: events.KindAnalyzed, Symbol: symbol, At: hubT0,
		Market: &events.MarketSummary{Symbol: symbol, Close: close, Uptrend: true}}
}

func TestBuildEnvelope(t *testing.T) {
	buf := buildEnvelope("market:BTC/USDT", []byte(`{"close":1.5}`), hubT0, 42, 7, true)
	var env envelope
	if err := json.Unmarshal(buf, &env); err != nil {
		t.Fatalf("envelope is not valid JSON: %v\nraw: %s", err, buf)
	}
	if env.Channel != "market:BTC/USDT" || env.Seq != 42 || env.ChannelSeq != 7 || !env.Initial {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if ts, err := time.Parse(time.RFC3339Nano, env.TS); err != nil || !ts.Equal(hubT0) {
		t.Fatalf("unexpected ts %q (%v)", env.TS, err)
	}
	if string(env.Data) != `{"close":1.5}` {
		t.Fatalf("unexpected data %s", env.Data)
	}
}

func TestHubRoutesEvents(t *testing.T) {
	h := newTestHub()

	h.Notify(events.Event{Kind: events.KindFetching, Symbol: "BTC/USDT"})
	h.Notify(analyzed("BTC/USDT", 100))
	h.Notify(analyzed("BTC/USDT", 101))
	h.Notify(analyzed("ETH/USDT", 10))
	h.Notify(events.Event{Kind: events.KindPause, Scheduler: &events.SchedulerStats{QueueDepth: 2}})
	h.Notify(events.Event{Kind: events.KindOrder, Order: &model.Order{ID: "SIM-1"}})
	h.Notify(events.Event{Kind: events.KindStopped})

	want := []string{ChannelOrders, "market:BTC/USDT", "market:ETH/USDT", ChannelScheduler, ChannelStatus}
	got := h.Channels()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected channels %v, got %v", want, got)
	}
	if seq := h.GetChannelSeq("market:BTC/USDT"); seq != 2 {
		t.Fatalf("expected channel seq 2, got %d", seq)
	}

	m, ok := h.Market("BTC/USDT")
	if !ok || m.Close != 101 {
		t.Fatalf("expected latest BTC close 101, got %+v", m)
	}
	if ms := h.Markets(); len(ms) != 2 || ms[0].Symbol != "BTC/USDT" {
		t.Fatalf("expected 2 sorted markets, got %+v", ms)
	}
	if st, ok := h.Scheduler(); !ok || st.QueueDepth != 2 {
		t.Fatalf("expected scheduler stats, got %+v", st)
	}

	replay := h.GetReplayRange("market:BTC/USDT", 1, 2)
	if len(replay) != 2 {
		t.Fatalf("expected 2 replayed envelopes, got %d", len(replay))
	}
	var env envelope
	json.Unmarshal(replay[1], &env)
	if env.ChannelSeq != 2 || env.Seq != 3 {
		t.Fatalf("expected channel seq 2 / global seq 3, got %+v", env)
	}

	if n := h.Latency.Count(); n != 3 {
		t.Fatalf("expected 3 latency samples, got %d", n)
	}
	if p50, _, _ := h.Latency.Percentiles(); p50 != 250 {
		t.Fatalf("expected 250ms lag, got %v", p50)
	}
}

func TestClientMatchesChannel(t *testing.T) {
	c := newClient(newTestHub(), nil)
	if !c.matchesChannel("market:BTC/USDT") || !c.matchesChannel(ChannelOrders) {
		t.Fatal("expected an unsubscribed client to receive everything")
	}
	c.handle(clientMsg{Type: "SUBSCRIBE", Symbols: []string{"ETH/USDT"}})
	if c.matchesChannel("market:BTC/USDT") {
		t.Fatal("expected BTC filtered out")
	}
	if !c.matchesChannel("market:ETH/USDT") || !c.matchesChannel(ChannelScheduler) {
		t.Fatal("expected ETH and non-market channels delivered")
	}
	c.handle(clientMsg{Type: "UNSUBSCRIBE", Symbols: []string{"ETH/USDT"}})
	if !c.matchesChannel("market:BTC/USDT") {
		t.Fatal("expected everything after unsubscribing all")
	}
}

func TestRelayForward(t *testing.T) {
	h := newTestHub()
	r := NewRelay(h, nil, "coindog:events", nil)
	r.forward(`{"kind":"analyzed","symbol":"SOL/USDT","at":"2024-01-01T00:00:00Z","market":{"symbol":"SOL/USDT","close":20}}`)
	r.forward(`not json`)

	m, ok := h.Market("SOL/USDT")
	if !ok || m.Close != 20 {
		t.Fatalf("expected relayed summary, got %+v", m)
	}
}

func TestWebSocketStream(t *testing.T) {
	h := newTestHub()
	h.Notify(analyzed("BTC/USDT", 100))

	mux := http.NewServeMux()
	RegisterRoutes(mux, h)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	read := func() envelope {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var env envelope
		if err := json.Unmarshal([]byte(strings.SplitN(string(data), "\n", 2)[0]), &env); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		return env
	}

	first := read()
	if !first.Initial || first.Channel != "market:BTC/USDT" {
		t.Fatalf("expected initial state, got %+v", first)
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	h.Notify(events.Event{Kind: events.KindOrder, Order: &model.Order{ID: "SIM-9"}})
	live := read()
	if live.Initial || live.Channel != ChannelOrders || !strings.Contains(string(live.Data), "SIM-9") {
		t.Fatalf("expected live order envelope, got %+v", live)
	}
}

func TestMissedEndpoint(t *testing.T) {
	h := newTestHub()
	for i := 0; i < 3; i++ {
		h.Notify(analyzed("BTC/USDT", float64(i)))
	}
	mux := http.NewServeMux()
	RegisterRoutes(mux, h)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/missed?channel=market:BTC/USDT&from=2&to=3", nil))
	var envs []envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envs); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	if len(envs) != 2 || envs[0].ChannelSeq != 2 {
		t.Fatalf("expected seqs 2..3, got %+v", envs)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/missed?channel=x", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
