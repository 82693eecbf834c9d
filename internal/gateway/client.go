package gateway

import (
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Subscribed symbols; empty means every market channel.
	subMu sync.RWMutex
	subs  map[string]bool
}

// clientMsg is a message from the browser:
//
//	{"type":"SUBSCRIBE","symbols":["BTC/USDT"]}
//	{"type":"UNSUBSCRIBE","symbols":["BTC/USDT"]}
//	{"ping":1700000000000}
type clientMsg struct {
	Type    string   `json:"type"`
	Symbols []string `json:"symbols"`
	Ping    int64    `json:"ping"`
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		hub:  h,
		subs: make(map[string]bool),
	}
}

func (c *Client) sendInitialState(lastTS string) {
	var cutoff time.Time
	if lastTS != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, lastTS); err == nil {
			cutoff = parsed
		}
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	for channel, entry := range c.hub.latest {
		if !cutoff.IsZero() && !entry.TS.After(cutoff) {
			continue
		}
		if !c.matchesChannel(channel) {
			continue
		}
		select {
		case c.send <- buildEnvelope(channel, entry.Data, entry.TS, c.hub.seq, entry.Seq, true):
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Coalesce queued envelopes into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		c.hub.log.Info("ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMsg
		if sonic.Unmarshal(data, &msg) != nil {
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg clientMsg) {
	switch msg.Type {
	case "SUBSCRIBE":
		c.subMu.Lock()
		for _, s := range msg.Symbols {
			c.subs[s] = true
		}
		c.subMu.Unlock()
	case "UNSUBSCRIBE":
		c.subMu.Lock()
		for _, s := range msg.Symbols {
			delete(c.subs, s)
		}
		c.subMu.Unlock()
	default:
		if msg.Ping > 0 {
			pong, _ := sonic.Marshal(map[string]int64{
				"ping":      msg.Ping,
				"server_ts": c.hub.now().UnixMilli(),
			})
			c.trySend(pong)
		}
	}
}

// trySend queues data unless the client is gone or its buffer is full.
func (c *Client) trySend(data []byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// matchesChannel reports whether the client should receive channel.
// Non-market channels always pass.
func (c *Client) matchesChannel(channel string) bool {
	symbol, ok := marketSymbol(channel)
	if !ok {
		return true
	}
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subs) == 0 || c.subs[symbol]
}

func marketSymbol(channel string) (string, bool) {
	if len(channel) <= len(marketPrefix) || channel[:len(marketPrefix)] != marketPrefix {
		return "", false
	}
	return channel[len(marketPrefix):], true
}
