package gateway

import (
	"net/http"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// SetCORS sets CORS headers for REST endpoints.
func SetCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	SetCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

// RegisterRoutes registers the WebSocket endpoint and the replay endpoints.
//
//	GET /ws?last_ts=RFC3339Nano
//	GET /api/channels
//	GET /api/missed?channel=C&from=N&to=M
func RegisterRoutes(mux *http.ServeMux, hub *Hub) {
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("ws upgrade", zap.Error(err))
			return
		}
		hub.Register(conn, r.URL.Query().Get("last_ts"))
	})

	mux.HandleFunc("GET /api/channels", func(w http.ResponseWriter, r *http.Request) {
		type channelInfo struct {
			Channel string `json:"channel"`
			Seq     int64  `json:"seq"`
		}
		channels := hub.Channels()
		out := make([]channelInfo, len(channels))
		for i, ch := range channels {
			out[i] = channelInfo{Channel: ch, Seq: hub.GetChannelSeq(ch)}
		}
		writeJSON(w, http.StatusOK, out)
	})

	mux.HandleFunc("GET /api/missed", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		channel := q.Get("channel")
		from, errFrom := strconv.ParseInt(q.Get("from"), 10, 64)
		to, errTo := strconv.ParseInt(q.Get("to"), 10, 64)
		if channel == "" || errFrom != nil || errTo != nil || from > to {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "channel, from and to are required"})
			return
		}
		envelopes := hub.GetReplayRange(channel, from, to)
		SetCORS(w)
		w.Header().Set("Content-Type", "application/json")
		w.Write(joinEnvelopes(envelopes))
	})
}

// joinEnvelopes returns the envelopes as a JSON array.
func joinEnvelopes(envelopes [][]byte) []byte {
	n := 2
	for _, e := range envelopes {
		n += len(e) + 1
	}
	buf := make([]byte, 0, n)
	buf = append(buf, '[')
	for i, e := range envelopes {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, e...)
	}
	return append(buf, ']')
}
