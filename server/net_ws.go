package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const (
	formatJSON    = "json"
	formatMsgpack = "msgpack"
)

// spectator 观战连接：只接收每个 Tick 的快照
type spectator struct {
	ws     *websocket.Conn
	send   chan []byte
	format string
}

func newSpectator(ws *websocket.Conn, format string) *spectator {
	return &spectator{
		ws:     ws,
		send:   make(chan []byte, 64),
		format: format,
	}
}

// enqueue 将要发送的快照压入队列（非阻塞，满则丢弃）
func (c *spectator) enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		// 观战端跟不上时丢弃，快照本身是全量的
	}
}

// writePump 独立协程，负责从 send 队列写出到 WS
func (c *spectator) writePump() {
	defer c.ws.Close()
	msgType := websocket.TextMessage
	if c.format == formatMsgpack {
		msgType = websocket.BinaryMessage
	}
	for msg := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(msgType, msg); err != nil {
			return
		}
	}
}

// readPump 只用于感知断开；观战端发来的内容被忽略
func (c *spectator) readPump(h *spectatorHub) {
	defer h.unregister(c)
	c.ws.SetReadLimit(1 << 10)
	_ = c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(60 * time.Second)) })
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

type spectatorHub struct {
	mu      deadlock.Mutex
	log     *zap.SugaredLogger
	clients map[*spectator]struct{}
}

func newSpectatorHub(log *zap.SugaredLogger) *spectatorHub {
	return &spectatorHub{log: log, clients: make(map[*spectator]struct{})}
}

func (h *spectatorHub) register(c *spectator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *spectatorHub) unregister(c *spectator) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *spectatorHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// publish 每种格式只编码一次
func (h *spectatorHub) publish(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	encoded := make(map[string][]byte, 2)
	for c := range h.clients {
		b, ok := encoded[c.format]
		if !ok {
			var err error
			b, err = encodeSnapshot(snap, c.format)
			if err != nil {
				h.log.Warnw("encode snapshot failed", "format", c.format, "err", err)
				continue
			}
			encoded[c.format] = b
		}
		c.enqueue(b)
	}
}

func (h *spectatorHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func encodeSnapshot(snap Snapshot, format string) ([]byte, error) {
	switch format {
	case formatMsgpack:
		return msgpack.Marshal(snap)
	case formatJSON:
		return json.Marshal(snap)
	default:
		return nil, errors.Errorf("unknown snapshot format %q", format)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// 局域网观战工具：允许所有来源
		return true
	},
}

// HandleSpectate WebSocket 观战：?format=json|msgpack
func (s *Server) HandleSpectate(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	switch format {
	case "":
		format = formatJSON
	case formatJSON, formatMsgpack:
	default:
		http.Error(w, "unknown format", http.StatusBadRequest)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("spectator upgrade failed", "err", err)
		return
	}
	c := newSpectator(ws, format)
	s.hub.register(c)
	s.log.Infow("spectator joined", "remote", r.RemoteAddr, "format", format)

	go c.writePump()
	go c.readPump(s.hub)
}
