package broadcast

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"FinFusion/internal/domain/models"
	applogger "FinFusion/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

type clientMessage struct {
	Type     string   `json:"type"`
	Channel  string   `json:"channel"`
	Channels []string `json:"channels"`
}

func (m clientMessage) channels() []string {
	out := make([]string, 0, len(m.Channels)+1)
	if ch := strings.TrimSpace(m.Channel); ch != "" {
		out = append(out, ch)
	}
	for _, ch := range m.Channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			out = append(out, ch)
		}
	}
	return out
}

// WSHandler serves GET /ws and bridges hub channels to browser clients.
type WSHandler struct {
	hub      *Hub
	defaults []string
	upgrader websocket.Upgrader
	l        *applogger.Logger

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

// NewWSHandler subscribes every new connection to defaults.
func NewWSHandler(hub *Hub, defaults []string, l *applogger.Logger) *WSHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &WSHandler{
		hub:      hub,
		defaults: defaults,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		l:     l.Named("ws"),
		conns: make(map[*wsConn]struct{}),
	}
}

func (h *WSHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", h.serve)
}

// Connections returns the number of open connections.
func (h *WSHandler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every client.
func (h *WSHandler) Close() error {
	h.mu.Lock()
	conns := make([]*wsConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.shutdown()
	}
	return nil
}

func (h *WSHandler) serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.l.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}

	wc := &wsConn{
		id:   uuid.NewString(),
		h:    h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]*Subscription),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.conns[wc] = struct{}{}
	h.mu.Unlock()
	h.l.Debug("client connected", applogger.String("conn", wc.id), applogger.Int("total", h.Connections()))

	go wc.writePump()
	wc.reply(models.Envelope{
		Type:    models.MessageConnected,
		Message: "Connected to FinFusion alerts",
		Data:    map[string]string{"connectionId": wc.id},
	})
	for _, ch := range h.defaults {
		wc.subscribe(ch)
	}

	wc.readPump()

	wc.shutdown()
	h.mu.Lock()
	delete(h.conns, wc)
	h.mu.Unlock()
	h.l.Debug("client disconnected", applogger.String("conn", wc.id))
	return nil
}

type wsConn struct {
	id   string
	h    *WSHandler
	conn *websocket.Conn
	send chan []byte

	mu   sync.Mutex
	subs map[string]*Subscription

	done     chan struct{}
	doneOnce sync.Once
}

// shutdown releases every subscription and stops the write pump.
func (c *wsConn) shutdown() {
	c.doneOnce.Do(func() {
		c.mu.Lock()
		close(c.done)
		for ch, sub := range c.subs {
			c.h.hub.Unsubscribe(sub)
			delete(c.subs, ch)
		}
		c.mu.Unlock()
		_ = c.conn.SetReadDeadline(time.Now())
	})
}

func (c *wsConn) enqueue(b []byte) {
	select {
	case <-c.done:
	case c.send <- b:
	default:
		c.h.l.Debug("client send buffer full, dropping", applogger.String("conn", c.id))
	}
}

func (c *wsConn) reply(env models.Envelope) {
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	b, err := json.Marshal(env)
	if err != nil {
		return
	}
	c.enqueue(b)
}

func (c *wsConn) subscribe(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return false
	default:
	}
	if _, ok := c.subs[channel]; ok {
		return true
	}
	sub, err := c.h.hub.Subscribe(channel, sendBufferSize)
	if err != nil {
		return false
	}
	c.subs[channel] = sub
	go func() {
		for msg := range sub.C() {
			c.enqueue(msg)
		}
	}()
	return true
}

func (c *wsConn) unsubscribe(channel string) {
	c.mu.Lock()
	sub, ok := c.subs[channel]
	delete(c.subs, channel)
	c.mu.Unlock()
	if ok {
		c.h.hub.Unsubscribe(sub)
	}
}

func (c *wsConn) handle(raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reply(models.Envelope{Type: models.MessageError, Message: "Invalid message format"})
		return
	}

	switch strings.ToUpper(msg.Type) {
	case models.MessageSubscribe:
		chs := msg.channels()
		if len(chs) == 0 {
			c.reply(models.Envelope{Type: models.MessageError, Message: "channel is required"})
			return
		}
		ok := make([]string, 0, len(chs))
		for _, ch := range chs {
			if c.subscribe(ch) {
				ok = append(ok, ch)
			}
		}
		c.reply(models.Envelope{Type: models.MessageSubscribed, Channels: ok})
	case models.MessageUnsubscribe:
		chs := msg.channels()
		for _, ch := range chs {
			c.unsubscribe(ch)
		}
		c.reply(models.Envelope{Type: models.MessageUnsubscribed, Channels: chs})
	case models.MessagePing:
		c.reply(models.Envelope{Type: models.MessagePong})
	default:
		c.reply(models.Envelope{Type: models.MessageError, Message: "Unknown message type: " + msg.Type})
	}
}

func (c *wsConn) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.h.l.Debug("unexpected close", applogger.String("conn", c.id), applogger.Error(err))
			}
			return
		}
		c.handle(raw)
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
