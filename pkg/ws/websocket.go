package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Outbound message buffer per connection.
	sendBufferSize = 256
)

type Connectioner interface {
	SendMessage(message []byte) error
	Close() error
}

type Connection struct {
	conn      *websocket.Conn
	send      chan []byte
	logger    *logrus.Logger
	closeOnce sync.Once
	closed    chan struct{}
}

func newConnection(conn *websocket.Conn, logger *logrus.Logger) *Connection {
	return &Connection{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
		closed: make(chan struct{}),
	}
}

// SendMessage queues a message for delivery. Slow consumers whose buffer is
// full get the message dropped rather than blocking the caller.
func (c *Connection) SendMessage(message []byte) error {
	select {
	case <-c.closed:
		return websocket.ErrCloseSent
	case c.send <- message:
		return nil
	default:
		c.logger.Warn("websocket send buffer full, dropping message")
		return nil
	}
}

func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()
	for {
		select {
		case <-c.closed:
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// readPump drains inbound frames so that control messages are processed.
// Clients only listen on this socket; payloads they send are discarded.
func (c *Connection) readPump(onClose func()) {
	defer func() {
		onClose()
		_ = c.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

type HubOptions struct {
	Logger       *logrus.Logger
	CheckOrigin  func(r *http.Request) bool
	OnConnect    func(r *http.Request, hub *Hub, conn *Connection) error
	OnDisconnect func(conn *Connection)
}

type Huber interface {
	http.Handler
	JoinChannel(channel string, conn *Connection)
	LeaveChannel(channel string, conn *Connection)
	ConnectionsInChannel(channel string) []*Connection
	ConnectionsAll() []*Connection
	BroadcastToChannel(channel string, message []byte)
	BroadcastToAll(message []byte)
}

type Hub struct {
	upgrader     websocket.Upgrader
	logger       *logrus.Logger
	onConnect    func(r *http.Request, hub *Hub, conn *Connection) error
	onDisconnect func(conn *Connection)

	mu          sync.RWMutex
	connections map[*Connection]struct{}
	channels    map[string]map[*Connection]struct{}
}

func NewHub(opts *HubOptions) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger:       logger,
		onConnect:    opts.OnConnect,
		onDisconnect: opts.OnDisconnect,
		connections:  make(map[*Connection]struct{}),
		channels:     make(map[string]map[*Connection]struct{}),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("failed to upgrade websocket connection")
		return
	}
	conn := newConnection(wsConn, h.logger)

	h.mu.Lock()
	h.connections[conn] = struct{}{}
	h.mu.Unlock()

	if h.onConnect != nil {
		if err := h.onConnect(r, h, conn); err != nil {
			h.logger.WithError(err).Error("websocket connect hook failed")
			h.remove(conn)
			_ = conn.Close()
			return
		}
	}

	go conn.writePump()
	go conn.readPump(func() {
		h.remove(conn)
		if h.onDisconnect != nil {
			h.onDisconnect(conn)
		}
	})
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, conn)
	for channel, conns := range h.channels {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) JoinChannel(channel string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Connection]struct{})
	}
	h.channels[channel][conn] = struct{}{}
}

func (h *Hub) LeaveChannel(channel string, conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.channels[channel]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) ConnectionsInChannel(channel string) []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Connection, 0, len(h.channels[channel]))
	for conn := range h.channels[channel] {
		conns = append(conns, conn)
	}
	return conns
}

func (h *Hub) ConnectionsAll() []*Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := make([]*Connection, 0, len(h.connections))
	for conn := range h.connections {
		conns = append(conns, conn)
	}
	return conns
}

func (h *Hub) BroadcastToChannel(channel string, message []byte) {
	for _, conn := range h.ConnectionsInChannel(channel) {
		if err := conn.SendMessage(message); err != nil {
			h.logger.WithError(err).Warn("failed to send websocket message")
		}
	}
}

func (h *Hub) BroadcastToAll(message []byte) {
	for _, conn := range h.ConnectionsAll() {
		if err := conn.SendMessage(message); err != nil {
			h.logger.WithError(err).Warn("failed to send websocket message")
		}
	}
}
