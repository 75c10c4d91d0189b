package notify

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var _ Transport = (*Hub)(nil)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Hub accepts websocket viewers and owns their connections. It registers each
// connection in a Registry and serves as the Transport that pushes messages
// to them.
//
// Connection ids are "<instance>.<uuid>", so any replica sharing the registry
// can tell which Hub holds a connection. Messages for another instance's
// connections go through the Relay, if one is set.
type Hub struct {
	registry Registry
	upgrader websocket.Upgrader
	instance string
	relay    Relay

	mu    sync.RWMutex
	conns map[string]*hubConn
}

type hubConn struct {
	ws     *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// Relay forwards a message to the instance holding connID. It returns
// ErrGone when that instance is no longer running.
type Relay interface {
	Forward(ctx context.Context, connID string, data []byte) error
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithInstance sets the id this Hub prefixes its connection ids with. It
// must not contain a dot. The default is a random uuid.
func WithInstance(id string) HubOption {
	return func(h *Hub) {
		if id != "" {
			h.instance = id
		}
	}
}

// WithRelay forwards messages for other instances' connections through r.
func WithRelay(r Relay) HubOption {
	return func(h *Hub) { h.relay = r }
}

// NewHub creates a Hub registering connections in registry. checkOrigin may
// be nil to accept any origin.
func NewHub(registry Registry, checkOrigin func(*http.Request) bool, opts ...HubOption) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	h := &Hub{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		instance: uuid.NewString(),
		conns:    make(map[string]*hubConn),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Instance returns the id of this Hub's instance.
func (h *Hub) Instance() string { return h.instance }

// OwnerOf returns the instance part of a connection id.
func OwnerOf(connID string) (string, bool) {
	owner, rest, ok := strings.Cut(connID, ".")
	if !ok || owner == "" || rest == "" {
		return "", false
	}
	return owner, true
}

// ServeHTTP upgrades the request and holds the connection until the client
// goes away or the request context is cancelled.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lg := zctx.From(ctx)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		lg.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}

	id := h.instance + "." + uuid.NewString()
	c := &hubConn{ws: ws}
	h.mu.Lock()
	h.conns[id] = c
	h.mu.Unlock()

	lg = lg.With(zap.String("conn_id", id))
	if err := h.registry.Add(ctx, id); err != nil {
		lg.Error("Register connection", zap.Error(err))
	}
	lg.Info("Viewer connected")

	defer func() {
		h.drop(id)
		// The request context may already be done.
		rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := h.registry.Remove(rmCtx, id); err != nil {
			lg.Error("Deregister connection", zap.Error(err))
		}
		lg.Info("Viewer disconnected")
	}()

	done := make(chan struct{})
	go h.keepalive(ctx, id, c, done)
	h.readLoop(ctx, id, c)
	close(done)
}

// readLoop discards client messages; it exists to process control frames and
// detect disconnects.
func (h *Hub) readLoop(ctx context.Context, id string, c *hubConn) {
	c.ws.SetReadLimit(4096)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		// Refresh the registration so TTL-based registries keep it.
		_ = h.registry.Add(ctx, id)
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.NextReader(); err != nil {
			return
		}
	}
}

func (h *Hub) keepalive(ctx context.Context, id string, c *hubConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			h.drop(id)
			return
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				h.drop(id)
				return
			}
		}
	}
}

// Post writes data as a text frame to connID. Connections of other
// instances are forwarded through the Relay; without one Post returns
// ErrNotLocal. ErrGone means the connection is closed: this Hub owns it and
// no longer holds it, the owning instance is gone, or the id is malformed.
func (h *Hub) Post(ctx context.Context, connID string, data []byte) error {
	owner, ok := OwnerOf(connID)
	if !ok {
		return ErrGone
	}
	if owner != h.instance {
		if h.relay == nil {
			return ErrNotLocal
		}
		return h.relay.Forward(ctx, connID, data)
	}
	return h.deliver(connID, data)
}

// deliver writes to a connection held by this Hub.
func (h *Hub) deliver(connID string, data []byte) error {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrGone
	}
	if err := c.write(websocket.TextMessage, data); err != nil {
		if errors.Is(err, ErrGone) || websocket.IsUnexpectedCloseError(err) || errors.Is(err, websocket.ErrCloseSent) {
			h.drop(connID)
			return ErrGone
		}
		return errors.Wrap(err, "write message")
	}
	return nil
}

// DeliverLocal writes a relayed message to a connection held by this Hub. A
// closed connection is removed from the registry.
func (h *Hub) DeliverLocal(ctx context.Context, connID string, data []byte) error {
	if owner, ok := OwnerOf(connID); !ok || owner != h.instance {
		return ErrNotLocal
	}
	err := h.deliver(connID, data)
	if errors.Is(err, ErrGone) {
		if rmErr := h.registry.Remove(ctx, connID); rmErr != nil {
			return errors.Wrap(rmErr, "remove closed connection")
		}
	}
	return err
}

// Len reports the number of connections held by this hub.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*hubConn)
	h.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}

func (h *Hub) drop(id string) {
	h.mu.Lock()
	c, ok := h.conns[id]
	delete(h.conns, id)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (c *hubConn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrGone
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

func (c *hubConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
		time.Now().Add(time.Second),
	)
	_ = c.ws.Close()
}
