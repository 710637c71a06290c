package api

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// connections tracks open advisor websockets per session key so a session
// reset can close them.
type connections struct {
	mu     sync.Mutex
	active map[string]map[*websocket.Conn]struct{}
}

func newConnections() *connections {
	return &connections{active: make(map[string]map[*websocket.Conn]struct{})}
}

func (c *connections) register(key string, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.active[key]; !ok {
		c.active[key] = make(map[*websocket.Conn]struct{})
	}
	c.active[key][conn] = struct{}{}
}

func (c *connections) unregister(key string, conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conns, ok := c.active[key]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(c.active, key)
	}
}

// closeSession closes every websocket attached to key.
func (c *connections) closeSession(key string) int {
	c.mu.Lock()
	conns := c.active[key]
	delete(c.active, key)
	c.mu.Unlock()

	for conn := range conns {
		if err := conn.Close(websocket.StatusNormalClosure, "session reset"); err != nil {
			slog.Debug("Failed to close advisor websocket", "error", err, "session_key", key)
		}
	}
	return len(conns)
}

func (c *connections) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active[key])
}
