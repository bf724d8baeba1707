// Package sse fans events out to browsers connected with EventSource.
package sse

import (
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	clientBuffer      = 16
	heartbeatInterval = 25 * time.Second
)

// Event is one server-sent event.
type Event struct {
	Name string
	Data interface{}
}

type client struct {
	userID string
	events chan Event
}

// Manager tracks open event streams per user.
type Manager struct {
	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

func NewManager() *Manager {
	return &Manager{clients: make(map[string]map[*client]struct{})}
}

func (m *Manager) register(userID string) *client {
	c := &client{userID: userID, events: make(chan Event, clientBuffer)}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clients[userID] == nil {
		m.clients[userID] = make(map[*client]struct{})
	}
	m.clients[userID][c] = struct{}{}
	log.Printf("[SSE] Client connected for user %s (%d open)", userID, len(m.clients[userID]))
	return c
}

func (m *Manager) unregister(c *client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients[c.userID], c)
	if len(m.clients[c.userID]) == 0 {
		delete(m.clients, c.userID)
	}
}

// SendToUser delivers an event to every open stream of userID. Slow
// clients drop events rather than block the sender.
func (m *Manager) SendToUser(userID, event string, data interface{}) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for c := range m.clients[userID] {
		select {
		case c.events <- Event{Name: event, Data: data}:
		default:
			log.Printf("[SSE] Dropping %s event for slow client of user %s", event, userID)
		}
	}
}

// ConnectedClients returns the number of open streams for userID.
func (m *Manager) ConnectedClients(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[userID])
}

// ServeHTTP streams userID's events until the request is cancelled.
func (m *Manager) ServeHTTP(c *gin.Context, userID string) {
	cl := m.register(userID)
	defer m.unregister(cl)

	Stream(c, cl.events)
}

// Stream writes events from the channel as SSE until the client goes away
// or the channel is closed. A comment line is sent periodically to keep
// proxies from closing idle connections.
func Stream(c *gin.Context, events <-chan Event) {
	PrepareHeaders(c)
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(ev.Name, ev.Data)
		case <-heartbeat.C:
			if _, err := io.WriteString(c.Writer, ": ping\n\n"); err != nil {
				return
			}
		}
		c.Writer.Flush()
	}
}

// PrepareHeaders sets the response headers of an event stream.
func PrepareHeaders(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
}
