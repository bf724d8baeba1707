package delivery

import (
	"context"
	"log"
	"net/http"
	"time"

	authdelivery "tasksync-backend/internal/auth/delivery"
	"tasksync-backend/internal/feed"
	"tasksync-backend/pkg/apperr"
	"tasksync-backend/pkg/sse"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	EventSnapshot = "snapshot"
	EventTask     = "task"

	readyTimeout = 15 * time.Second
)

// SessionStore opens and releases per-client feeds.
type SessionStore interface {
	Open(ctx context.Context, clientID, viewerID string) (*feed.Feed, error)
	Release(clientID string, f *feed.Feed)
	CloseViewer(viewerID string) int
}

type FeedHandler struct {
	sessions SessionStore
}

func NewFeedHandler(sessions SessionStore) *FeedHandler {
	return &FeedHandler{sessions: sessions}
}

// Stream sends the caller's visible tasks as one "snapshot" event followed
// by a "task" event per change. Reconnecting with the same client_id
// replaces the previous stream of that client.
// GET /api/tasks/stream?client_id=tab-1
func (h *FeedHandler) Stream(c *gin.Context) {
	userID := c.GetString("userID")
	clientID := c.Query("client_id")
	if clientID == "" {
		clientID = uuid.New().String()
	}

	ctx := c.Request.Context()
	f, err := h.sessions.Open(ctx, clientID, userID)
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	defer h.sessions.Release(clientID, f)

	timer := time.NewTimer(readyTimeout)
	defer timer.Stop()
	select {
	case <-f.Ready():
	case <-f.Done():
		// replaced by a newer stream of the same client
		if f.Err() == nil {
			c.Status(http.StatusNoContent)
			return
		}
		log.Printf("[Feed] Stream for %s ended before it was ready: %v", userID, f.Err())
		authdelivery.RespondError(c, apperr.Transient("open task feed", f.Err()))
		return
	case <-timer.C:
		authdelivery.RespondError(c, apperr.Transient("open task feed", context.DeadlineExceeded))
		return
	case <-ctx.Done():
		return
	}

	events := make(chan sse.Event)
	go func() {
		defer close(events)
		send := func(ev sse.Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !send(sse.Event{Name: EventSnapshot, Data: gin.H{"client_id": clientID, "tasks": f.Snapshot()}}) {
			return
		}
		for ev := range f.Events() {
			if !send(sse.Event{Name: EventTask, Data: ev}) {
				return
			}
		}
	}()

	sse.Stream(c, events)
}

// Disconnect closes every open stream of the caller, e.g. on sign-out.
// DELETE /api/tasks/stream
func (h *FeedHandler) Disconnect(c *gin.Context) {
	closed := h.sessions.CloseViewer(c.GetString("userID"))
	c.JSON(http.StatusOK, gin.H{"closed": closed})
}
