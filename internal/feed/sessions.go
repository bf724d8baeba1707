package feed

import (
	"context"
	"sync"
)

// Sessions holds at most one open feed per client. Opening a feed for a
// client first closes the one it had, so a new sign-in on the same client
// never receives events meant for the previous viewer.
type Sessions struct {
	source Source

	mu    sync.Mutex
	feeds map[string]*Feed
}

func NewSessions(source Source) *Sessions {
	return &Sessions{source: source, feeds: make(map[string]*Feed)}
}

// Open closes clientID's current feed, waits for it to stop, then opens a
// feed for viewerID.
func (s *Sessions) Open(ctx context.Context, clientID, viewerID string) (*Feed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.feeds[clientID]; ok {
		delete(s.feeds, clientID)
		prev.Close()
	}

	f, err := Open(ctx, s.source, viewerID)
	if err != nil {
		return nil, err
	}
	s.feeds[clientID] = f
	return f, nil
}

// Release closes f and forgets it if it is still clientID's feed.
func (s *Sessions) Release(clientID string, f *Feed) {
	s.mu.Lock()
	if s.feeds[clientID] == f {
		delete(s.feeds, clientID)
	}
	s.mu.Unlock()
	f.Close()
}

// CloseViewer closes every feed of viewerID, e.g. on sign-out.
func (s *Sessions) CloseViewer(viewerID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	closed := 0
	for clientID, f := range s.feeds {
		if f.ViewerID() == viewerID {
			delete(s.feeds, clientID)
			f.Close()
			closed++
		}
	}
	return closed
}

// CloseAll closes every feed. Used on shutdown.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for clientID, f := range s.feeds {
		delete(s.feeds, clientID)
		f.Close()
	}
}

func (s *Sessions) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feeds)
}
