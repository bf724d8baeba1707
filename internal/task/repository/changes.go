package repository

import (
	"context"
	"log"
	"slices"
	"sync"

	"tasksync-backend/internal/task/domain"
)

type ChangeKind string

const (
	// ChangeUpsert carries the current state of a matching task.
	ChangeUpsert ChangeKind = "upsert"
	// ChangeRemove means the task was deleted or no longer matches the scope.
	ChangeRemove ChangeKind = "remove"
)

type Change struct {
	Kind   ChangeKind   `json:"kind"`
	TaskID string       `json:"task_id"`
	Task   *domain.Task `json:"task,omitempty"`
}

// Batch is one delivery on a subscription. When Reset is set, Changes is
// the complete matching set and replaces whatever the receiver held.
type Batch struct {
	Reset   bool
	Changes []Change
}

type ScopeKind string

const (
	ScopeOwned  ScopeKind = "owned"
	ScopeShared ScopeKind = "shared"
)

// Scope selects the tasks a subscription follows: those owned by AccountID
// or those whose share list contains it.
type Scope struct {
	Kind      ScopeKind
	AccountID string
}

func OwnedBy(accountID string) Scope { return Scope{Kind: ScopeOwned, AccountID: accountID} }

func SharedWith(accountID string) Scope { return Scope{Kind: ScopeShared, AccountID: accountID} }

func (s Scope) Matches(t *domain.Task) bool {
	if t == nil {
		return false
	}
	switch s.Kind {
	case ScopeOwned:
		return t.OwnerID == s.AccountID
	case ScopeShared:
		return slices.Contains(t.SharedWith, s.AccountID)
	default:
		return false
	}
}

// Subscription is a live view of a Scope. Batches is closed after Close or
// when the subscription fails; Err then reports the failure, if any.
type Subscription interface {
	Batches() <-chan Batch
	Err() error
	Close()
}

// stream is the goroutine-backed Subscription shared by the store backends.
type stream struct {
	out    chan Batch
	done   chan struct{}
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func newStream(ctx context.Context) (*stream, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &stream{
		out:    make(chan Batch),
		done:   make(chan struct{}),
		cancel: cancel,
	}, ctx
}

func (s *stream) Batches() <-chan Batch { return s.out }

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the subscription and waits for its goroutine to exit.
func (s *stream) Close() {
	s.cancel()
	<-s.done
}

func (s *stream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *stream) send(ctx context.Context, b Batch) bool {
	select {
	case s.out <- b:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish must be deferred by the goroutine feeding the stream.
func (s *stream) finish() {
	close(s.out)
	close(s.done)
}

const maxQueuedChanges = 1024

// Forwarder receives every change published locally, so that other
// instances can replay it.
type Forwarder interface {
	Forward(change Change)
}

// Hub fans task changes out to subscriptions in this process. The SQL
// backend publishes to it after every committed write.
type Hub struct {
	mu        sync.RWMutex
	subs      map[*hubSubscription]struct{}
	forwarder Forwarder
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*hubSubscription]struct{})}
}

// SetForwarder installs f; nil stops forwarding.
func (h *Hub) SetForwarder(f Forwarder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forwarder = f
}

// Publish delivers change to local subscriptions and to the forwarder.
func (h *Hub) Publish(change Change) {
	h.mu.RLock()
	forwarder := h.forwarder
	h.mu.RUnlock()

	h.Deliver(change)
	if forwarder != nil {
		forwarder.Forward(change)
	}
}

// Deliver delivers change to local subscriptions only. It is used for
// changes replayed from other instances.
func (h *Hub) Deliver(change Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		sub.offer(change)
	}
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

type loadFunc func(ctx context.Context) ([]*domain.Task, error)

// Subscribe registers a subscription for scope. load reads the current
// matching set; it runs first and again whenever the subscriber falls too
// far behind.
func (h *Hub) Subscribe(ctx context.Context, scope Scope, load loadFunc) Subscription {
	s, ctx := newStream(ctx)
	sub := &hubSubscription{
		stream: s,
		scope:  scope,
		load:   load,
		wake:   make(chan struct{}, 1),
		seen:   make(map[string]bool),
		reset:  true,
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		defer func() {
			h.mu.Lock()
			delete(h.subs, sub)
			h.mu.Unlock()
		}()
		sub.run(ctx)
	}()
	return sub
}

type hubSubscription struct {
	*stream
	scope Scope
	load  loadFunc
	wake  chan struct{}

	mu      sync.Mutex
	queue   []Change
	seen    map[string]bool
	reset   bool
	loading bool
}

// offer queues change if it concerns this subscription. A task that stops
// matching is queued as a removal.
func (s *hubSubscription) offer(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var queued Change
	switch {
	case change.Kind == ChangeUpsert && s.scope.Matches(change.Task):
		s.seen[change.TaskID] = true
		queued = Change{Kind: ChangeUpsert, TaskID: change.TaskID, Task: change.Task.Clone()}
	case s.seen[change.TaskID] || s.loading:
		// a load in flight may still return the task
		delete(s.seen, change.TaskID)
		queued = Change{Kind: ChangeRemove, TaskID: change.TaskID}
	default:
		return
	}

	if s.reset {
		// the pending reload reads after this write committed
		return
	}
	if len(s.queue) >= maxQueuedChanges {
		log.Printf("[Changes] Subscriber for %s %s fell behind, reloading", s.scope.Kind, s.scope.AccountID)
		s.queue = nil
		s.reset = true
	} else {
		s.queue = append(s.queue, queued)
	}

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *hubSubscription) run(ctx context.Context) {
	defer s.finish()
	for {
		s.mu.Lock()
		reset := s.reset
		if reset {
			s.reset = false
			s.loading = true
			s.queue = nil
		}
		s.mu.Unlock()

		if reset {
			tasks, err := s.load(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.fail(err)
				}
				return
			}
			batch := Batch{Reset: true, Changes: make([]Change, 0, len(tasks))}
			s.mu.Lock()
			s.loading = false
			for _, t := range tasks {
				s.seen[t.ID] = true
				batch.Changes = append(batch.Changes, Change{Kind: ChangeUpsert, TaskID: t.ID, Task: t})
			}
			// changes queued during the load follow the reset batch
			for _, c := range s.queue {
				if c.Kind == ChangeRemove {
					delete(s.seen, c.TaskID)
				} else {
					s.seen[c.TaskID] = true
				}
			}
			s.mu.Unlock()
			if !s.send(ctx, batch) {
				return
			}
		}

		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		again := s.reset
		s.mu.Unlock()

		if len(pending) > 0 {
			if !s.send(ctx, Batch{Changes: pending}) {
				return
			}
			continue
		}
		if again {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}
	}
}
