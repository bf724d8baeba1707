// Package feed keeps a viewer's set of visible tasks current by merging a
// subscription to the tasks they own with one to the tasks shared with them.
package feed

import (
	"context"
	"log"
	"sync"

	"tasksync-backend/internal/task/domain"
	"tasksync-backend/internal/task/repository"
)

const eventBuffer = 64

// Source opens live task subscriptions.
type Source interface {
	Watch(ctx context.Context, scope repository.Scope) (repository.Subscription, error)
}

type EventKind string

const (
	EventUpsert EventKind = "upsert"
	EventRemove EventKind = "remove"
)

// Event is a change to the viewer's working set.
type Event struct {
	Kind       EventKind         `json:"kind"`
	TaskID     string            `json:"task_id"`
	Task       *domain.Task      `json:"task,omitempty"`
	Mutability domain.Mutability `json:"mutability,omitempty"`
}

// Feed is one viewer's merged view. Entries are keyed by task id and the
// latest change for an id wins, whichever subscription delivered it.
type Feed struct {
	viewerID string
	cancel   context.CancelFunc
	subs     []repository.Subscription
	events   chan Event
	ready    chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup

	closeOnce sync.Once

	mu      sync.RWMutex
	tasks   map[string]*domain.Task
	origin  map[string]repository.ScopeKind
	pending int
	err     error
}

// Open subscribes to viewerID's owned and shared tasks. The caller must
// drain Events and call Close.
func Open(ctx context.Context, source Source, viewerID string) (*Feed, error) {
	ctx, cancel := context.WithCancel(ctx)
	f := &Feed{
		viewerID: viewerID,
		cancel:   cancel,
		events:   make(chan Event, eventBuffer),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		tasks:    make(map[string]*domain.Task),
		origin:   make(map[string]repository.ScopeKind),
	}

	for _, scope := range []repository.Scope{repository.OwnedBy(viewerID), repository.SharedWith(viewerID)} {
		sub, err := source.Watch(ctx, scope)
		if err != nil {
			cancel()
			for _, s := range f.subs {
				s.Close()
			}
			return nil, err
		}
		f.subs = append(f.subs, sub)
	}
	f.pending = len(f.subs)

	for i, sub := range f.subs {
		f.wg.Add(1)
		go f.merge(ctx, sub, []repository.ScopeKind{repository.ScopeOwned, repository.ScopeShared}[i])
	}
	go func() {
		f.wg.Wait()
		close(f.events)
		close(f.done)
	}()

	log.Printf("[Feed] Opened feed for %s", viewerID)
	return f, nil
}

func (f *Feed) ViewerID() string { return f.viewerID }

// Events delivers changes applied after each subscription's first batch.
// It is closed when the feed stops.
func (f *Feed) Events() <-chan Event { return f.events }

// Ready is closed once both subscriptions delivered their initial state.
func (f *Feed) Ready() <-chan struct{} { return f.ready }

// Done is closed after the feed stopped, by Close or by a failed
// subscription.
func (f *Feed) Done() <-chan struct{} { return f.done }

// Err reports why the feed stopped on its own.
func (f *Feed) Err() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.err
}

// Snapshot returns the working set as views, in listing order.
func (f *Feed) Snapshot() []domain.View {
	f.mu.RLock()
	tasks := make([]*domain.Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		tasks = append(tasks, t.Clone())
	}
	f.mu.RUnlock()

	domain.SortTasks(tasks)
	views := make([]domain.View, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, domain.ViewFor(t, f.viewerID))
	}
	return views
}

// Close cancels both subscriptions and returns once the merge goroutines
// have exited. It is safe to call more than once.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		f.cancel()
		for _, s := range f.subs {
			s.Close()
		}
		log.Printf("[Feed] Closed feed for %s", f.viewerID)
	})
	<-f.done
}

func (f *Feed) merge(ctx context.Context, sub repository.Subscription, kind repository.ScopeKind) {
	defer f.wg.Done()

	first := true
	for batch := range sub.Batches() {
		events := f.apply(kind, batch)
		if first {
			first = false
			f.markReady()
			continue
		}
		for _, ev := range events {
			select {
			case f.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}

	if err := sub.Err(); err != nil && ctx.Err() == nil {
		log.Printf("[Feed] %s subscription for %s failed: %v", kind, f.viewerID, err)
		f.mu.Lock()
		if f.err == nil {
			f.err = err
		}
		f.mu.Unlock()
		f.cancel()
	}
}

func (f *Feed) markReady() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending--
	if f.pending == 0 {
		close(f.ready)
	}
}

// apply folds batch into the working set and returns the resulting events.
// Every upsert goes through the visibility check, so a task that is no
// longer visible leaves the set.
func (f *Feed) apply(kind repository.ScopeKind, batch repository.Batch) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	var events []Event
	if batch.Reset {
		keep := make(map[string]bool, len(batch.Changes))
		for _, ch := range batch.Changes {
			if ch.Kind == repository.ChangeUpsert {
				keep[ch.TaskID] = true
			}
		}
		for id, from := range f.origin {
			if from == kind && !keep[id] {
				events = append(events, f.remove(id))
			}
		}
	}

	for _, ch := range batch.Changes {
		if ch.Kind == repository.ChangeUpsert && domain.IsVisible(ch.Task, f.viewerID) {
			task := ch.Task.Clone()
			f.tasks[ch.TaskID] = task
			f.origin[ch.TaskID] = kind
			events = append(events, Event{
				Kind:       EventUpsert,
				TaskID:     ch.TaskID,
				Task:       task.Clone(),
				Mutability: domain.MutabilityFor(task, f.viewerID),
			})
			continue
		}
		if _, ok := f.tasks[ch.TaskID]; ok {
			events = append(events, f.remove(ch.TaskID))
		}
	}
	return events
}

func (f *Feed) remove(id string) Event {
	delete(f.tasks, id)
	delete(f.origin, id)
	return Event{Kind: EventRemove, TaskID: id}
}
