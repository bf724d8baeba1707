package repository

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

const forwardTimeout = 5 * time.Second

// MessageBus carries serialized changes between instances.
type MessageBus interface {
	Publish(ctx context.Context, data []byte) error
	Receive(ctx context.Context, handle func(ctx context.Context, data []byte)) error
}

// ChangeRelay forwards hub changes to other instances and replays theirs
// into the local hub.
type ChangeRelay struct {
	hub *Hub
	bus MessageBus

	inflight sync.WaitGroup
}

// NewChangeRelay installs itself as hub's forwarder.
func NewChangeRelay(hub *Hub, bus MessageBus) *ChangeRelay {
	r := &ChangeRelay{hub: hub, bus: bus}
	hub.SetForwarder(r)
	return r
}

func (r *ChangeRelay) Forward(change Change) {
	data, err := json.Marshal(change)
	if err != nil {
		log.Printf("[Relay] Failed to encode change %s: %v", change.TaskID, err)
		return
	}
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
		defer cancel()
		if err := r.bus.Publish(ctx, data); err != nil {
			log.Printf("[Relay] Failed to forward change %s: %v", change.TaskID, err)
		}
	}()
}

// Wait blocks until every forwarded change has been published or has
// failed.
func (r *ChangeRelay) Wait() {
	r.inflight.Wait()
}

// Run replays changes from other instances until ctx is done.
func (r *ChangeRelay) Run(ctx context.Context) error {
	return r.bus.Receive(ctx, func(ctx context.Context, data []byte) {
		var change Change
		if err := json.Unmarshal(data, &change); err != nil {
			log.Printf("[Relay] Dropping malformed change: %v", err)
			return
		}
		if change.Kind == ChangeUpsert && change.Task == nil {
			return
		}
		r.hub.Deliver(change)
	})
}
