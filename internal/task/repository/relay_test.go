package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync-backend/internal/task/domain"
)

type fakeBus struct {
	published chan []byte
	incoming  chan []byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: make(chan []byte, 8), incoming: make(chan []byte, 8)}
}

func (b *fakeBus) Publish(_ context.Context, data []byte) error {
	b.published <- data
	return nil
}

func (b *fakeBus) Receive(ctx context.Context, handle func(context.Context, []byte)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-b.incoming:
			handle(ctx, data)
		}
	}
}

func TestChangeRelay_ForwardsPublishedChanges(t *testing.T) {
	hub := NewHub()
	bus := newFakeBus()
	relay := NewChangeRelay(hub, bus)

	hub.Publish(Change{Kind: ChangeUpsert, TaskID: "t1", Task: &domain.Task{ID: "t1", OwnerID: "alice"}})
	relay.Wait()

	require.Len(t, bus.published, 1)
	var change Change
	require.NoError(t, json.Unmarshal(<-bus.published, &change))
	assert.Equal(t, "t1", change.TaskID)
	assert.Equal(t, "alice", change.Task.OwnerID)
}

func TestChangeRelay_ReplaysRemoteChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	bus := newFakeBus()
	relay := NewChangeRelay(hub, bus)
	go relay.Run(ctx)

	sub := hub.Subscribe(ctx, OwnedBy("alice"), func(context.Context) ([]*domain.Task, error) { return nil, nil })
	defer sub.Close()
	require.True(t, receive(t, sub).Reset)

	data, err := json.Marshal(Change{Kind: ChangeUpsert, TaskID: "t9", Task: &domain.Task{ID: "t9", OwnerID: "alice", Text: "remote"}})
	require.NoError(t, err)
	bus.incoming <- []byte("not json")
	bus.incoming <- data

	b := receive(t, sub)
	require.Len(t, b.Changes, 1)
	assert.Equal(t, "remote", b.Changes[0].Task.Text)

	// replayed changes are not sent back out
	select {
	case <-bus.published:
		t.Fatal("remote change was forwarded again")
	case <-time.After(50 * time.Millisecond):
	}
}
