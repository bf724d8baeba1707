package feed

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync-backend/internal/task/domain"
	"tasksync-backend/internal/task/repository"
	"tasksync-backend/pkg/database"
)

func newTestRepo(t *testing.T) repository.TaskRepository {
	t.Helper()
	db, err := database.NewSQLiteConnection(filepath.Join(t.TempDir(), "feed.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &domain.Task{}, &domain.TaskShare{}, &domain.Category{}))
	return repository.NewGormTaskRepository(db, repository.NewHub())
}

func newTask(owner, text string, shared ...string) *domain.Task {
	return &domain.Task{
		OwnerID:    owner,
		Text:       text,
		Priority:   domain.PriorityMedium,
		Recurrence: domain.RecurrenceNone,
		IsShared:   len(shared) > 0,
		SharedWith: shared,
	}
}

func waitReady(t *testing.T, f *Feed) {
	t.Helper()
	select {
	case <-f.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("feed never became ready")
	}
}

func nextEvent(t *testing.T, f *Feed) Event {
	t.Helper()
	select {
	case ev, ok := <-f.Events():
		require.True(t, ok, "feed closed: %v", f.Err())
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestFeed_SnapshotMergesOwnedAndShared(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	own := newTask("bob", "Own")
	shared := newTask("alice", "Shared", "bob")
	require.NoError(t, repo.Create(ctx, own))
	require.NoError(t, repo.Create(ctx, shared))
	require.NoError(t, repo.Create(ctx, newTask("alice", "Private")))

	f, err := Open(ctx, repo, "bob")
	require.NoError(t, err)
	defer f.Close()
	waitReady(t, f)

	views := f.Snapshot()
	require.Len(t, views, 2)
	byID := map[string]domain.Mutability{}
	for _, v := range views {
		byID[v.ID] = v.Mutability
	}
	assert.Equal(t, domain.MutabilityFull, byID[own.ID])
	assert.Equal(t, domain.MutabilityCompleteOnly, byID[shared.ID])
}

func TestFeed_FollowsShareChanges(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	f, err := Open(ctx, repo, "bob")
	require.NoError(t, err)
	defer f.Close()
	waitReady(t, f)
	assert.Empty(t, f.Snapshot())

	task := newTask("alice", "Groceries", "bob")
	require.NoError(t, repo.Create(ctx, task))

	ev := nextEvent(t, f)
	assert.Equal(t, EventUpsert, ev.Kind)
	assert.Equal(t, task.ID, ev.TaskID)
	assert.Equal(t, domain.MutabilityCompleteOnly, ev.Mutability)

	task.Completed = true
	require.NoError(t, repo.Update(ctx, task, repository.FieldCompleted))
	ev = nextEvent(t, f)
	assert.Equal(t, EventUpsert, ev.Kind)
	assert.True(t, ev.Task.Completed)

	task.SharedWith = []string{}
	task.IsShared = false
	require.NoError(t, repo.Update(ctx, task, repository.FieldIsShared, repository.FieldSharedWith))
	ev = nextEvent(t, f)
	assert.Equal(t, EventRemove, ev.Kind)
	assert.Equal(t, task.ID, ev.TaskID)
	assert.Empty(t, f.Snapshot())
}

func TestFeed_CloseStopsEvents(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	f, err := Open(ctx, repo, "bob")
	require.NoError(t, err)
	waitReady(t, f)

	f.Close()
	f.Close()

	_, ok := <-f.Events()
	assert.False(t, ok)
	assert.NoError(t, f.Err())

	// writes after close reach nobody
	require.NoError(t, repo.Create(ctx, newTask("bob", "After")))
	assert.Empty(t, f.Snapshot())
}

type failingSource struct {
	Source
	calls int
}

func (s *failingSource) Watch(ctx context.Context, scope repository.Scope) (repository.Subscription, error) {
	s.calls++
	if scope.Kind == repository.ScopeShared {
		return nil, errors.New("listen failed")
	}
	return s.Source.Watch(ctx, scope)
}

func TestFeed_OpenFailureClosesOpenedSubscription(t *testing.T) {
	src := &failingSource{Source: newTestRepo(t)}
	f, err := Open(context.Background(), src, "bob")
	assert.Error(t, err)
	assert.Nil(t, f)
	assert.Equal(t, 2, src.calls)
}

func TestSessions_ReplacesPreviousFeed(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	sessions := NewSessions(repo)

	first, err := sessions.Open(ctx, "browser-1", "alice")
	require.NoError(t, err)
	waitReady(t, first)

	second, err := sessions.Open(ctx, "browser-1", "bob")
	require.NoError(t, err)
	defer sessions.CloseAll()
	waitReady(t, second)

	select {
	case <-first.Done():
	default:
		t.Fatal("previous feed still running")
	}
	assert.Equal(t, 1, sessions.Active())

	// alice's task must not reach bob's feed
	require.NoError(t, repo.Create(ctx, newTask("alice", "Alice only")))
	require.NoError(t, repo.Create(ctx, newTask("bob", "Bob's")))
	ev := nextEvent(t, second)
	assert.Equal(t, "Bob's", ev.Task.Text)

	sessions.Release("browser-1", first)
	assert.Equal(t, 1, sessions.Active())
	assert.Equal(t, 1, sessions.CloseViewer("bob"))
	assert.Equal(t, 0, sessions.Active())
}
