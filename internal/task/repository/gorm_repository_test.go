package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"tasksync-backend/internal/task/domain"
	"tasksync-backend/pkg/apperr"
	"tasksync-backend/pkg/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLiteConnection(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &domain.Task{}, &domain.TaskShare{}, &domain.Category{}))
	return db
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

func TestGormTaskRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewGormTaskRepository(newTestDB(t), NewHub())

	task := newTask("alice", "Pay rent", "bob", "carol")
	require.NoError(t, repo.Create(ctx, task))
	require.NotEmpty(t, task.ID)
	require.NoError(t, repo.Create(ctx, newTask("alice", "Private")))
	require.NoError(t, repo.Create(ctx, newTask("dave", "Other")))

	got, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"bob", "carol"}, got.SharedWith)

	owned, err := repo.FindByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	shared, err := repo.FindSharedWith(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, task.ID, shared[0].ID)
	assert.Equal(t, []string{"bob", "carol"}, shared[0].SharedWith)

	missing, err := repo.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGormTaskRepository_FieldScopedUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewGormTaskRepository(newTestDB(t), NewHub())

	task := newTask("alice", "Original", "bob")
	require.NoError(t, repo.Create(ctx, task))

	// bob loaded the task before alice renamed it
	bobsCopy, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)

	task.Text = "Renamed"
	require.NoError(t, repo.Update(ctx, task, FieldText))

	bobsCopy.SetCompleted(true, time.Now())
	require.NoError(t, repo.Update(ctx, bobsCopy, FieldCompleted, FieldCompletedAt))

	got, err := repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Text)
	assert.True(t, got.Completed)
	assert.NotNil(t, got.CompletedAt)

	task.SharedWith = []string{"carol"}
	require.NoError(t, repo.Update(ctx, task, FieldSharedWith))
	got, err = repo.FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, got.SharedWith)

	err = repo.Update(ctx, &domain.Task{ID: "missing"}, FieldText)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGormTaskRepository_DeleteAndClearCategory(t *testing.T) {
	ctx := context.Background()
	repo := NewGormTaskRepository(newTestDB(t), NewHub())

	a := newTask("alice", "A", "bob")
	a.Category = "Home"
	b := newTask("alice", "B")
	b.Category = "Home"
	c := newTask("alice", "C")
	c.Category = "Work"
	d := newTask("bob", "D")
	d.Category = "Home"
	for _, task := range []*domain.Task{a, b, c, d} {
		require.NoError(t, repo.Create(ctx, task))
	}

	cleared, err := repo.ClearCategory(ctx, "alice", "Home")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)

	got, err := repo.FindByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Home", got.Category)

	// names compare without regard to case
	cleared, err = repo.ClearCategory(ctx, "alice", "work")
	require.NoError(t, err)
	assert.Equal(t, int64(1), cleared)
	got, err = repo.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Category)

	require.NoError(t, repo.Delete(ctx, a.ID))
	assert.ErrorIs(t, repo.Delete(ctx, a.ID), apperr.ErrNotFound)

	shared, err := repo.FindSharedWith(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, shared)
}

func TestGormTaskRepository_DueAndRolledFrom(t *testing.T) {
	ctx := context.Background()
	repo := NewGormTaskRepository(newTestDB(t), nil)

	due := newTask("alice", "Due")
	due.DueDate = "2024-01-02"
	done := newTask("alice", "Done")
	done.DueDate = "2024-01-02"
	done.Completed = true
	require.NoError(t, repo.Create(ctx, due))
	require.NoError(t, repo.Create(ctx, done))

	tasks, err := repo.FindDueOn(ctx, "2024-01-02")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, due.ID, tasks[0].ID)

	next := due.NextOccurrence(time.Now())
	require.NoError(t, repo.Create(ctx, next))

	rolled, err := repo.FindRolledFrom(ctx, "alice", due.ID)
	require.NoError(t, err)
	require.NotNil(t, rolled)
	assert.Equal(t, next.ID, rolled.ID)

	none, err := repo.FindRolledFrom(ctx, "bob", due.ID)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func receive(t *testing.T, sub Subscription) Batch {
	t.Helper()
	select {
	case b, ok := <-sub.Batches():
		require.True(t, ok, "subscription closed: %v", sub.Err())
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for batch")
		return Batch{}
	}
}

func TestGormTaskRepository_Watch(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	repo := NewGormTaskRepository(newTestDB(t), hub)

	existing := newTask("alice", "Existing", "bob")
	require.NoError(t, repo.Create(ctx, existing))

	sub, err := repo.Watch(ctx, SharedWith("bob"))
	require.NoError(t, err)
	defer sub.Close()

	first := receive(t, sub)
	assert.True(t, first.Reset)
	require.Len(t, first.Changes, 1)
	assert.Equal(t, existing.ID, first.Changes[0].TaskID)

	// not shared with bob
	require.NoError(t, repo.Create(ctx, newTask("alice", "Private")))

	existing.Text = "Edited"
	require.NoError(t, repo.Update(ctx, existing, FieldText))
	b := receive(t, sub)
	require.Len(t, b.Changes, 1)
	assert.Equal(t, ChangeUpsert, b.Changes[0].Kind)
	assert.Equal(t, "Edited", b.Changes[0].Task.Text)

	existing.SharedWith = []string{}
	require.NoError(t, repo.Update(ctx, existing, FieldSharedWith))
	b = receive(t, sub)
	require.Len(t, b.Changes, 1)
	assert.Equal(t, ChangeRemove, b.Changes[0].Kind)
	assert.Equal(t, existing.ID, b.Changes[0].TaskID)
}

func TestHub_CloseUnregisters(t *testing.T) {
	hub := NewHub()
	load := func(context.Context) ([]*domain.Task, error) { return nil, nil }

	sub := hub.Subscribe(context.Background(), OwnedBy("alice"), load)
	assert.True(t, receive(t, sub).Reset)

	sub.Close()
	_, ok := <-sub.Batches()
	assert.False(t, ok)
	assert.NoError(t, sub.Err())
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_RemoveDuringLoadFollowsReset(t *testing.T) {
	hub := NewHub()
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(context.Context) ([]*domain.Task, error) {
		close(started)
		<-release
		// read before the delete committed
		return []*domain.Task{{ID: "x", OwnerID: "alice"}}, nil
	}

	sub := hub.Subscribe(context.Background(), OwnedBy("alice"), load)
	defer sub.Close()

	<-started
	hub.Deliver(Change{Kind: ChangeRemove, TaskID: "x"})
	close(release)

	first := receive(t, sub)
	assert.True(t, first.Reset)
	require.Len(t, first.Changes, 1)
	assert.Equal(t, "x", first.Changes[0].TaskID)

	next := receive(t, sub)
	require.Len(t, next.Changes, 1)
	assert.Equal(t, ChangeRemove, next.Changes[0].Kind)
	assert.Equal(t, "x", next.Changes[0].TaskID)

	// x is no longer tracked, so an unrelated write produces nothing
	hub.Deliver(Change{Kind: ChangeUpsert, TaskID: "x", Task: &domain.Task{ID: "x", OwnerID: "bob"}})
	select {
	case b := <-sub.Batches():
		t.Fatalf("unexpected batch %+v", b)
	case <-time.After(50 * time.Millisecond):
	}
}

type recordingForwarder struct{ changes []Change }

func (f *recordingForwarder) Forward(c Change) { f.changes = append(f.changes, c) }

func TestHub_ForwardsLocalChangesOnly(t *testing.T) {
	hub := NewHub()
	fwd := &recordingForwarder{}
	hub.SetForwarder(fwd)

	hub.Publish(Change{Kind: ChangeRemove, TaskID: "local"})
	hub.Deliver(Change{Kind: ChangeRemove, TaskID: "remote"})

	require.Len(t, fwd.changes, 1)
	assert.Equal(t, "local", fwd.changes[0].TaskID)
}

func TestGormCategoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormCategoryRepository(newTestDB(t))

	added, err := repo.Add(ctx, "alice", "Home")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.Add(ctx, "alice", "Home")
	require.NoError(t, err)
	assert.False(t, added)
	added, err = repo.Add(ctx, "alice", "HOME")
	require.NoError(t, err)
	assert.False(t, added)
	_, err = repo.Add(ctx, "alice", "Work")
	require.NoError(t, err)

	names, err := repo.List(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Home", "Work"}, names)

	removed, err := repo.Remove(ctx, "alice", "home")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Remove(ctx, "alice", "Home")
	require.NoError(t, err)
	assert.False(t, removed)
}
