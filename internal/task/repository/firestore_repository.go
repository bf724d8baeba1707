package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"tasksync-backend/internal/task/domain"
	"tasksync-backend/pkg/apperr"
	"tasksync-backend/pkg/firebaseapp"
)

const (
	CollectionTasks = "tasks"
	collectionUsers = "users"
)

// firestorePaths maps update fields to document fields.
var firestorePaths = map[Field]string{
	FieldText:        "text",
	FieldNotes:       "notes",
	FieldDueDate:     "dueDate",
	FieldCategory:    "category",
	FieldPriority:    "priority",
	FieldRecurrence:  "recurrence",
	FieldCompleted:   "completed",
	FieldCompletedAt: "completedAt",
	FieldIsShared:    "isShared",
	FieldSharedWith:  "sharedWith",
}

// firestoreTaskRepository stores tasks/{id} documents and follows them with
// query snapshot listeners.
type firestoreTaskRepository struct {
	client *firestore.Client
}

func NewFirestoreTaskRepository(client *firestore.Client) TaskRepository {
	return &firestoreTaskRepository{client: client}
}

func (r *firestoreTaskRepository) tasks() *firestore.CollectionRef {
	return r.client.Collection(CollectionTasks)
}

func (r *firestoreTaskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}
	if task.SharedWith == nil {
		task.SharedWith = []string{}
	}
	if _, err := r.tasks().Doc(task.ID).Create(ctx, task); err != nil {
		return apperr.Transient("create task", err)
	}
	return nil
}

func (r *firestoreTaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	snap, err := r.tasks().Doc(id).Get(ctx)
	if err != nil {
		if firebaseapp.IsNotFound(err) {
			return nil, nil
		}
		return nil, apperr.Transient("find task", err)
	}
	return decodeTask(snap)
}

func (r *firestoreTaskRepository) FindByOwner(ctx context.Context, ownerID string) ([]*domain.Task, error) {
	return r.query(ctx, "find owned tasks", r.scopeQuery(OwnedBy(ownerID)))
}

func (r *firestoreTaskRepository) FindSharedWith(ctx context.Context, accountID string) ([]*domain.Task, error) {
	return r.query(ctx, "find shared tasks", r.scopeQuery(SharedWith(accountID)))
}

func (r *firestoreTaskRepository) FindDueOn(ctx context.Context, date domain.Date) ([]*domain.Task, error) {
	tasks, err := r.query(ctx, "find tasks due", r.tasks().Where("dueDate", "==", string(date)))
	if err != nil {
		return nil, err
	}
	open := tasks[:0]
	for _, t := range tasks {
		if !t.Completed {
			open = append(open, t)
		}
	}
	return open, nil
}

func (r *firestoreTaskRepository) FindRolledFrom(ctx context.Context, ownerID, originalID string) (*domain.Task, error) {
	tasks, err := r.query(ctx, "find rolled task", r.tasks().
		Where("ownerId", "==", ownerID).
		Where("rolledFromId", "==", originalID).
		Limit(1))
	if err != nil || len(tasks) == 0 {
		return nil, err
	}
	return tasks[0], nil
}

func (r *firestoreTaskRepository) scopeQuery(scope Scope) firestore.Query {
	if scope.Kind == ScopeShared {
		return r.tasks().Where("sharedWith", "array-contains", scope.AccountID)
	}
	return r.tasks().Where("ownerId", "==", scope.AccountID)
}

func (r *firestoreTaskRepository) query(ctx context.Context, op string, q firestore.Query) ([]*domain.Task, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var tasks []*domain.Task
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, apperr.Transient(op, err)
		}
		task, err := decodeTask(snap)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	domain.SortTasks(tasks)
	return tasks, nil
}

func (r *firestoreTaskRepository) Update(ctx context.Context, task *domain.Task, fields ...Field) error {
	task.UpdatedAt = time.Now()
	updates := []firestore.Update{{Path: "updatedAt", Value: task.UpdatedAt}}
	for _, f := range fields {
		path, ok := firestorePaths[f]
		if !ok {
			return fmt.Errorf("unknown task field %q", f)
		}
		updates = append(updates, firestore.Update{Path: path, Value: fieldValue(task, f)})
	}

	if _, err := r.tasks().Doc(task.ID).Update(ctx, updates); err != nil {
		if firebaseapp.IsNotFound(err) {
			return fmt.Errorf("task %s: %w", task.ID, apperr.ErrNotFound)
		}
		return apperr.Transient("update task", err)
	}
	return nil
}

func fieldValue(t *domain.Task, f Field) interface{} {
	switch f {
	case FieldText:
		return t.Text
	case FieldNotes:
		return t.Notes
	case FieldDueDate:
		return string(t.DueDate)
	case FieldCategory:
		return t.Category
	case FieldPriority:
		return string(t.Priority)
	case FieldRecurrence:
		return string(t.Recurrence)
	case FieldCompleted:
		return t.Completed
	case FieldCompletedAt:
		if t.CompletedAt == nil {
			return nil
		}
		return *t.CompletedAt
	case FieldIsShared:
		return t.IsShared
	case FieldSharedWith:
		if t.SharedWith == nil {
			return []string{}
		}
		return t.SharedWith
	}
	return nil
}

func (r *firestoreTaskRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.tasks().Doc(id).Delete(ctx, firestore.Exists); err != nil {
		if firebaseapp.IsNotFound(err) {
			return fmt.Errorf("task %s: %w", id, apperr.ErrNotFound)
		}
		return apperr.Transient("delete task", err)
	}
	return nil
}

func (r *firestoreTaskRepository) ClearCategory(ctx context.Context, ownerID, category string) (int64, error) {
	var cleared int64
	q := r.tasks().Where("ownerId", "==", ownerID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		cleared = 0
		snaps, err := tx.Documents(q).GetAll()
		if err != nil {
			return err
		}
		now := time.Now()
		for _, snap := range snaps {
			stored, _ := snap.DataAt("category")
			name, _ := stored.(string)
			if name == "" || !domain.SameCategory(name, category) {
				continue
			}
			if err := tx.Update(snap.Ref, []firestore.Update{
				{Path: "category", Value: ""},
				{Path: "updatedAt", Value: now},
			}); err != nil {
				return err
			}
			cleared++
		}
		return nil
	})
	if err != nil {
		return 0, apperr.Transient("clear category", err)
	}
	return cleared, nil
}

// Watch listens to the scope's query. Firestore delivers the full result
// first and then per-document changes in commit order.
func (r *firestoreTaskRepository) Watch(ctx context.Context, scope Scope) (Subscription, error) {
	s, ctx := newStream(ctx)
	iter := r.scopeQuery(scope).Snapshots(ctx)

	go func() {
		defer s.finish()
		defer iter.Stop()

		first := true
		for {
			snap, err := iter.Next()
			if err != nil {
				if ctx.Err() == nil {
					s.fail(apperr.Transient("watch tasks", err))
				}
				return
			}

			batch := Batch{Reset: first}
			for _, change := range snap.Changes {
				id := change.Doc.Ref.ID
				if change.Kind == firestore.DocumentRemoved {
					batch.Changes = append(batch.Changes, Change{Kind: ChangeRemove, TaskID: id})
					continue
				}
				task, err := decodeTask(change.Doc)
				if err != nil {
					s.fail(err)
					return
				}
				batch.Changes = append(batch.Changes, Change{Kind: ChangeUpsert, TaskID: id, Task: task})
			}
			first = false

			if !s.send(ctx, batch) {
				return
			}
		}
	}()
	return s, nil
}

func decodeTask(snap *firestore.DocumentSnapshot) (*domain.Task, error) {
	var task domain.Task
	if err := snap.DataTo(&task); err != nil {
		return nil, apperr.Transient("decode task", err)
	}
	task.ID = snap.Ref.ID
	if task.SharedWith == nil {
		task.SharedWith = []string{}
	}
	return &task, nil
}

// firestoreCategoryRepository keeps categories[] on users/{uid}.
type firestoreCategoryRepository struct {
	client *firestore.Client
}

func NewFirestoreCategoryRepository(client *firestore.Client) CategoryRepository {
	return &firestoreCategoryRepository{client: client}
}

type categoryFields struct {
	Categories []string `firestore:"categories"`
}

func (r *firestoreCategoryRepository) user(id string) *firestore.DocumentRef {
	return r.client.Collection(collectionUsers).Doc(id)
}

func (r *firestoreCategoryRepository) List(ctx context.Context, accountID string) ([]string, error) {
	snap, err := r.user(accountID).Get(ctx)
	if err != nil {
		if firebaseapp.IsNotFound(err) {
			return nil, nil
		}
		return nil, apperr.Transient("list categories", err)
	}
	var fields categoryFields
	if err := snap.DataTo(&fields); err != nil {
		return nil, apperr.Transient("decode categories", err)
	}
	return fields.Categories, nil
}

func (r *firestoreCategoryRepository) Add(ctx context.Context, accountID, name string) (bool, error) {
	return r.modify(ctx, accountID, name, true)
}

func (r *firestoreCategoryRepository) Remove(ctx context.Context, accountID, name string) (bool, error) {
	return r.modify(ctx, accountID, name, false)
}

func (r *firestoreCategoryRepository) modify(ctx context.Context, accountID, name string, add bool) (bool, error) {
	changed := false
	ref := r.user(accountID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		changed = false
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var fields categoryFields
		if err := snap.DataTo(&fields); err != nil {
			return err
		}
		var present []interface{}
		for _, c := range fields.Categories {
			if domain.SameCategory(c, name) {
				present = append(present, c)
			}
		}
		if (len(present) > 0) == add {
			return nil
		}
		changed = true
		var value interface{} = firestore.ArrayRemove(present...)
		if add {
			value = firestore.ArrayUnion(name)
		}
		return tx.Update(ref, []firestore.Update{{Path: "categories", Value: value}})
	})
	if err != nil {
		if firebaseapp.IsNotFound(err) {
			return false, apperr.ErrUnknownUser
		}
		return false, apperr.Transient("update categories", err)
	}
	return changed, nil
}
