package repository

import (
	"context"

	"tasksync-backend/internal/task/domain"
)

// Field names a persisted task attribute for field-scoped updates. Values
// are the SQL column names.
type Field string

const (
	FieldText        Field = "text"
	FieldNotes       Field = "notes"
	FieldDueDate     Field = "due_date"
	FieldCategory    Field = "category"
	FieldPriority    Field = "priority"
	FieldRecurrence  Field = "recurrence"
	FieldCompleted   Field = "completed"
	FieldCompletedAt Field = "completed_at"
	FieldIsShared    Field = "is_shared"
	FieldSharedWith  Field = "shared_with"
)

// TaskRepository defines the interface for task data access. Finders return
// (nil, nil) when nothing matches.
type TaskRepository interface {
	// Create assigns an id when empty and stores the task with its shares.
	Create(ctx context.Context, task *domain.Task) error

	FindByID(ctx context.Context, id string) (*domain.Task, error)

	// FindByOwner returns every task owned by ownerID.
	FindByOwner(ctx context.Context, ownerID string) ([]*domain.Task, error)

	// FindSharedWith returns tasks whose share list contains accountID,
	// whether or not sharing is currently switched on.
	FindSharedWith(ctx context.Context, accountID string) ([]*domain.Task, error)

	// Update writes only the listed fields (plus updated_at), so writers
	// touching different fields do not overwrite each other.
	Update(ctx context.Context, task *domain.Task, fields ...Field) error

	Delete(ctx context.Context, id string) error

	// ClearCategory empties the category of every task ownerID filed under
	// category and returns how many tasks changed.
	ClearCategory(ctx context.Context, ownerID, category string) (int64, error)

	// FindDueOn returns incomplete tasks due on date.
	FindDueOn(ctx context.Context, date domain.Date) ([]*domain.Task, error)

	// FindRolledFrom returns ownerID's task created by rolling over originalID.
	FindRolledFrom(ctx context.Context, ownerID, originalID string) (*domain.Task, error)

	// Watch follows the tasks selected by scope. The first batch carries
	// every matching task and has Reset set.
	Watch(ctx context.Context, scope Scope) (Subscription, error)
}

// CategoryRepository stores the categories an account created. The default
// category is not stored.
type CategoryRepository interface {
	List(ctx context.Context, accountID string) ([]string, error)
	Add(ctx context.Context, accountID, name string) (bool, error)
	Remove(ctx context.Context, accountID, name string) (bool, error)
}
