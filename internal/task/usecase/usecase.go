package usecase

import (
	"context"
	"time"

	"tasksync-backend/internal/task/domain"
)

// TaskUsecase defines the interface for task business logic
type TaskUsecase interface {
	// CreateTask validates input and stores a task owned by ownerID.
	CreateTask(ctx context.Context, ownerID string, input NewTask) (*domain.Task, error)

	// GetTask returns the task if viewerID can see it, else ErrNotFound.
	GetTask(ctx context.Context, viewerID, taskID string) (*domain.View, error)

	// ListVisible returns owned and shared tasks, newest first, narrowed by filter.
	ListVisible(ctx context.Context, viewerID string, filter domain.Filter) ([]domain.View, error)

	// UpdateTask applies patch. Only the owner may change anything other
	// than the completion flag.
	UpdateTask(ctx context.Context, callerID, taskID string, patch domain.TaskPatch) (*domain.Task, error)

	SetCompleted(ctx context.Context, callerID, taskID string, completed bool) (*domain.Task, error)

	DeleteTask(ctx context.Context, callerID, taskID string) error

	ListCategories(ctx context.Context, accountID string) ([]string, error)
	AddCategory(ctx context.Context, accountID, name string) (string, error)

	// RemoveCategory clears the category on every task of accountID filed
	// under it, then forgets it. Returns the number of tasks cleared.
	RemoveCategory(ctx context.Context, accountID, name string) (int64, error)

	// Rollover closes ownerID's recurring tasks that are due and creates
	// their next occurrence.
	Rollover(ctx context.Context, ownerID string, today domain.Date) (*RolloverReport, error)

	Stats(ctx context.Context, ownerID string) (*domain.Stats, error)

	// Export returns the viewer's visible tasks as indented JSON and the
	// file name to save it under.
	Export(ctx context.Context, viewerID string) ([]byte, string, error)

	// Today is the current date in the configured time zone.
	Today() domain.Date

	SetClock(now func() time.Time)
}

// NewTask holds the raw fields of a task being created.
type NewTask struct {
	Text       string
	Notes      string
	DueDate    string
	Category   string
	Priority   string
	Recurrence string
	IsShared   bool
	SharedWith []string
}

// RolloverReport lists what a rollover sweep did.
type RolloverReport struct {
	Created []*domain.Task `json:"created"`
	Closed  []string       `json:"closed"`
}

// FriendChecker answers whether two accounts are friends.
type FriendChecker interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)
}
