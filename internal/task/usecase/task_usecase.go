package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	authrepo "tasksync-backend/internal/auth/repository"
	"tasksync-backend/internal/notification"
	notificationdomain "tasksync-backend/internal/notification/domain"
	"tasksync-backend/internal/task/domain"
	"tasksync-backend/internal/task/repository"
	"tasksync-backend/pkg/apperr"
)

// taskUsecase implements TaskUsecase interface
type taskUsecase struct {
	taskRepo     repository.TaskRepository
	categoryRepo repository.CategoryRepository
	friends      FriendChecker
	accountRepo  authrepo.AccountRepository
	notifier     notification.Notifier
	location     *time.Location

	mu  sync.RWMutex
	now func() time.Time
}

// NewTaskUsecase creates a new instance of taskUsecase. notifier may be nil.
func NewTaskUsecase(
	taskRepo repository.TaskRepository,
	categoryRepo repository.CategoryRepository,
	friends FriendChecker,
	accountRepo authrepo.AccountRepository,
	notifier notification.Notifier,
	location *time.Location,
) TaskUsecase {
	if location == nil {
		location = time.Local
	}
	return &taskUsecase{
		taskRepo:     taskRepo,
		categoryRepo: categoryRepo,
		friends:      friends,
		accountRepo:  accountRepo,
		notifier:     notifier,
		location:     location,
		now:          time.Now,
	}
}

func (u *taskUsecase) SetClock(now func() time.Time) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.now = now
}

func (u *taskUsecase) clock() time.Time {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.now().In(u.location)
}

func (u *taskUsecase) Today() domain.Date {
	return domain.DateOf(u.clock())
}

func (u *taskUsecase) CreateTask(ctx context.Context, ownerID string, input NewTask) (*domain.Task, error) {
	text, err := domain.CleanText(input.Text)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateNotes(input.Notes); err != nil {
		return nil, err
	}
	dueDate, err := domain.ParseDate(strings.TrimSpace(input.DueDate))
	if err != nil {
		return nil, err
	}
	priority, err := domain.ParsePriority(input.Priority)
	if err != nil {
		return nil, err
	}
	recurrence, err := domain.ParseRecurrence(input.Recurrence)
	if err != nil {
		return nil, err
	}
	category, err := u.ensureCategory(ctx, ownerID, input.Category)
	if err != nil {
		return nil, err
	}

	// recipients imply sharing even without the flag
	sharedWith := []string{}
	if input.IsShared || len(input.SharedWith) > 0 {
		sharedWith = domain.NormalizeShares(ownerID, input.SharedWith)
		if err := u.checkFriends(ctx, ownerID, sharedWith); err != nil {
			return nil, err
		}
	}

	now := u.clock()
	task := &domain.Task{
		OwnerID:    ownerID,
		Text:       text,
		Notes:      input.Notes,
		DueDate:    dueDate,
		Category:   category,
		Priority:   priority,
		Recurrence: recurrence,
		IsShared:   len(sharedWith) > 0,
		SharedWith: sharedWith,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := u.taskRepo.Create(ctx, task); err != nil {
		return nil, err
	}

	log.Printf("[Task] %s created task %s", ownerID, task.ID)
	u.notifyShared(ctx, task, task.SharedWith)
	return task, nil
}

func (u *taskUsecase) GetTask(ctx context.Context, viewerID, taskID string) (*domain.View, error) {
	task, err := u.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || !domain.IsVisible(task, viewerID) {
		return nil, fmt.Errorf("task %s: %w", taskID, apperr.ErrNotFound)
	}
	view := domain.ViewFor(task, viewerID)
	return &view, nil
}

func (u *taskUsecase) ListVisible(ctx context.Context, viewerID string, filter domain.Filter) ([]domain.View, error) {
	tasks, err := u.visibleTasks(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if filter.Today.IsZero() {
		filter.Today = u.Today()
	}

	matched := filter.Apply(tasks)
	views := make([]domain.View, 0, len(matched))
	for _, t := range matched {
		views = append(views, domain.ViewFor(t, viewerID))
	}
	return views, nil
}

// visibleTasks merges owned and shared tasks in listing order.
func (u *taskUsecase) visibleTasks(ctx context.Context, viewerID string) ([]*domain.Task, error) {
	owned, err := u.taskRepo.FindByOwner(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	shared, err := u.taskRepo.FindSharedWith(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(owned)+len(shared))
	tasks := make([]*domain.Task, 0, len(owned)+len(shared))
	for _, t := range append(owned, shared...) {
		if seen[t.ID] || !domain.IsVisible(t, viewerID) {
			continue
		}
		seen[t.ID] = true
		tasks = append(tasks, t)
	}
	domain.SortTasks(tasks)
	return tasks, nil
}

func (u *taskUsecase) UpdateTask(ctx context.Context, callerID, taskID string, patch domain.TaskPatch) (*domain.Task, error) {
	if patch.IsEmpty() {
		return nil, apperr.Invalid("nothing to update")
	}

	task, err := u.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", taskID, apperr.ErrNotFound)
	}
	if !domain.MutabilityFor(task, callerID).Allows(patch) {
		return nil, apperr.ErrNotOwner
	}

	fields, added, err := u.apply(ctx, task, patch)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return task, nil
	}
	if err := u.taskRepo.Update(ctx, task, fields...); err != nil {
		return nil, err
	}

	u.notifyShared(ctx, task, added)
	return task, nil
}

// apply copies patch onto task and returns the changed fields and the
// recipients who gained access.
func (u *taskUsecase) apply(ctx context.Context, task *domain.Task, patch domain.TaskPatch) ([]repository.Field, []string, error) {
	var fields []repository.Field

	if patch.Text != nil {
		text, err := domain.CleanText(*patch.Text)
		if err != nil {
			return nil, nil, err
		}
		task.Text = text
		fields = append(fields, repository.FieldText)
	}
	if patch.Notes != nil {
		if err := domain.ValidateNotes(*patch.Notes); err != nil {
			return nil, nil, err
		}
		task.Notes = *patch.Notes
		fields = append(fields, repository.FieldNotes)
	}
	if patch.DueDate != nil {
		task.DueDate = *patch.DueDate
		fields = append(fields, repository.FieldDueDate)
	}
	if patch.Category != nil {
		category, err := u.ensureCategory(ctx, task.OwnerID, *patch.Category)
		if err != nil {
			return nil, nil, err
		}
		task.Category = category
		fields = append(fields, repository.FieldCategory)
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
		fields = append(fields, repository.FieldPriority)
	}
	if patch.Recurrence != nil {
		task.Recurrence = *patch.Recurrence
		fields = append(fields, repository.FieldRecurrence)
	}
	if patch.Completed != nil && task.SetCompleted(*patch.Completed, u.clock()) {
		fields = append(fields, repository.FieldCompleted, repository.FieldCompletedAt)
	}

	var added []string
	if patch.TouchesSharing() {
		wasVisibleTo := visibleRecipients(task)

		isShared := task.IsShared
		if patch.IsShared != nil {
			isShared = *patch.IsShared
		}
		sharedWith := task.SharedWith
		if patch.SharedWith != nil {
			sharedWith = domain.NormalizeShares(task.OwnerID, *patch.SharedWith)
		}

		var newcomers []string
		for _, id := range sharedWith {
			if !slices.Contains(task.SharedWith, id) {
				newcomers = append(newcomers, id)
			}
		}
		if err := u.checkFriends(ctx, task.OwnerID, newcomers); err != nil {
			return nil, nil, err
		}

		task.SharedWith = sharedWith
		task.IsShared = isShared && len(sharedWith) > 0
		fields = append(fields, repository.FieldIsShared, repository.FieldSharedWith)

		for _, id := range visibleRecipients(task) {
			if !slices.Contains(wasVisibleTo, id) {
				added = append(added, id)
			}
		}
	}
	return fields, added, nil
}

func visibleRecipients(t *domain.Task) []string {
	if !t.IsShared {
		return nil
	}
	return t.SharedWith
}

func (u *taskUsecase) SetCompleted(ctx context.Context, callerID, taskID string, completed bool) (*domain.Task, error) {
	return u.UpdateTask(ctx, callerID, taskID, domain.TaskPatch{Completed: &completed})
}

func (u *taskUsecase) DeleteTask(ctx context.Context, callerID, taskID string) error {
	task, err := u.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s: %w", taskID, apperr.ErrNotFound)
	}
	if task.OwnerID != callerID {
		return apperr.ErrNotOwner
	}
	if err := u.taskRepo.Delete(ctx, taskID); err != nil {
		return err
	}
	log.Printf("[Task] %s deleted task %s", callerID, taskID)
	return nil
}

// checkFriends rejects share targets that are not friends of ownerID.
func (u *taskUsecase) checkFriends(ctx context.Context, ownerID string, ids []string) error {
	for _, id := range ids {
		ok, err := u.friends.AreFriends(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", apperr.ErrNotFriends, id)
		}
	}
	return nil
}

func (u *taskUsecase) ListCategories(ctx context.Context, accountID string) ([]string, error) {
	stored, err := u.categoryRepo.List(ctx, accountID)
	if err != nil {
		return nil, err
	}
	categories := []string{domain.DefaultCategory}
	for _, name := range stored {
		if !domain.IsDefaultCategory(name) {
			categories = append(categories, name)
		}
	}
	return categories, nil
}

func (u *taskUsecase) AddCategory(ctx context.Context, accountID, name string) (string, error) {
	clean, err := domain.CleanCategory(name)
	if err != nil {
		return "", err
	}
	if domain.IsDefaultCategory(clean) {
		return domain.DefaultCategory, nil
	}
	// reuse the spelling the account registered first
	stored, err := u.categoryRepo.List(ctx, accountID)
	if err != nil {
		return "", err
	}
	for _, existing := range stored {
		if domain.SameCategory(existing, clean) {
			return existing, nil
		}
	}
	if _, err := u.categoryRepo.Add(ctx, accountID, clean); err != nil {
		return "", err
	}
	return clean, nil
}

// ensureCategory registers a category the first time a task uses it. An
// empty name means uncategorized.
func (u *taskUsecase) ensureCategory(ctx context.Context, accountID, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return u.AddCategory(ctx, accountID, raw)
}

func (u *taskUsecase) RemoveCategory(ctx context.Context, accountID, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, apperr.Invalid("category name is required")
	}
	if domain.IsDefaultCategory(name) {
		return 0, nil
	}

	cleared, err := u.taskRepo.ClearCategory(ctx, accountID, name)
	if err != nil {
		return 0, err
	}
	if _, err := u.categoryRepo.Remove(ctx, accountID, name); err != nil {
		return cleared, &apperr.StepError{Operation: "remove category", Step: "forget", Err: err}
	}
	log.Printf("[Task] %s removed category %q, cleared %d tasks", accountID, name, cleared)
	return cleared, nil
}

func (u *taskUsecase) Rollover(ctx context.Context, ownerID string, today domain.Date) (*RolloverReport, error) {
	if today.IsZero() {
		today = u.Today()
	}
	tasks, err := u.taskRepo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	report := &RolloverReport{Created: []*domain.Task{}, Closed: []string{}}
	for _, task := range tasks {
		if !task.IsRolloverDue(today) {
			continue
		}
		operation := "rollover of task " + task.ID
		now := u.clock()

		// a successor left behind by an earlier, interrupted sweep is reused
		next, err := u.taskRepo.FindRolledFrom(ctx, ownerID, task.ID)
		if err != nil {
			return report, &apperr.StepError{Operation: operation, Step: "create-next", Err: err}
		}
		if next == nil {
			next = task.NextOccurrence(now)
			if err := u.taskRepo.Create(ctx, next); err != nil {
				return report, &apperr.StepError{Operation: operation, Step: "create-next", Err: err}
			}
			report.Created = append(report.Created, next)
		}

		task.SetCompleted(true, now)
		if err := u.taskRepo.Update(ctx, task, repository.FieldCompleted, repository.FieldCompletedAt); err != nil {
			return report, &apperr.StepError{Operation: operation, Step: "close-original", Err: err}
		}
		report.Closed = append(report.Closed, task.ID)
	}

	if len(report.Closed) > 0 {
		log.Printf("[Task] Rolled over %d tasks for %s", len(report.Closed), ownerID)
	}
	return report, nil
}

func (u *taskUsecase) Stats(ctx context.Context, ownerID string) (*domain.Stats, error) {
	tasks, err := u.taskRepo.FindByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	stats := domain.ComputeStats(tasks, u.clock())
	return &stats, nil
}

func (u *taskUsecase) Export(ctx context.Context, viewerID string) ([]byte, string, error) {
	tasks, err := u.visibleTasks(ctx, viewerID)
	if err != nil {
		return nil, "", err
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return nil, "", fmt.Errorf("encode export: %w", err)
	}
	return data, fmt.Sprintf("tasks_%s.json", u.Today()), nil
}

// notifyShared tells recipients that task is now visible to them.
func (u *taskUsecase) notifyShared(ctx context.Context, task *domain.Task, recipients []string) {
	if u.notifier == nil || !task.IsShared || len(recipients) == 0 {
		return
	}
	name := task.OwnerID
	if owner, err := u.accountRepo.FindByID(ctx, task.OwnerID); err == nil && owner != nil {
		name = owner.DisplayName
	}
	message := fmt.Sprintf("%s shared a task with you: %s", name, task.Text)
	data := map[string]string{"task_id": task.ID, "account_id": task.OwnerID}
	for _, id := range recipients {
		if err := u.notifier.Notify(ctx, id, notificationdomain.TypeTaskShared, message, data); err != nil {
			log.Printf("[Task] Failed to notify %s: %v", id, err)
		}
	}
}
