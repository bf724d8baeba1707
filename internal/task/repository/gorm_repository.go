package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tasksync-backend/internal/task/domain"
	"tasksync-backend/pkg/apperr"
)

// gormTaskRepository implements TaskRepository using GORM. Share lists
// live in task_shares; every committed write is published to the hub.
type gormTaskRepository struct {
	db  *gorm.DB
	hub *Hub
}

// NewGormTaskRepository creates a new GORM-based TaskRepository
func NewGormTaskRepository(db *gorm.DB, hub *Hub) TaskRepository {
	return &gormTaskRepository{db: db, hub: hub}
}

func (r *gormTaskRepository) Create(ctx context.Context, task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	now := time.Now()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	if task.UpdatedAt.IsZero() {
		task.UpdatedAt = task.CreatedAt
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(task).Error; err != nil {
			return err
		}
		return replaceShares(tx, task.ID, task.SharedWith)
	})
	if err != nil {
		return apperr.Transient("create task", err)
	}
	r.publish(ctx, task.ID)
	return nil
}

func (r *gormTaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	var task domain.Task
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Transient("find task", err)
	}
	if err := r.loadShares(ctx, []*domain.Task{&task}); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *gormTaskRepository) FindByOwner(ctx context.Context, ownerID string) ([]*domain.Task, error) {
	return r.find(ctx, "find owned tasks", r.db.WithContext(ctx).Where("owner_id = ?", ownerID))
}

func (r *gormTaskRepository) FindSharedWith(ctx context.Context, accountID string) ([]*domain.Task, error) {
	query := r.db.WithContext(ctx).
		Select("tasks.*").
		Joins("JOIN task_shares ON task_shares.task_id = tasks.id").
		Where("task_shares.account_id = ?", accountID)
	return r.find(ctx, "find shared tasks", query)
}

func (r *gormTaskRepository) FindDueOn(ctx context.Context, date domain.Date) ([]*domain.Task, error) {
	query := r.db.WithContext(ctx).Where("due_date = ? AND completed = ?", date, false)
	return r.find(ctx, "find tasks due", query)
}

func (r *gormTaskRepository) FindRolledFrom(ctx context.Context, ownerID, originalID string) (*domain.Task, error) {
	var task domain.Task
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND rolled_from_id = ?", ownerID, originalID).
		Order("created_at ASC").
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Transient("find rolled task", err)
	}
	if err := r.loadShares(ctx, []*domain.Task{&task}); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *gormTaskRepository) find(ctx context.Context, op string, query *gorm.DB) ([]*domain.Task, error) {
	var tasks []*domain.Task
	if err := query.Order("tasks.created_at DESC, tasks.id ASC").Find(&tasks).Error; err != nil {
		return nil, apperr.Transient(op, err)
	}
	if err := r.loadShares(ctx, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// loadShares fills SharedWith for tasks with one query.
func (r *gormTaskRepository) loadShares(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}

	var shares []domain.TaskShare
	if err := r.db.WithContext(ctx).Where("task_id IN ?", ids).Order("position ASC").Find(&shares).Error; err != nil {
		return apperr.Transient("load task shares", err)
	}

	byTask := make(map[string][]string, len(tasks))
	for _, s := range shares {
		byTask[s.TaskID] = append(byTask[s.TaskID], s.AccountID)
	}
	for _, t := range tasks {
		t.SharedWith = byTask[t.ID]
		if t.SharedWith == nil {
			t.SharedWith = []string{}
		}
	}
	return nil
}

func (r *gormTaskRepository) Update(ctx context.Context, task *domain.Task, fields ...Field) error {
	task.UpdatedAt = time.Now()

	columns := []string{"updated_at"}
	writeShares := false
	for _, f := range fields {
		if f == FieldSharedWith {
			writeShares = true
			continue
		}
		columns = append(columns, string(f))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&domain.Task{}).
			Where("id = ?", task.ID).
			Select(columns).
			Updates(task)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("task %s: %w", task.ID, apperr.ErrNotFound)
		}
		if writeShares {
			return replaceShares(tx, task.ID, task.SharedWith)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return apperr.Transient("update task", err)
	}
	r.publish(ctx, task.ID)
	return nil
}

func (r *gormTaskRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", id).Delete(&domain.TaskShare{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&domain.Task{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("task %s: %w", id, apperr.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return apperr.Transient("delete task", err)
	}
	if r.hub != nil {
		r.hub.Publish(Change{Kind: ChangeRemove, TaskID: id})
	}
	return nil
}

func (r *gormTaskRepository) ClearCategory(ctx context.Context, ownerID, category string) (int64, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Task{}).
			Where("owner_id = ? AND LOWER(category) = LOWER(?)", ownerID, category).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Model(&domain.Task{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"category":   "",
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		return 0, apperr.Transient("clear category", err)
	}
	for _, id := range ids {
		r.publish(ctx, id)
	}
	return int64(len(ids)), nil
}

func (r *gormTaskRepository) Watch(ctx context.Context, scope Scope) (Subscription, error) {
	if r.hub == nil {
		return nil, errors.New("task changes are not enabled")
	}
	load := func(ctx context.Context) ([]*domain.Task, error) {
		if scope.Kind == ScopeShared {
			return r.FindSharedWith(ctx, scope.AccountID)
		}
		return r.FindByOwner(ctx, scope.AccountID)
	}
	return r.hub.Subscribe(ctx, scope, load), nil
}

// publish sends the committed state of id to subscribers.
func (r *gormTaskRepository) publish(ctx context.Context, id string) {
	if r.hub == nil {
		return
	}
	task, err := r.FindByID(context.WithoutCancel(ctx), id)
	if err != nil {
		log.Printf("[Task] Failed to publish change for %s: %v", id, err)
		return
	}
	if task == nil {
		r.hub.Publish(Change{Kind: ChangeRemove, TaskID: id})
		return
	}
	r.hub.Publish(Change{Kind: ChangeUpsert, TaskID: id, Task: task})
}

func replaceShares(tx *gorm.DB, taskID string, accountIDs []string) error {
	if err := tx.Where("task_id = ?", taskID).Delete(&domain.TaskShare{}).Error; err != nil {
		return err
	}
	if len(accountIDs) == 0 {
		return nil
	}
	shares := make([]domain.TaskShare, 0, len(accountIDs))
	for i, id := range accountIDs {
		shares = append(shares, domain.TaskShare{TaskID: taskID, AccountID: id, Position: i})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&shares).Error
}

type gormCategoryRepository struct {
	db *gorm.DB
}

func NewGormCategoryRepository(db *gorm.DB) CategoryRepository {
	return &gormCategoryRepository{db: db}
}

func (r *gormCategoryRepository) List(ctx context.Context, accountID string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&domain.Category{}).
		Where("account_id = ?", accountID).
		Order("created_at ASC, name ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, apperr.Transient("list categories", err)
	}
	return names, nil
}

func (r *gormCategoryRepository) Add(ctx context.Context, accountID, name string) (bool, error) {
	added := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&domain.Category{}).
			Where("account_id = ? AND LOWER(name) = LOWER(?)", accountID, name).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&domain.Category{AccountID: accountID, Name: name, CreatedAt: time.Now()})
		added = result.RowsAffected > 0
		return result.Error
	})
	if err != nil {
		return false, apperr.Transient("add category", err)
	}
	return added, nil
}

func (r *gormCategoryRepository) Remove(ctx context.Context, accountID, name string) (bool, error) {
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND LOWER(name) = LOWER(?)", accountID, name).
		Delete(&domain.Category{})
	if result.Error != nil {
		return false, apperr.Transient("remove category", result.Error)
	}
	return result.RowsAffected > 0, nil
}
