package dto

import (
	"strings"

	"tasksync-backend/internal/task/domain"
)

// CreateTaskRequest represents the request body for creating a task.
// Recipients may be given by account id, by handle, or both; any
// recipient makes the task shared.
type CreateTaskRequest struct {
	Text         string   `json:"text" binding:"required"`
	Notes        string   `json:"notes"`
	DueDate      string   `json:"due_date"`
	Category     string   `json:"category"`
	Priority     string   `json:"priority"`
	Recurrence   string   `json:"recurrence"`
	IsShared     bool     `json:"is_shared"`
	SharedWith   []string `json:"shared_with"`
	ShareHandles []string `json:"share_handles"`
}

// UpdateTaskRequest represents the fields that can be updated. Absent
// fields are left alone; due_date "" clears the date.
type UpdateTaskRequest struct {
	Text         *string   `json:"text,omitempty"`
	Notes        *string   `json:"notes,omitempty"`
	DueDate      *string   `json:"due_date,omitempty"`
	Category     *string   `json:"category,omitempty"`
	Priority     *string   `json:"priority,omitempty"`
	Recurrence   *string   `json:"recurrence,omitempty"`
	Completed    *bool     `json:"completed,omitempty"`
	IsShared     *bool     `json:"is_shared,omitempty"`
	SharedWith   *[]string `json:"shared_with,omitempty"`
	ShareHandles *[]string `json:"share_handles,omitempty"`
}

// ToPatch validates the enumerated fields and builds a domain patch.
// ShareHandles must already be resolved into SharedWith.
func (r UpdateTaskRequest) ToPatch() (domain.TaskPatch, error) {
	patch := domain.TaskPatch{
		Text:       r.Text,
		Notes:      r.Notes,
		Category:   r.Category,
		Completed:  r.Completed,
		IsShared:   r.IsShared,
		SharedWith: r.SharedWith,
	}
	if r.DueDate != nil {
		d, err := domain.ParseDate(strings.TrimSpace(*r.DueDate))
		if err != nil {
			return patch, err
		}
		patch.DueDate = &d
	}
	if r.Priority != nil {
		p, err := domain.ParsePriority(*r.Priority)
		if err != nil {
			return patch, err
		}
		patch.Priority = &p
	}
	if r.Recurrence != nil {
		rec, err := domain.ParseRecurrence(*r.Recurrence)
		if err != nil {
			return patch, err
		}
		patch.Recurrence = &rec
	}
	return patch, nil
}

type CompleteTaskRequest struct {
	Completed *bool `json:"completed" binding:"required"`
}

type CategoryRequest struct {
	Name string `json:"name" binding:"required"`
}

type RemoveCategoryResponse struct {
	Name         string `json:"name"`
	TasksCleared int64  `json:"tasks_cleared"`
}
