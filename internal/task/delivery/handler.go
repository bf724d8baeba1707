package delivery

import (
	"context"
	"fmt"
	"net/http"

	authdelivery "tasksync-backend/internal/auth/delivery"
	authdomain "tasksync-backend/internal/auth/domain"
	"tasksync-backend/internal/task/domain"
	taskdto "tasksync-backend/internal/task/dto"
	"tasksync-backend/internal/task/usecase"
	"tasksync-backend/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// HandleResolver turns a handle typed by a user into an account.
type HandleResolver interface {
	ResolveHandle(ctx context.Context, rawHandle string) (*authdomain.Account, error)
}

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskUsecase usecase.TaskUsecase
	resolver    HandleResolver
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskUsecase usecase.TaskUsecase, resolver HandleResolver) *TaskHandler {
	return &TaskHandler{
		taskUsecase: taskUsecase,
		resolver:    resolver,
	}
}

// GetTasks returns the tasks visible to the authenticated user
// GET /api/tasks?q=rent&category=Home&status=active&priority=high
func (h *TaskHandler) GetTasks(c *gin.Context) {
	status, err := domain.ParseStatus(c.Query("status"))
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	filter := domain.Filter{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		Status:   status,
	}
	if p := c.Query("priority"); p != "" {
		priority, err := domain.ParsePriority(p)
		if err != nil {
			authdelivery.RespondError(c, err)
			return
		}
		filter.Priority = priority
	}

	tasks, err := h.taskUsecase.ListVisible(c.Request.Context(), c.GetString("userID"), filter)
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": len(tasks),
	})
}

// GetTaskByID returns a specific task
// GET /api/tasks/:id
func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	task, err := h.taskUsecase.GetTask(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// CreateTask creates a new task
// POST /api/tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req taskdto.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sharedWith, err := h.resolveRecipients(c.Request.Context(), req.SharedWith, req.ShareHandles)
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}

	task, err := h.taskUsecase.CreateTask(c.Request.Context(), c.GetString("userID"), usecase.NewTask{
		Text:       req.Text,
		Notes:      req.Notes,
		DueDate:    req.DueDate,
		Category:   req.Category,
		Priority:   req.Priority,
		Recurrence: req.Recurrence,
		IsShared:   req.IsShared,
		SharedWith: sharedWith,
	})
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// UpdateTask applies a partial update
// PATCH /api/tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	var req taskdto.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.ShareHandles != nil {
		var ids []string
		if req.SharedWith != nil {
			ids = *req.SharedWith
		}
		resolved, err := h.resolveRecipients(c.Request.Context(), ids, *req.ShareHandles)
		if err != nil {
			authdelivery.RespondError(c, err)
			return
		}
		req.SharedWith = &resolved
	}

	patch, err := req.ToPatch()
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}

	task, err := h.taskUsecase.UpdateTask(c.Request.Context(), c.GetString("userID"), c.Param("id"), patch)
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// CompleteTask toggles completion; allowed for the owner and recipients
// PATCH /api/tasks/:id/complete
func (h *TaskHandler) CompleteTask(c *gin.Context) {
	var req taskdto.CompleteTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskUsecase.SetCompleted(c.Request.Context(), c.GetString("userID"), c.Param("id"), *req.Completed)
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DeleteTask deletes a task
// DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.taskUsecase.DeleteTask(c.Request.Context(), c.GetString("userID"), c.Param("id")); err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

// Rollover runs the recurrence sweep for the signed-in user
// POST /api/tasks/rollover
func (h *TaskHandler) Rollover(c *gin.Context) {
	report, err := h.taskUsecase.Rollover(c.Request.Context(), c.GetString("userID"), h.taskUsecase.Today())
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GET /api/tasks/stats
func (h *TaskHandler) GetStats(c *gin.Context) {
	stats, err := h.taskUsecase.Stats(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Export downloads the visible tasks as JSON
// GET /api/tasks/export
func (h *TaskHandler) Export(c *gin.Context) {
	data, filename, err := h.taskUsecase.Export(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/json", data)
}

// GET /api/categories
func (h *TaskHandler) GetCategories(c *gin.Context) {
	categories, err := h.taskUsecase.ListCategories(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// POST /api/categories
func (h *TaskHandler) AddCategory(c *gin.Context) {
	var req taskdto.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	name, err := h.taskUsecase.AddCategory(c.Request.Context(), c.GetString("userID"), req.Name)
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": name})
}

// RemoveCategory clears the category from the caller's tasks, then removes it
// DELETE /api/categories/:name
func (h *TaskHandler) RemoveCategory(c *gin.Context) {
	name := c.Param("name")
	cleared, err := h.taskUsecase.RemoveCategory(c.Request.Context(), c.GetString("userID"), name)
	if err != nil {
		authdelivery.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, taskdto.RemoveCategoryResponse{Name: name, TasksCleared: cleared})
}

// resolveRecipients merges account ids with the accounts behind handles.
func (h *TaskHandler) resolveRecipients(ctx context.Context, ids, handles []string) ([]string, error) {
	out := append([]string(nil), ids...)
	for _, handle := range handles {
		account, err := h.resolver.ResolveHandle(ctx, handle)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return nil, fmt.Errorf("%w: %s", apperr.ErrUnknownUser, handle)
		}
		out = append(out, account.ID)
	}
	return out, nil
}
