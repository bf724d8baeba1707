package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authdomain "tasksync-backend/internal/auth/domain"
	"tasksync-backend/internal/task/domain"
	"tasksync-backend/internal/task/usecase"
	"tasksync-backend/pkg/apperr"
)

type mockTaskUsecase struct {
	usecase.TaskUsecase
	CreateTaskFunc  func(ctx context.Context, ownerID string, input usecase.NewTask) (*domain.Task, error)
	ListVisibleFunc func(ctx context.Context, viewerID string, filter domain.Filter) ([]domain.View, error)
	UpdateTaskFunc  func(ctx context.Context, callerID, taskID string, patch domain.TaskPatch) (*domain.Task, error)
	ExportFunc      func(ctx context.Context, viewerID string) ([]byte, string, error)
}

func (m *mockTaskUsecase) CreateTask(ctx context.Context, ownerID string, input usecase.NewTask) (*domain.Task, error) {
	return m.CreateTaskFunc(ctx, ownerID, input)
}

func (m *mockTaskUsecase) ListVisible(ctx context.Context, viewerID string, filter domain.Filter) ([]domain.View, error) {
	return m.ListVisibleFunc(ctx, viewerID, filter)
}

func (m *mockTaskUsecase) UpdateTask(ctx context.Context, callerID, taskID string, patch domain.TaskPatch) (*domain.Task, error) {
	return m.UpdateTaskFunc(ctx, callerID, taskID, patch)
}

func (m *mockTaskUsecase) Export(ctx context.Context, viewerID string) ([]byte, string, error) {
	return m.ExportFunc(ctx, viewerID)
}

type mapResolver map[string]string

func (r mapResolver) ResolveHandle(_ context.Context, raw string) (*authdomain.Account, error) {
	if id, ok := r[raw]; ok {
		return &authdomain.Account{ID: id, Handle: raw}, nil
	}
	return nil, nil
}

func setupRouter(uc usecase.TaskUsecase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set("userID", "alice-id") })
	h := NewTaskHandler(uc, mapResolver{"bob": "bob-id"})
	r.GET("/api/tasks", h.GetTasks)
	r.POST("/api/tasks", h.CreateTask)
	r.GET("/api/tasks/export", h.Export)
	r.PATCH("/api/tasks/:id", h.UpdateTask)
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateTask_ResolvesShareHandles(t *testing.T) {
	var got usecase.NewTask
	uc := &mockTaskUsecase{
		CreateTaskFunc: func(ctx context.Context, ownerID string, input usecase.NewTask) (*domain.Task, error) {
			got = input
			return &domain.Task{ID: "t1", OwnerID: ownerID, Text: input.Text}, nil
		},
	}

	w := doJSON(setupRouter(uc), http.MethodPost, "/api/tasks", gin.H{
		"text": "Pay rent", "is_shared": true, "share_handles": []string{"bob"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []string{"bob-id"}, got.SharedWith)
	assert.True(t, got.IsShared)

	w = doJSON(setupRouter(uc), http.MethodPost, "/api/tasks", gin.H{
		"text": "x", "is_shared": true, "share_handles": []string{"nobody"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown user")
}

func TestCreateTask_MissingText(t *testing.T) {
	w := doJSON(setupRouter(&mockTaskUsecase{}), http.MethodPost, "/api/tasks", gin.H{"notes": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateTask_NotOwnerIsForbidden(t *testing.T) {
	uc := &mockTaskUsecase{
		UpdateTaskFunc: func(ctx context.Context, callerID, taskID string, patch domain.TaskPatch) (*domain.Task, error) {
			assert.Equal(t, "alice-id", callerID)
			assert.Equal(t, "t1", taskID)
			require.NotNil(t, patch.Priority)
			assert.Equal(t, domain.PriorityHigh, *patch.Priority)
			return nil, apperr.ErrNotOwner
		},
	}
	w := doJSON(setupRouter(uc), http.MethodPatch, "/api/tasks/t1", gin.H{"priority": "High"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(setupRouter(uc), http.MethodPatch, "/api/tasks/t1", gin.H{"due_date": "tomorrow"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTasks_ParsesFilters(t *testing.T) {
	var got domain.Filter
	uc := &mockTaskUsecase{
		ListVisibleFunc: func(ctx context.Context, viewerID string, filter domain.Filter) ([]domain.View, error) {
			got = filter
			return []domain.View{domain.ViewFor(&domain.Task{ID: "t1", OwnerID: viewerID}, viewerID)}, nil
		},
	}

	w := doJSON(setupRouter(uc), http.MethodGet, "/api/tasks?q=rent&status=overdue&priority=low&category=Home", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.Filter{Query: "rent", Category: "Home", Status: domain.StatusOverdue, Priority: domain.PriorityLow}, got)

	var body struct {
		Tasks []map[string]any `json:"tasks"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "full", body.Tasks[0]["mutability"])

	w = doJSON(setupRouter(uc), http.MethodGet, "/api/tasks?status=archived", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExport_IsAttachment(t *testing.T) {
	uc := &mockTaskUsecase{
		ExportFunc: func(ctx context.Context, viewerID string) ([]byte, string, error) {
			return []byte("[]"), "tasks_2024-01-02.json", nil
		},
	}
	w := doJSON(setupRouter(uc), http.MethodGet, "/api/tasks/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="tasks_2024-01-02.json"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "[]", w.Body.String())
}
