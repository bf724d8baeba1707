package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasksync-backend/internal/task/domain"
	taskusecase "tasksync-backend/internal/task/usecase"
	"tasksync-backend/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		StoreBackend:     config.StoreBackendSQL,
		DatabaseDriver:   config.DriverSQLite,
		DatabaseURL:      filepath.Join(t.TempDir(), "app.db"),
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: time.Hour,
		Timezone:         "UTC",
		ReminderTime:     "08:00",
		RolloverOnLogin:  true,
		InstanceID:       "test",
	}
}

func TestBuild_SQLBackend(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Scheduler)
	require.NoError(t, a.Start(ctx))

	alice, err := a.Auth.CreateAccount(ctx, "Alice", "secret1", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", alice.Handle)

	_, err = a.Tasks.CreateTask(ctx, alice.ID, taskusecase.NewTask{Text: "Stretch", DueDate: "2000-01-01", Recurrence: "daily"})
	require.NoError(t, err)

	a.rolloverOnLogin(alice.ID)

	views, err := a.Tasks.ListVisible(ctx, alice.ID, domain.Filter{})
	require.NoError(t, err)
	require.Len(t, views, 2)
	var completed int
	for _, v := range views {
		if v.Completed {
			completed++
		}
	}
	assert.Equal(t, 1, completed)
}

func TestBuild_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreBackend = "mongo"
	_, err := Build(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported STORE_BACKEND")
}

func TestTopicName(t *testing.T) {
	assert.Equal(t, "changes", topicName("projects/p/topics/changes"))
	assert.Equal(t, "changes", topicName("changes"))
	assert.Equal(t, "task-changes", topicName(""))
}
