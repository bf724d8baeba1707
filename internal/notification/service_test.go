package notification

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authdomain "tasksync-backend/internal/auth/domain"
	authrepo "tasksync-backend/internal/auth/repository"
	notificationdomain "tasksync-backend/internal/notification/domain"
	"tasksync-backend/internal/notification/repository"
	"tasksync-backend/pkg/apperr"
	"tasksync-backend/pkg/database"
	"tasksync-backend/pkg/fcm"
	"tasksync-backend/pkg/sse"
)

type fakePush struct {
	mu    sync.Mutex
	sent  []fcm.NotificationData
	stale []string
	done  chan struct{}
}

func (f *fakePush) SendToDevices(ctx context.Context, tokens []string, n fcm.NotificationData) ([]string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, n)
	f.mu.Unlock()
	defer close(f.done)
	return f.stale, nil
}

func newTestService(t *testing.T, push PushSender) (*Service, authrepo.FCMTokenRepository) {
	t.Helper()
	db, err := database.NewSQLiteConnection(filepath.Join(t.TempDir(), "notifications.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &notificationdomain.Notification{}, &authdomain.DeviceToken{}))

	fcmRepo := authrepo.NewFCMTokenRepository(db)
	return NewService(repository.NewGormNotificationRepository(db), sse.NewManager(), fcmRepo, push), fcmRepo
}

func TestNotify_PersistsAndMarksRead(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	require.NoError(t, svc.Notify(ctx, "u1", notificationdomain.TypeFriendRequest, "alice sent you a friend request", map[string]string{"from": "a1"}))
	require.NoError(t, svc.Notify(ctx, "u2", notificationdomain.TypeFriendRequest, "other", nil))

	unread, err := svc.ListUnread(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "a1", unread[0].Data["from"])

	assert.ErrorIs(t, svc.MarkRead(ctx, "u2", unread[0].ID), apperr.ErrNotFound)
	require.NoError(t, svc.MarkRead(ctx, "u1", unread[0].ID))

	unread, err = svc.ListUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, unread)

	count, err := svc.MarkAllRead(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestNotifyOnce_Deduplicates(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, nil)

	sent, err := svc.NotifyOnce(ctx, "u1", "task_due:t1:2024-01-01", notificationdomain.TypeTaskDue, "Pay rent is due today", nil)
	require.NoError(t, err)
	assert.True(t, sent)

	sent, err = svc.NotifyOnce(ctx, "u1", "task_due:t1:2024-01-01", notificationdomain.TypeTaskDue, "Pay rent is due today", nil)
	require.NoError(t, err)
	assert.False(t, sent)

	unread, err := svc.ListUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, unread, 1)
}

func TestNotify_PushRemovesStaleTokens(t *testing.T) {
	ctx := context.Background()
	push := &fakePush{stale: []string{"dead"}, done: make(chan struct{})}
	svc, fcmRepo := newTestService(t, push)

	require.NoError(t, fcmRepo.SaveToken(ctx, "u1", "alive", "chrome"))
	require.NoError(t, fcmRepo.SaveToken(ctx, "u1", "dead", "firefox"))

	require.NoError(t, svc.Notify(ctx, "u1", notificationdomain.TypeTaskShared, "bob shared a task", map[string]string{"task_id": "t1"}))

	select {
	case <-push.done:
	case <-time.After(2 * time.Second):
		t.Fatal("push not sent")
	}

	require.Eventually(t, func() bool {
		tokens, err := fcmRepo.GetTokensByUserID(ctx, "u1")
		return err == nil && len(tokens) == 1 && tokens[0].Token == "alive"
	}, 2*time.Second, 20*time.Millisecond)

	push.mu.Lock()
	defer push.mu.Unlock()
	assert.Equal(t, "/tasks/t1", push.sent[0].Link)
	assert.Equal(t, "task_shared", push.sent[0].Data["type"])
}
