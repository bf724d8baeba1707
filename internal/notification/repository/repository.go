package repository

import (
	"context"

	notificationdomain "tasksync-backend/internal/notification/domain"
)

type NotificationRepository interface {
	// Create reports false when a notification with the same dedupe key
	// already exists for the user.
	Create(ctx context.Context, n *notificationdomain.Notification) (bool, error)
	ListUnread(ctx context.Context, userID string, limit int) ([]notificationdomain.Notification, error)
	MarkRead(ctx context.Context, userID, id string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}
