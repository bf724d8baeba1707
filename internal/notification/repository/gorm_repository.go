package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	notificationdomain "tasksync-backend/internal/notification/domain"
	"tasksync-backend/pkg/apperr"
)

type gormNotificationRepository struct {
	db *gorm.DB
}

func NewGormNotificationRepository(db *gorm.DB) NotificationRepository {
	return &gormNotificationRepository{db: db}
}

func (r *gormNotificationRepository) Create(ctx context.Context, n *notificationdomain.Notification) (bool, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(n)
	if res.Error != nil {
		return false, apperr.Transient("create notification", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormNotificationRepository) ListUnread(ctx context.Context, userID string, limit int) ([]notificationdomain.Notification, error) {
	var notifications []notificationdomain.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_read = ?", userID, false).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, apperr.Transient("list notifications", err)
	}
	return notifications, nil
}

func (r *gormNotificationRepository) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&notificationdomain.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return false, apperr.Transient("mark notification read", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&notificationdomain.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, apperr.Transient("mark notifications read", res.Error)
	}
	return res.RowsAffected, nil
}
