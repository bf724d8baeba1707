package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	authdomain "tasksync-backend/internal/auth/domain"
	"tasksync-backend/pkg/apperr"
)

// FCMTokenRepository stores push device tokens per user
type FCMTokenRepository interface {
	SaveToken(ctx context.Context, userID, token, deviceInfo string) error
	GetTokensByUserID(ctx context.Context, userID string) ([]authdomain.DeviceToken, error)
	DeleteToken(ctx context.Context, token string) error
	DeleteTokensByUserID(ctx context.Context, userID string) error
}

type fcmTokenRepository struct {
	db *gorm.DB
}

func NewFCMTokenRepository(db *gorm.DB) FCMTokenRepository {
	return &fcmTokenRepository{db: db}
}

// SaveToken registers a token for a user. A token that moves to another
// account (shared browser) is reassigned in place.
func (r *fcmTokenRepository) SaveToken(ctx context.Context, userID, token, deviceInfo string) error {
	now := time.Now()
	deviceToken := &authdomain.DeviceToken{
		ID:         uuid.New().String(),
		UserID:     userID,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "device_info", "updated_at"}),
	}).Create(deviceToken).Error
	return apperr.Transient("save device token", err)
}

func (r *fcmTokenRepository) GetTokensByUserID(ctx context.Context, userID string) ([]authdomain.DeviceToken, error) {
	var tokens []authdomain.DeviceToken
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&tokens).Error; err != nil {
		return nil, apperr.Transient("list device tokens", err)
	}
	return tokens, nil
}

func (r *fcmTokenRepository) DeleteToken(ctx context.Context, token string) error {
	err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&authdomain.DeviceToken{}).Error
	return apperr.Transient("delete device token", err)
}

func (r *fcmTokenRepository) DeleteTokensByUserID(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&authdomain.DeviceToken{}).Error
	return apperr.Transient("delete device tokens", err)
}
