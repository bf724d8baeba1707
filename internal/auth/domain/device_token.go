package domain

import "time"

// DeviceToken is a push notification token registered by one of the user's
// browsers or devices.
type DeviceToken struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"index;not null"`
	Token      string    `json:"-" gorm:"uniqueIndex;not null"` // Don't expose token in JSON
	DeviceInfo string    `json:"device_info"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (DeviceToken) TableName() string { return "fcm_tokens" }
