package domain

import "time"

type Type string

const (
	TypeFriendRequest  Type = "friend_request"
	TypeFriendAccepted Type = "friend_accepted"
	TypeTaskShared     Type = "task_shared"
	TypeTaskDue        Type = "task_due"
)

// Notification is an in-app message for one user. DedupeKey, when set, makes
// the notification unique per user.
type Notification struct {
	ID        string            `json:"id" gorm:"primaryKey"`
	UserID    string            `json:"user_id" gorm:"index;not null;uniqueIndex:idx_notification_dedupe"`
	Type      Type              `json:"type" gorm:"not null"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty" gorm:"serializer:json"`
	DedupeKey *string           `json:"-" gorm:"uniqueIndex:idx_notification_dedupe"`
	Read      bool              `json:"read" gorm:"column:is_read;index"`
	CreatedAt time.Time         `json:"created_at"`
}
