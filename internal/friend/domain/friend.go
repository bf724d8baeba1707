package domain

import "time"

// RequestStatus is the state of a pending friend request stored on the
// recipient. Declining deletes the request, so StatusRequested is the only
// value ever persisted.
type RequestStatus string

const StatusRequested RequestStatus = "requested"


// Relationship is the state of a pair as seen from one side.
type Relationship string

const (
	RelationshipNone      Relationship = "none"
	RelationshipRequested Relationship = "requested" // outgoing request pending
	RelationshipIncoming  Relationship = "incoming"  // the other side asked us
	RelationshipFriends   Relationship = "friends"
)

// Request is a pending friend request keyed by (recipient, requester).
type Request struct {
	RecipientID string        `json:"recipient_id" gorm:"primaryKey"`
	RequesterID string        `json:"requester_id" gorm:"primaryKey;index"`
	Status      RequestStatus `json:"status" gorm:"not null"`
	CreatedAt   time.Time     `json:"created_at"`
}

func (Request) TableName() string { return "friend_requests" }

// Friendship is one direction of an accepted relationship. Accept writes
// both directions together.
type Friendship struct {
	AccountID string    `gorm:"primaryKey"`
	FriendID  string    `gorm:"primaryKey;index"`
	CreatedAt time.Time
}

func (Friendship) TableName() string { return "friendships" }
