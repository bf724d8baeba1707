package dto

import (
	"time"

	authdomain "tasksync-backend/internal/auth/domain"
	frienddomain "tasksync-backend/internal/friend/domain"
)

type SendRequestRequest struct {
	Handle string `json:"handle" binding:"required"`
}

// RequestView is a pending request with the other account's profile.
type RequestView struct {
	Account   authdomain.Profile         `json:"account"`
	Status    frienddomain.RequestStatus `json:"status"`
	CreatedAt time.Time                  `json:"created_at,omitempty"`
}

type RelationshipResponse struct {
	AccountID    string                    `json:"account_id"`
	Relationship frienddomain.Relationship `json:"relationship"`
}
