package usecase

import (
	"context"

	authdomain "tasksync-backend/internal/auth/domain"
	frienddomain "tasksync-backend/internal/friend/domain"
	frienddto "tasksync-backend/internal/friend/dto"
)

// FriendUsecase is the relationship graph between accounts.
type FriendUsecase interface {
	SendRequest(ctx context.Context, fromID, toHandle string) error
	Accept(ctx context.Context, selfID, fromID string) error
	Decline(ctx context.Context, selfID, fromID string) error
	Remove(ctx context.Context, selfID, otherID string) error

	ListFriends(ctx context.Context, selfID string) ([]authdomain.Profile, error)
	ListIncoming(ctx context.Context, selfID string) ([]frienddto.RequestView, error)
	ListOutgoing(ctx context.Context, selfID string) ([]frienddto.RequestView, error)
	Relationship(ctx context.Context, selfID, otherID string) (frienddomain.Relationship, error)

	FriendIDs(ctx context.Context, selfID string) ([]string, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
}
