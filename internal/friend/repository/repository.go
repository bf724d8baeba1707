package repository

import (
	"context"

	frienddomain "tasksync-backend/internal/friend/domain"
)

// FriendRepository stores the relationship graph. Lookups return
// (nil, nil) when nothing matches.
type FriendRepository interface {
	FriendIDs(ctx context.Context, accountID string) ([]string, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)

	IncomingRequests(ctx context.Context, recipientID string) ([]frienddomain.Request, error)
	OutgoingRequests(ctx context.Context, requesterID string) ([]frienddomain.Request, error)
	FindRequest(ctx context.Context, recipientID, requesterID string) (*frienddomain.Request, error)

	// SaveRequest records a pending request on the recipient. It reports
	// false when the same request is already pending.
	SaveRequest(ctx context.Context, recipientID, requesterID string) (bool, error)
	// DeleteRequest reports false when there was nothing to delete.
	DeleteRequest(ctx context.Context, recipientID, requesterID string) (bool, error)

	// Link makes a and b friends and clears pending requests between them
	// in both directions, as a single atomic write.
	Link(ctx context.Context, a, b string) error
	Unlink(ctx context.Context, a, b string) error
}
