package repository

import (
	"context"

	authdomain "tasksync-backend/internal/auth/domain"
)

// AccountRepository stores accounts together with the handle -> id mapping.
// Lookups return (nil, nil) when nothing matches.
type AccountRepository interface {
	// Create persists the account and claims its handle in one atomic step.
	// It fails with apperr.ErrHandleTaken if the handle is already mapped.
	Create(ctx context.Context, account *authdomain.Account) error

	FindByHandle(ctx context.Context, handle string) (*authdomain.Account, error)

	FindByID(ctx context.Context, id string) (*authdomain.Account, error)

	// FindByIDs skips ids that do not exist.
	FindByIDs(ctx context.Context, ids []string) ([]*authdomain.Account, error)

	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

// TokenRepository keeps issued refresh tokens so they can be revoked.
type TokenRepository interface {
	SaveRefreshToken(ctx context.Context, token *authdomain.RefreshToken) error
	FindRefreshToken(ctx context.Context, token string) (*authdomain.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, token string) error
	DeleteRefreshTokensByUser(ctx context.Context, userID string) error
}
