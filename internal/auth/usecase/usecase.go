package usecase

import (
	"context"

	authdomain "tasksync-backend/internal/auth/domain"
	authdto "tasksync-backend/internal/auth/dto"
)

// LoginCallback runs after a successful sign-in or sign-up.
type LoginCallback func(accountID string)

// AuthUsecase is the identity directory plus token sessions.
type AuthUsecase interface {
	// CreateAccount normalizes the handle and creates the account together
	// with its handle mapping.
	CreateAccount(ctx context.Context, rawHandle, password, displayName string) (*authdomain.Account, error)
	// Authenticate returns the account id. Unknown handles and wrong
	// passwords both fail with apperr.ErrInvalidCredentials.
	Authenticate(ctx context.Context, rawHandle, password string) (string, error)
	ResolveHandle(ctx context.Context, rawHandle string) (*authdomain.Account, error)

	Register(ctx context.Context, req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	Login(ctx context.Context, req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*authdto.TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	ValidateToken(ctx context.Context, token string) (*authdomain.Account, error)

	GetAccount(ctx context.Context, id string) (*authdomain.Account, error)
	GetProfiles(ctx context.Context, ids []string) ([]authdomain.Profile, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) (*authdomain.Account, error)

	RegisterDeviceToken(ctx context.Context, userID, token, deviceInfo string) error
	UnregisterDeviceToken(ctx context.Context, token string) error

	SetLoginCallback(callback LoginCallback)
}
