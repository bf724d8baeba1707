package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	authdomain "tasksync-backend/internal/auth/domain"
	authdto "tasksync-backend/internal/auth/dto"
	"tasksync-backend/internal/auth/repository"
	"tasksync-backend/pkg/apperr"
	"tasksync-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	accountRepo repository.AccountRepository
	tokenRepo   repository.TokenRepository
	deviceRepo  repository.FCMTokenRepository
	config      *config.Config

	mu      sync.RWMutex
	onLogin LoginCallback
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(accountRepo repository.AccountRepository, tokenRepo repository.TokenRepository, deviceRepo repository.FCMTokenRepository, cfg *config.Config) AuthUsecase {
	return &authUsecase{
		accountRepo: accountRepo,
		tokenRepo:   tokenRepo,
		deviceRepo:  deviceRepo,
		config:      cfg,
	}
}

func (u *authUsecase) SetLoginCallback(callback LoginCallback) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onLogin = callback
}

func (u *authUsecase) CreateAccount(ctx context.Context, rawHandle, password, displayName string) (*authdomain.Account, error) {
	handle := authdomain.NormalizeHandle(rawHandle)
	if err := authdomain.ValidateHandle(handle); err != nil {
		return nil, err
	}
	if err := authdomain.ValidatePassword(password); err != nil {
		return nil, err
	}

	if strings.TrimSpace(displayName) == "" {
		displayName = rawHandle
	}
	name, err := authdomain.CleanDisplayName(displayName)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := repository.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &authdomain.Account{
		Handle:       handle,
		DisplayName:  name,
		PasswordHash: hashedPassword,
	}
	if err := u.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}
	log.Printf("[Auth] Registered account %s (%s)", account.ID, account.Handle)
	return account, nil
}

func (u *authUsecase) Authenticate(ctx context.Context, rawHandle, password string) (string, error) {
	account, err := u.authenticate(ctx, rawHandle, password)
	if err != nil {
		return "", err
	}
	return account.ID, nil
}

func (u *authUsecase) authenticate(ctx context.Context, rawHandle, password string) (*authdomain.Account, error) {
	handle := authdomain.NormalizeHandle(rawHandle)
	if authdomain.ValidateHandle(handle) != nil {
		repository.BurnPasswordCheck(password)
		return nil, apperr.ErrInvalidCredentials
	}

	account, err := u.accountRepo.FindByHandle(ctx, handle)
	if err != nil {
		return nil, err
	}
	if account == nil {
		repository.BurnPasswordCheck(password)
		return nil, apperr.ErrInvalidCredentials
	}
	if !repository.CheckPasswordHash(password, account.PasswordHash) {
		return nil, apperr.ErrInvalidCredentials
	}
	return account, nil
}

func (u *authUsecase) ResolveHandle(ctx context.Context, rawHandle string) (*authdomain.Account, error) {
	handle := authdomain.NormalizeHandle(rawHandle)
	if authdomain.ValidateHandle(handle) != nil {
		return nil, nil
	}
	return u.accountRepo.FindByHandle(ctx, handle)
}

func (u *authUsecase) Register(ctx context.Context, req *authdto.RegisterRequest) (*authdto.TokenResponse, error) {
	account, err := u.CreateAccount(ctx, req.Handle, req.Password, req.DisplayName)
	if err != nil {
		return nil, err
	}
	return u.startSession(ctx, account)
}

func (u *authUsecase) Login(ctx context.Context, req *authdto.LoginRequest) (*authdto.TokenResponse, error) {
	account, err := u.authenticate(ctx, req.Handle, req.Password)
	if err != nil {
		return nil, err
	}
	return u.startSession(ctx, account)
}

func (u *authUsecase) startSession(ctx context.Context, account *authdomain.Account) (*authdto.TokenResponse, error) {
	resp, err := u.generateTokens(ctx, account)
	if err != nil {
		return nil, err
	}

	u.mu.RLock()
	callback := u.onLogin
	u.mu.RUnlock()
	if callback != nil {
		go callback(account.ID)
	}
	return resp, nil
}

// RefreshToken rotates a refresh token: the presented token is revoked and a
// new pair is issued.
func (u *authUsecase) RefreshToken(ctx context.Context, refreshToken string) (*authdto.TokenResponse, error) {
	userID, err := u.parseToken(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	storedToken, err := u.tokenRepo.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if storedToken == nil || storedToken.UserID != userID || storedToken.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("%w: refresh token expired", apperr.ErrUnauthorized)
	}

	account, err := u.accountRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: user not found", apperr.ErrUnauthorized)
	}

	if err := u.tokenRepo.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return nil, err
	}
	return u.generateTokens(ctx, account)
}

func (u *authUsecase) Logout(ctx context.Context, refreshToken string) error {
	return u.tokenRepo.DeleteRefreshToken(ctx, refreshToken)
}

func (u *authUsecase) ValidateToken(ctx context.Context, tokenString string) (*authdomain.Account, error) {
	userID, err := u.parseToken(tokenString, tokenTypeAccess)
	if err != nil {
		return nil, err
	}

	account, err := u.accountRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("%w: user not found", apperr.ErrUnauthorized)
	}
	return account, nil
}

func (u *authUsecase) GetAccount(ctx context.Context, id string) (*authdomain.Account, error) {
	account, err := u.accountRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, apperr.ErrNotFound
	}
	return account, nil
}

// GetProfiles returns public profiles for ids, skipping unknown ones.
func (u *authUsecase) GetProfiles(ctx context.Context, ids []string) ([]authdomain.Profile, error) {
	accounts, err := u.accountRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	profiles := make([]authdomain.Profile, 0, len(accounts))
	for _, account := range accounts {
		profiles = append(profiles, account.Profile())
	}
	return profiles, nil
}

func (u *authUsecase) UpdateDisplayName(ctx context.Context, id, displayName string) (*authdomain.Account, error) {
	name, err := authdomain.CleanDisplayName(displayName)
	if err != nil {
		return nil, err
	}
	if err := u.accountRepo.UpdateDisplayName(ctx, id, name); err != nil {
		return nil, err
	}
	return u.GetAccount(ctx, id)
}

func (u *authUsecase) RegisterDeviceToken(ctx context.Context, userID, token, deviceInfo string) error {
	if strings.TrimSpace(token) == "" {
		return apperr.Invalid("token is required")
	}
	return u.deviceRepo.SaveToken(ctx, userID, token, deviceInfo)
}

func (u *authUsecase) UnregisterDeviceToken(ctx context.Context, token string) error {
	return u.deviceRepo.DeleteToken(ctx, token)
}

func (u *authUsecase) generateTokens(ctx context.Context, account *authdomain.Account) (*authdto.TokenResponse, error) {
	now := time.Now()

	accessToken, err := u.signToken(jwt.MapClaims{
		"user_id": account.ID,
		"handle":  account.Handle,
		"type":    tokenTypeAccess,
		"exp":     now.Add(u.config.JWTAccessExpiry).Unix(),
		"iat":     now.Unix(),
	})
	if err != nil {
		return nil, err
	}

	refreshToken, err := u.signToken(jwt.MapClaims{
		"user_id":  account.ID,
		"token_id": uuid.New().String(),
		"type":     tokenTypeRefresh,
		"exp":      now.Add(u.config.JWTRefreshExpiry).Unix(),
		"iat":      now.Unix(),
	})
	if err != nil {
		return nil, err
	}

	// Store refresh token
	refreshTokenEntity := &authdomain.RefreshToken{
		Token:     refreshToken,
		UserID:    account.ID,
		ExpiresAt: now.Add(u.config.JWTRefreshExpiry),
	}
	if err := u.tokenRepo.SaveRefreshToken(ctx, refreshTokenEntity); err != nil {
		return nil, err
	}

	return &authdto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         account,
	}, nil
}

func (u *authUsecase) signToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(u.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// parseToken verifies signature, expiry and token type and returns the
// user id claim.
func (u *authUsecase) parseToken(tokenString, tokenType string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: invalid token claims", apperr.ErrUnauthorized)
	}
	if claims["type"] != tokenType {
		return "", fmt.Errorf("%w: wrong token type", apperr.ErrUnauthorized)
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: invalid token claims", apperr.ErrUnauthorized)
	}
	return userID, nil
}
