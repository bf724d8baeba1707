package usecase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authdomain "tasksync-backend/internal/auth/domain"
	authdto "tasksync-backend/internal/auth/dto"
	"tasksync-backend/internal/auth/repository"
	"tasksync-backend/pkg/apperr"
	"tasksync-backend/pkg/config"
	"tasksync-backend/pkg/database"
)

func newTestUsecase(t *testing.T) AuthUsecase {
	t.Helper()
	db, err := database.NewSQLiteConnection(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &authdomain.Account{}, &authdomain.RefreshToken{}, &authdomain.DeviceToken{}))

	cfg := &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  time.Minute,
		JWTRefreshExpiry: time.Hour,
	}
	return NewAuthUsecase(
		repository.NewGormAccountRepository(db),
		repository.NewGormTokenRepository(db),
		repository.NewFCMTokenRepository(db),
		cfg,
	)
}

func TestCreateAccount_HandleUniqueness(t *testing.T) {
	ctx := context.Background()
	uc := newTestUsecase(t)

	account, err := uc.CreateAccount(ctx, "  Alice ", "secret1", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Handle)
	assert.Equal(t, "Alice", account.DisplayName)

	_, err = uc.CreateAccount(ctx, "ALICE", "another", "")
	assert.ErrorIs(t, err, apperr.ErrHandleTaken)
}

func TestCreateAccount_Validation(t *testing.T) {
	ctx := context.Background()
	uc := newTestUsecase(t)

	_, err := uc.CreateAccount(ctx, "   ", "secret1", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = uc.CreateAccount(ctx, "bob", "123", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestAuthenticate_DoesNotLeakHandleExistence(t *testing.T) {
	ctx := context.Background()
	uc := newTestUsecase(t)

	account, err := uc.CreateAccount(ctx, "alice", "secret1", "")
	require.NoError(t, err)

	id, err := uc.Authenticate(ctx, "Alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, account.ID, id)

	_, wrongPassword := uc.Authenticate(ctx, "alice", "nope123")
	_, unknownHandle := uc.Authenticate(ctx, "mallory", "nope123")
	assert.ErrorIs(t, wrongPassword, apperr.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownHandle, apperr.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownHandle.Error())
}

func TestResolveHandle(t *testing.T) {
	ctx := context.Background()
	uc := newTestUsecase(t)

	account, err := uc.CreateAccount(ctx, "bob", "secret1", "Bob B")
	require.NoError(t, err)

	found, err := uc.ResolveHandle(ctx, " BOB")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, account.ID, found.ID)

	missing, err := uc.ResolveHandle(ctx, "carol")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	uc := newTestUsecase(t)

	logins := make(chan string, 1)
	uc.SetLoginCallback(func(accountID string) { logins <- accountID })

	resp, err := uc.Register(ctx, &authdto.RegisterRequest{Handle: "alice", Password: "secret1"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)

	select {
	case id := <-logins:
		assert.Equal(t, resp.User.ID, id)
	case <-time.After(time.Second):
		t.Fatal("login callback not called")
	}

	account, err := uc.ValidateToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, account.ID)

	// refresh tokens are not access tokens
	_, err = uc.ValidateToken(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	rotated, err := uc.RefreshToken(ctx, resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, rotated.RefreshToken)

	_, err = uc.RefreshToken(ctx, resp.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	require.NoError(t, uc.Logout(ctx, rotated.RefreshToken))
	_, err = uc.RefreshToken(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestUpdateDisplayNameAndProfiles(t *testing.T) {
	ctx := context.Background()
	uc := newTestUsecase(t)

	alice, err := uc.CreateAccount(ctx, "alice", "secret1", "")
	require.NoError(t, err)
	bob, err := uc.CreateAccount(ctx, "bob", "secret1", "")
	require.NoError(t, err)

	updated, err := uc.UpdateDisplayName(ctx, alice.ID, "  Alice Liddell ")
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", updated.DisplayName)

	_, err = uc.UpdateDisplayName(ctx, alice.ID, "   ")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	profiles, err := uc.GetProfiles(ctx, []string{bob.ID, alice.ID, "ghost"})
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}
