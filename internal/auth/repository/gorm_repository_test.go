package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	authdomain "tasksync-backend/internal/auth/domain"
	"tasksync-backend/pkg/apperr"
	"tasksync-backend/pkg/database"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLiteConnection(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db, &authdomain.Account{}, &authdomain.RefreshToken{}, &authdomain.DeviceToken{}))
	return db
}

func TestGormAccountRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewGormAccountRepository(newTestDB(t))

	account := &authdomain.Account{Handle: "alice", DisplayName: "Alice", PasswordHash: "hash"}
	require.NoError(t, repo.Create(ctx, account))
	assert.NotEmpty(t, account.ID)
	assert.False(t, account.CreatedAt.IsZero())

	byHandle, err := repo.FindByHandle(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, byHandle)
	assert.Equal(t, account.ID, byHandle.ID)

	byID, err := repo.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "Alice", byID.DisplayName)

	missing, err := repo.FindByHandle(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGormAccountRepository_DuplicateHandle(t *testing.T) {
	ctx := context.Background()
	repo := NewGormAccountRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, &authdomain.Account{Handle: "alice"}))
	err := repo.Create(ctx, &authdomain.Account{Handle: "alice"})
	assert.ErrorIs(t, err, apperr.ErrHandleTaken)
}

func TestGormAccountRepository_FindByIDsAndUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewGormAccountRepository(newTestDB(t))

	a := &authdomain.Account{Handle: "alice"}
	b := &authdomain.Account{Handle: "bob"}
	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, b))

	accounts, err := repo.FindByIDs(ctx, []string{b.ID, a.ID, "missing"})
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alice", accounts[0].Handle)

	require.NoError(t, repo.UpdateDisplayName(ctx, b.ID, "Bobby"))
	got, err := repo.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bobby", got.DisplayName)

	assert.ErrorIs(t, repo.UpdateDisplayName(ctx, "missing", "x"), apperr.ErrNotFound)
}

func TestGormTokenRepository_PrunesExpired(t *testing.T) {
	ctx := context.Background()
	repo := NewGormTokenRepository(newTestDB(t))

	require.NoError(t, repo.SaveRefreshToken(ctx, &authdomain.RefreshToken{Token: "old", UserID: "u1", ExpiresAt: time.Now().Add(-time.Hour)}))
	require.NoError(t, repo.SaveRefreshToken(ctx, &authdomain.RefreshToken{Token: "new", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}))

	old, err := repo.FindRefreshToken(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, old)

	current, err := repo.FindRefreshToken(ctx, "new")
	require.NoError(t, err)
	require.NotNil(t, current)

	require.NoError(t, repo.DeleteRefreshTokensByUser(ctx, "u1"))
	current, err = repo.FindRefreshToken(ctx, "new")
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestFCMTokenRepository_Upsert(t *testing.T) {
	ctx := context.Background()
	repo := NewFCMTokenRepository(newTestDB(t))

	require.NoError(t, repo.SaveToken(ctx, "u1", "tok", "chrome"))
	require.NoError(t, repo.SaveToken(ctx, "u2", "tok", "firefox"))

	u1, err := repo.GetTokensByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, u1)

	u2, err := repo.GetTokensByUserID(ctx, "u2")
	require.NoError(t, err)
	require.Len(t, u2, 1)
	assert.Equal(t, "firefox", u2[0].DeviceInfo)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.True(t, CheckPasswordHash("secret1", hash))
	assert.False(t, CheckPasswordHash("secret2", hash))
}
