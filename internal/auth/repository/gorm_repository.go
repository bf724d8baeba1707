package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	authdomain "tasksync-backend/internal/auth/domain"
	"tasksync-backend/pkg/apperr"
)

// gormAccountRepository implements AccountRepository using GORM. The unique
// index on accounts.handle is the handle -> id mapping, so creating the row
// claims the handle atomically.
type gormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GORM-based AccountRepository
func NewGormAccountRepository(db *gorm.DB) AccountRepository {
	return &gormAccountRepository{db: db}
}

func (r *gormAccountRepository) Create(ctx context.Context, account *authdomain.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	err := r.db.WithContext(ctx).Create(account).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.ErrHandleTaken
	}
	return apperr.Transient("create account", err)
}

func (r *gormAccountRepository) FindByHandle(ctx context.Context, handle string) (*authdomain.Account, error) {
	return r.findOne(ctx, "handle = ?", handle)
}

func (r *gormAccountRepository) FindByID(ctx context.Context, id string) (*authdomain.Account, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *gormAccountRepository) findOne(ctx context.Context, query string, arg string) (*authdomain.Account, error) {
	var account authdomain.Account
	err := r.db.WithContext(ctx).Where(query, arg).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Transient("find account", err)
	}
	return &account, nil
}

func (r *gormAccountRepository) FindByIDs(ctx context.Context, ids []string) ([]*authdomain.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var accounts []*authdomain.Account
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("handle ASC").Find(&accounts).Error; err != nil {
		return nil, apperr.Transient("find accounts", err)
	}
	return accounts, nil
}

func (r *gormAccountRepository) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	res := r.db.WithContext(ctx).Model(&authdomain.Account{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"display_name": displayName,
			"updated_at":   time.Now(),
		})
	if res.Error != nil {
		return apperr.Transient("update account", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// gormTokenRepository implements TokenRepository using GORM
type gormTokenRepository struct {
	db *gorm.DB
}

func NewGormTokenRepository(db *gorm.DB) TokenRepository {
	return &gormTokenRepository{db: db}
}

// SaveRefreshToken adds a refresh token without touching the user's other
// tokens, so each device keeps its own session. Expired tokens are pruned.
func (r *gormTokenRepository) SaveRefreshToken(ctx context.Context, token *authdomain.RefreshToken) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND expires_at < ?", token.UserID, time.Now()).Delete(&authdomain.RefreshToken{}).Error; err != nil {
			return err
		}
		return tx.Create(token).Error
	})
	return apperr.Transient("save refresh token", err)
}

func (r *gormTokenRepository) FindRefreshToken(ctx context.Context, token string) (*authdomain.RefreshToken, error) {
	var refreshToken authdomain.RefreshToken
	err := r.db.WithContext(ctx).Where("token = ?", token).First(&refreshToken).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Transient("find refresh token", err)
	}
	return &refreshToken, nil
}

func (r *gormTokenRepository) DeleteRefreshToken(ctx context.Context, token string) error {
	err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&authdomain.RefreshToken{}).Error
	return apperr.Transient("delete refresh token", err)
}

func (r *gormTokenRepository) DeleteRefreshTokensByUser(ctx context.Context, userID string) error {
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&authdomain.RefreshToken{}).Error
	return apperr.Transient("delete refresh tokens", err)
}
