package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	frienddomain "tasksync-backend/internal/friend/domain"
	"tasksync-backend/pkg/apperr"
)

type gormFriendRepository struct {
	db *gorm.DB
}

func NewGormFriendRepository(db *gorm.DB) FriendRepository {
	return &gormFriendRepository{db: db}
}

func (r *gormFriendRepository) FriendIDs(ctx context.Context, accountID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&frienddomain.Friendship{}).
		Where("account_id = ?", accountID).
		Order("created_at ASC").
		Pluck("friend_id", &ids).Error
	if err != nil {
		return nil, apperr.Transient("list friends", err)
	}
	return ids, nil
}

func (r *gormFriendRepository) AreFriends(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&frienddomain.Friendship{}).
		Where("account_id = ? AND friend_id = ?", a, b).
		Count(&count).Error
	if err != nil {
		return false, apperr.Transient("check friendship", err)
	}
	return count > 0, nil
}

func (r *gormFriendRepository) IncomingRequests(ctx context.Context, recipientID string) ([]frienddomain.Request, error) {
	return r.listRequests(ctx, "recipient_id = ?", recipientID)
}

func (r *gormFriendRepository) OutgoingRequests(ctx context.Context, requesterID string) ([]frienddomain.Request, error) {
	return r.listRequests(ctx, "requester_id = ?", requesterID)
}

func (r *gormFriendRepository) listRequests(ctx context.Context, query, arg string) ([]frienddomain.Request, error) {
	var requests []frienddomain.Request
	err := r.db.WithContext(ctx).
		Where(query+" AND status = ?", arg, frienddomain.StatusRequested).
		Order("created_at DESC").
		Find(&requests).Error
	if err != nil {
		return nil, apperr.Transient("list friend requests", err)
	}
	return requests, nil
}

func (r *gormFriendRepository) FindRequest(ctx context.Context, recipientID, requesterID string) (*frienddomain.Request, error) {
	var request frienddomain.Request
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND requester_id = ?", recipientID, requesterID).
		First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperr.Transient("find friend request", err)
	}
	return &request, nil
}

func (r *gormFriendRepository) SaveRequest(ctx context.Context, recipientID, requesterID string) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&frienddomain.Request{
		RecipientID: recipientID,
		RequesterID: requesterID,
		Status:      frienddomain.StatusRequested,
		CreatedAt:   time.Now(),
	})
	if res.Error != nil {
		return false, apperr.Transient("save friend request", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormFriendRepository) DeleteRequest(ctx context.Context, recipientID, requesterID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("recipient_id = ? AND requester_id = ?", recipientID, requesterID).
		Delete(&frienddomain.Request{})
	if res.Error != nil {
		return false, apperr.Transient("delete friend request", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *gormFriendRepository) Link(ctx context.Context, a, b string) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		links := []frienddomain.Friendship{
			{AccountID: a, FriendID: b, CreatedAt: now},
			{AccountID: b, FriendID: a, CreatedAt: now},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
			return err
		}
		return tx.Where("(recipient_id = ? AND requester_id = ?) OR (recipient_id = ? AND requester_id = ?)", a, b, b, a).
			Delete(&frienddomain.Request{}).Error
	})
	return apperr.Transient("link friends", err)
}

func (r *gormFriendRepository) Unlink(ctx context.Context, a, b string) error {
	err := r.db.WithContext(ctx).
		Where("(account_id = ? AND friend_id = ?) OR (account_id = ? AND friend_id = ?)", a, b, b, a).
		Delete(&frienddomain.Friendship{}).Error
	return apperr.Transient("unlink friends", err)
}
