package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	authdomain "tasksync-backend/internal/auth/domain"
	"tasksync-backend/pkg/apperr"
	"tasksync-backend/pkg/firebaseapp"
)

const (
	CollectionUsers     = "users"
	CollectionUsernames = "usernames"
)

type usernameDoc struct {
	UID string `firestore:"uid"`
}

// firestoreAccountRepository keeps accounts in users/{uid} and the handle
// mapping in usernames/{handle}. Both documents are written in one
// transaction.
type firestoreAccountRepository struct {
	client *firestore.Client
}

func NewFirestoreAccountRepository(client *firestore.Client) AccountRepository {
	return &firestoreAccountRepository{client: client}
}

func (r *firestoreAccountRepository) Create(ctx context.Context, account *authdomain.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	handleRef := r.client.Collection(CollectionUsernames).Doc(account.Handle)
	userRef := r.client.Collection(CollectionUsers).Doc(account.ID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(handleRef)
		if err == nil && snap.Exists() {
			return apperr.ErrHandleTaken
		}
		if err != nil && !firebaseapp.IsNotFound(err) {
			return err
		}
		if err := tx.Create(userRef, map[string]interface{}{
			"username":       account.Handle,
			"displayName":    account.DisplayName,
			"passwordHash":   account.PasswordHash,
			"createdAt":      account.CreatedAt,
			"updatedAt":      account.UpdatedAt,
			"friends":        []string{},
			"friendRequests": map[string]string{},
			"categories":     []string{},
		}); err != nil {
			return err
		}
		return tx.Create(handleRef, usernameDoc{UID: account.ID})
	})
	switch {
	case err == nil:
		return nil
	case err == apperr.ErrHandleTaken, firebaseapp.IsAlreadyExists(err):
		return apperr.ErrHandleTaken
	default:
		return apperr.Transient("create account", err)
	}
}

func (r *firestoreAccountRepository) FindByHandle(ctx context.Context, handle string) (*authdomain.Account, error) {
	snap, err := r.client.Collection(CollectionUsernames).Doc(handle).Get(ctx)
	if err != nil {
		if firebaseapp.IsNotFound(err) {
			return nil, nil
		}
		return nil, apperr.Transient("find handle", err)
	}
	var mapping usernameDoc
	if err := snap.DataTo(&mapping); err != nil {
		return nil, apperr.Transient("decode handle", err)
	}
	if mapping.UID == "" {
		return nil, nil
	}
	return r.FindByID(ctx, mapping.UID)
}

func (r *firestoreAccountRepository) FindByID(ctx context.Context, id string) (*authdomain.Account, error) {
	snap, err := r.client.Collection(CollectionUsers).Doc(id).Get(ctx)
	if err != nil {
		if firebaseapp.IsNotFound(err) {
			return nil, nil
		}
		return nil, apperr.Transient("find account", err)
	}
	return decodeAccount(snap)
}

func (r *firestoreAccountRepository) FindByIDs(ctx context.Context, ids []string) ([]*authdomain.Account, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, r.client.Collection(CollectionUsers).Doc(id))
	}
	snaps, err := r.client.GetAll(ctx, refs)
	if err != nil {
		return nil, apperr.Transient("find accounts", err)
	}
	accounts := make([]*authdomain.Account, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		account, err := decodeAccount(snap)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (r *firestoreAccountRepository) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	_, err := r.client.Collection(CollectionUsers).Doc(id).Update(ctx, []firestore.Update{
		{Path: "displayName", Value: displayName},
		{Path: "updatedAt", Value: time.Now()},
	})
	if firebaseapp.IsNotFound(err) {
		return apperr.ErrNotFound
	}
	return apperr.Transient("update account", err)
}

func decodeAccount(snap *firestore.DocumentSnapshot) (*authdomain.Account, error) {
	var account authdomain.Account
	if err := snap.DataTo(&account); err != nil {
		return nil, apperr.Transient("decode account", err)
	}
	account.ID = snap.Ref.ID
	return &account, nil
}
