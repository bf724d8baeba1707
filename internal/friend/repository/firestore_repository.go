package repository

import (
	"context"
	"errors"
	"slices"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	frienddomain "tasksync-backend/internal/friend/domain"
	"tasksync-backend/pkg/apperr"
	"tasksync-backend/pkg/firebaseapp"
)

const collectionUsers = "users"

// graphFields is the part of users/{uid} owned by the relationship graph.
type graphFields struct {
	Friends        []string          `firestore:"friends"`
	FriendRequests map[string]string `firestore:"friendRequests"`
}

// firestoreFriendRepository keeps the graph on the account documents:
// friends[] holds accepted ids and friendRequests{requesterId: status}
// holds requests pending on that account.
type firestoreFriendRepository struct {
	client *firestore.Client
}

func NewFirestoreFriendRepository(client *firestore.Client) FriendRepository {
	return &firestoreFriendRepository{client: client}
}

func (r *firestoreFriendRepository) user(id string) *firestore.DocumentRef {
	return r.client.Collection(collectionUsers).Doc(id)
}

func (r *firestoreFriendRepository) load(ctx context.Context, id string) (*graphFields, error) {
	snap, err := r.user(id).Get(ctx)
	if err != nil {
		if firebaseapp.IsNotFound(err) {
			return &graphFields{}, nil
		}
		return nil, apperr.Transient("load account graph", err)
	}
	var fields graphFields
	if err := snap.DataTo(&fields); err != nil {
		return nil, apperr.Transient("decode account graph", err)
	}
	return &fields, nil
}

func (r *firestoreFriendRepository) FriendIDs(ctx context.Context, accountID string) ([]string, error) {
	fields, err := r.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return fields.Friends, nil
}

func (r *firestoreFriendRepository) AreFriends(ctx context.Context, a, b string) (bool, error) {
	fields, err := r.load(ctx, a)
	if err != nil {
		return false, err
	}
	return slices.Contains(fields.Friends, b), nil
}

func (r *firestoreFriendRepository) IncomingRequests(ctx context.Context, recipientID string) ([]frienddomain.Request, error) {
	fields, err := r.load(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	var requests []frienddomain.Request
	for requesterID, status := range fields.FriendRequests {
		if frienddomain.RequestStatus(status) != frienddomain.StatusRequested {
			continue
		}
		requests = append(requests, frienddomain.Request{
			RecipientID: recipientID,
			RequesterID: requesterID,
			Status:      frienddomain.StatusRequested,
		})
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].RequesterID < requests[j].RequesterID })
	return requests, nil
}

func (r *firestoreFriendRepository) OutgoingRequests(ctx context.Context, requesterID string) ([]frienddomain.Request, error) {
	iter := r.client.Collection(collectionUsers).
		WherePath(firestore.FieldPath{"friendRequests", requesterID}, "==", string(frienddomain.StatusRequested)).
		Documents(ctx)
	defer iter.Stop()

	var requests []frienddomain.Request
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, apperr.Transient("list outgoing requests", err)
		}
		requests = append(requests, frienddomain.Request{
			RecipientID: snap.Ref.ID,
			RequesterID: requesterID,
			Status:      frienddomain.StatusRequested,
		})
	}
	return requests, nil
}

func (r *firestoreFriendRepository) FindRequest(ctx context.Context, recipientID, requesterID string) (*frienddomain.Request, error) {
	fields, err := r.load(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	status, ok := fields.FriendRequests[requesterID]
	if !ok {
		return nil, nil
	}
	return &frienddomain.Request{
		RecipientID: recipientID,
		RequesterID: requesterID,
		Status:      frienddomain.RequestStatus(status),
	}, nil
}

func (r *firestoreFriendRepository) SaveRequest(ctx context.Context, recipientID, requesterID string) (bool, error) {
	created := false
	ref := r.user(recipientID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var fields graphFields
		if err := snap.DataTo(&fields); err != nil {
			return err
		}
		if frienddomain.RequestStatus(fields.FriendRequests[requesterID]) == frienddomain.StatusRequested {
			return nil
		}
		created = true
		return tx.Update(ref, []firestore.Update{
			{FieldPath: firestore.FieldPath{"friendRequests", requesterID}, Value: string(frienddomain.StatusRequested)},
		})
	})
	if err != nil {
		if firebaseapp.IsNotFound(err) {
			return false, apperr.ErrUnknownUser
		}
		return false, apperr.Transient("save friend request", err)
	}
	return created, nil
}

func (r *firestoreFriendRepository) DeleteRequest(ctx context.Context, recipientID, requesterID string) (bool, error) {
	existing, err := r.FindRequest(ctx, recipientID, requesterID)
	if err != nil || existing == nil {
		return false, err
	}
	_, err = r.user(recipientID).Update(ctx, []firestore.Update{
		{FieldPath: firestore.FieldPath{"friendRequests", requesterID}, Value: firestore.Delete},
	})
	if err != nil {
		return false, apperr.Transient("delete friend request", err)
	}
	return true, nil
}

func (r *firestoreFriendRepository) Link(ctx context.Context, a, b string) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Update(r.user(a), []firestore.Update{
			{Path: "friends", Value: firestore.ArrayUnion(b)},
			{FieldPath: firestore.FieldPath{"friendRequests", b}, Value: firestore.Delete},
		}); err != nil {
			return err
		}
		return tx.Update(r.user(b), []firestore.Update{
			{Path: "friends", Value: firestore.ArrayUnion(a)},
			{FieldPath: firestore.FieldPath{"friendRequests", a}, Value: firestore.Delete},
		})
	})
	return apperr.Transient("link friends", err)
}

func (r *firestoreFriendRepository) Unlink(ctx context.Context, a, b string) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Update(r.user(a), []firestore.Update{{Path: "friends", Value: firestore.ArrayRemove(b)}}); err != nil {
			return err
		}
		return tx.Update(r.user(b), []firestore.Update{{Path: "friends", Value: firestore.ArrayRemove(a)}})
	})
	return apperr.Transient("unlink friends", err)
}
