package usecase

import (
	"context"
	"fmt"
	"log"

	authdomain "tasksync-backend/internal/auth/domain"
	authrepo "tasksync-backend/internal/auth/repository"
	frienddomain "tasksync-backend/internal/friend/domain"
	frienddto "tasksync-backend/internal/friend/dto"
	"tasksync-backend/internal/friend/repository"
	"tasksync-backend/internal/notification"
	notificationdomain "tasksync-backend/internal/notification/domain"
	"tasksync-backend/pkg/apperr"
)

type friendUsecase struct {
	friendRepo  repository.FriendRepository
	accountRepo authrepo.AccountRepository
	notifier    notification.Notifier
}

// NewFriendUsecase creates the relationship graph. notifier may be nil.
func NewFriendUsecase(friendRepo repository.FriendRepository, accountRepo authrepo.AccountRepository, notifier notification.Notifier) FriendUsecase {
	return &friendUsecase{
		friendRepo:  friendRepo,
		accountRepo: accountRepo,
		notifier:    notifier,
	}
}

func (u *friendUsecase) SendRequest(ctx context.Context, fromID, toHandle string) error {
	handle := authdomain.NormalizeHandle(toHandle)
	if authdomain.ValidateHandle(handle) != nil {
		return apperr.ErrUnknownUser
	}
	recipient, err := u.accountRepo.FindByHandle(ctx, handle)
	if err != nil {
		return err
	}
	if recipient == nil {
		return apperr.ErrUnknownUser
	}
	if recipient.ID == fromID {
		return apperr.ErrSelfRequest
	}

	friends, err := u.friendRepo.AreFriends(ctx, fromID, recipient.ID)
	if err != nil {
		return err
	}
	if friends {
		return apperr.ErrAlreadyFriends
	}

	created, err := u.friendRepo.SaveRequest(ctx, recipient.ID, fromID)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	log.Printf("[Friend] %s sent a request to %s", fromID, recipient.ID)
	u.notify(ctx, recipient.ID, fromID, notificationdomain.TypeFriendRequest, "%s sent you a friend request")
	return nil
}

// Accept links both accounts in one write. Retrying after the friendship
// already exists succeeds without changes.
func (u *friendUsecase) Accept(ctx context.Context, selfID, fromID string) error {
	request, err := u.friendRepo.FindRequest(ctx, selfID, fromID)
	if err != nil {
		return err
	}
	if request == nil || request.Status != frienddomain.StatusRequested {
		friends, err := u.friendRepo.AreFriends(ctx, selfID, fromID)
		if err != nil {
			return err
		}
		if friends {
			return nil
		}
		return fmt.Errorf("friend request: %w", apperr.ErrNotFound)
	}

	if err := u.friendRepo.Link(ctx, selfID, fromID); err != nil {
		return &apperr.StepError{Operation: "accept friend request", Step: "link", Err: err}
	}

	log.Printf("[Friend] %s accepted %s", selfID, fromID)
	u.notify(ctx, fromID, selfID, notificationdomain.TypeFriendAccepted, "%s accepted your friend request")
	return nil
}

// Decline drops the pending request so the requester may ask again later.
func (u *friendUsecase) Decline(ctx context.Context, selfID, fromID string) error {
	deleted, err := u.friendRepo.DeleteRequest(ctx, selfID, fromID)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("friend request: %w", apperr.ErrNotFound)
	}
	return nil
}

// Remove unlinks both sides. Tasks already shared between the two accounts
// keep their share lists.
func (u *friendUsecase) Remove(ctx context.Context, selfID, otherID string) error {
	if selfID == otherID {
		return apperr.ErrSelfRequest
	}
	return u.friendRepo.Unlink(ctx, selfID, otherID)
}

func (u *friendUsecase) ListFriends(ctx context.Context, selfID string) ([]authdomain.Profile, error) {
	ids, err := u.friendRepo.FriendIDs(ctx, selfID)
	if err != nil {
		return nil, err
	}
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

func (u *friendUsecase) ListIncoming(ctx context.Context, selfID string) ([]frienddto.RequestView, error) {
	requests, err := u.friendRepo.IncomingRequests(ctx, selfID)
	if err != nil {
		return nil, err
	}
	return u.views(ctx, requests, func(r frienddomain.Request) string { return r.RequesterID })
}

func (u *friendUsecase) ListOutgoing(ctx context.Context, selfID string) ([]frienddto.RequestView, error) {
	requests, err := u.friendRepo.OutgoingRequests(ctx, selfID)
	if err != nil {
		return nil, err
	}
	return u.views(ctx, requests, func(r frienddomain.Request) string { return r.RecipientID })
}

// views attaches the other side's profile to each request, dropping
// requests whose account no longer resolves.
func (u *friendUsecase) views(ctx context.Context, requests []frienddomain.Request, other func(frienddomain.Request) string) ([]frienddto.RequestView, error) {
	ids := make([]string, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, other(r))
	}
	accounts, err := u.accountRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*authdomain.Account, len(accounts))
	for _, a := range accounts {
		byID[a.ID] = a
	}

	views := make([]frienddto.RequestView, 0, len(requests))
	for _, r := range requests {
		account, ok := byID[other(r)]
		if !ok {
			continue
		}
		views = append(views, frienddto.RequestView{
			Account:   account.Profile(),
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
		})
	}
	return views, nil
}

func (u *friendUsecase) Relationship(ctx context.Context, selfID, otherID string) (frienddomain.Relationship, error) {
	friends, err := u.friendRepo.AreFriends(ctx, selfID, otherID)
	if err != nil {
		return "", err
	}
	if friends {
		return frienddomain.RelationshipFriends, nil
	}

	outgoing, err := u.friendRepo.FindRequest(ctx, otherID, selfID)
	if err != nil {
		return "", err
	}
	if outgoing != nil {
		return frienddomain.RelationshipRequested, nil
	}

	incoming, err := u.friendRepo.FindRequest(ctx, selfID, otherID)
	if err != nil {
		return "", err
	}
	if incoming != nil {
		return frienddomain.RelationshipIncoming, nil
	}
	return frienddomain.RelationshipNone, nil
}

func (u *friendUsecase) FriendIDs(ctx context.Context, selfID string) ([]string, error) {
	return u.friendRepo.FriendIDs(ctx, selfID)
}

func (u *friendUsecase) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return u.friendRepo.AreFriends(ctx, a, b)
}

// notify tells userID about something actorID did. Failures are logged;
// the relationship change has already been committed.
func (u *friendUsecase) notify(ctx context.Context, userID, actorID string, kind notificationdomain.Type, format string) {
	if u.notifier == nil {
		return
	}
	name := actorID
	if actor, err := u.accountRepo.FindByID(ctx, actorID); err == nil && actor != nil {
		name = actor.DisplayName
	}
	data := map[string]string{"account_id": actorID}
	if err := u.notifier.Notify(ctx, userID, kind, fmt.Sprintf(format, name), data); err != nil {
		log.Printf("[Friend] Failed to notify %s: %v", userID, err)
	}
}
