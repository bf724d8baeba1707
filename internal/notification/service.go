package notification

import (
	"context"
	"log"
	"time"

	authrepo "tasksync-backend/internal/auth/repository"
	notificationdomain "tasksync-backend/internal/notification/domain"
	"tasksync-backend/internal/notification/repository"
	"tasksync-backend/pkg/apperr"
	"tasksync-backend/pkg/fcm"
	"tasksync-backend/pkg/sse"
)

const (
	EventNotification = "notification"
	unreadLimit       = 50
	pushTimeout       = 10 * time.Second
)

// Notifier is what other features use to tell a user something happened.
type Notifier interface {
	Notify(ctx context.Context, userID string, kind notificationdomain.Type, message string, data map[string]string) error
}

// PushSender delivers browser push notifications and returns tokens that
// should be forgotten.
type PushSender interface {
	SendToDevices(ctx context.Context, tokens []string, notification fcm.NotificationData) ([]string, error)
}

type Service struct {
	repo       repository.NotificationRepository
	sseManager *sse.Manager
	fcmRepo    authrepo.FCMTokenRepository
	push       PushSender
}

// NewService wires the notification pipeline. push may be nil when FCM is
// not configured.
func NewService(repo repository.NotificationRepository, sseManager *sse.Manager, fcmRepo authrepo.FCMTokenRepository, push PushSender) *Service {
	return &Service{
		repo:       repo,
		sseManager: sseManager,
		fcmRepo:    fcmRepo,
		push:       push,
	}
}

// Notify persists a notification and delivers it to open streams and
// registered devices.
func (s *Service) Notify(ctx context.Context, userID string, kind notificationdomain.Type, message string, data map[string]string) error {
	_, err := s.deliver(ctx, &notificationdomain.Notification{
		UserID:  userID,
		Type:    kind,
		Message: message,
		Data:    data,
	})
	return err
}

// NotifyOnce is Notify for notifications that must not repeat, such as one
// due-date reminder per task per day. It reports whether anything was sent.
func (s *Service) NotifyOnce(ctx context.Context, userID, dedupeKey string, kind notificationdomain.Type, message string, data map[string]string) (bool, error) {
	return s.deliver(ctx, &notificationdomain.Notification{
		UserID:    userID,
		Type:      kind,
		Message:   message,
		Data:      data,
		DedupeKey: &dedupeKey,
	})
}

func (s *Service) deliver(ctx context.Context, n *notificationdomain.Notification) (bool, error) {
	created, err := s.repo.Create(ctx, n)
	if err != nil || !created {
		return false, err
	}

	if s.sseManager != nil {
		s.sseManager.SendToUser(n.UserID, EventNotification, n)
	}

	if s.push != nil && s.fcmRepo != nil {
		go s.sendPush(*n)
	}
	return true, nil
}

func (s *Service) sendPush(n notificationdomain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()

	tokens, err := s.fcmRepo.GetTokensByUserID(ctx, n.UserID)
	if err != nil {
		log.Printf("[FCM] Error getting tokens for user %s: %v", n.UserID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}

	tokenStrings := make([]string, 0, len(tokens))
	for _, t := range tokens {
		tokenStrings = append(tokenStrings, t.Token)
	}

	data := map[string]string{"type": string(n.Type), "notification_id": n.ID}
	for k, v := range n.Data {
		data[k] = v
	}

	staleTokens, err := s.push.SendToDevices(ctx, tokenStrings, fcm.NotificationData{
		Title: pushTitle(n.Type),
		Body:  n.Message,
		Data:  data,
		Link:  clickAction(n),
	})
	if err != nil {
		log.Printf("[FCM] Error sending notification %s: %v", n.ID, err)
		return
	}

	for _, token := range staleTokens {
		if err := s.fcmRepo.DeleteToken(ctx, token); err != nil {
			log.Printf("[FCM] Failed to delete stale token: %v", err)
		}
	}
}

func (s *Service) ListUnread(ctx context.Context, userID string) ([]notificationdomain.Notification, error) {
	return s.repo.ListUnread(ctx, userID, unreadLimit)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	updated, err := s.repo.MarkRead(ctx, userID, id)
	if err != nil {
		return err
	}
	if !updated {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func pushTitle(kind notificationdomain.Type) string {
	switch kind {
	case notificationdomain.TypeFriendRequest:
		return "New friend request"
	case notificationdomain.TypeFriendAccepted:
		return "Friend request accepted"
	case notificationdomain.TypeTaskShared:
		return "A task was shared with you"
	case notificationdomain.TypeTaskDue:
		return "Task due soon"
	default:
		return "TaskSync"
	}
}

// clickAction returns the path opened when a push is clicked
func clickAction(n notificationdomain.Notification) string {
	switch n.Type {
	case notificationdomain.TypeFriendRequest, notificationdomain.TypeFriendAccepted:
		return "/friends"
	case notificationdomain.TypeTaskShared, notificationdomain.TypeTaskDue:
		if id := n.Data["task_id"]; id != "" {
			return "/tasks/" + id
		}
	}
	return "/"
}
