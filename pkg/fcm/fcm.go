package fcm

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

// Client wraps Firebase Cloud Messaging functionality
type Client struct {
	messagingClient *messaging.Client
}

// NewClient creates an FCM client from an initialized Firebase app
func NewClient(ctx context.Context, app *firebase.App) (*Client, error) {
	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	log.Println("[FCM] Client initialized successfully")
	return &Client{
		messagingClient: messagingClient,
	}, nil
}

// NotificationData contains the data to send in a push notification
type NotificationData struct {
	Title string
	Body  string
	Data  map[string]string // Custom data payload
	Link  string            // Path opened when the notification is clicked
}

// SendToDevices sends a push notification to multiple device tokens.
// It returns the tokens the provider rejected as unregistered or invalid,
// which callers should forget.
func (c *Client) SendToDevices(ctx context.Context, tokens []string, notification NotificationData) ([]string, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: notification.Title,
			Body:  notification.Body,
		},
		Data: notification.Data,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: notification.Title,
				Body:  notification.Body,
				Icon:  "/icon-192.png",
			},
		},
	}
	if notification.Link != "" {
		message.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: notification.Link}
	}

	response, err := c.messagingClient.SendEachForMulticast(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to send FCM multicast message: %w", err)
	}

	log.Printf("[FCM] Multicast sent: %d success, %d failures", response.SuccessCount, response.FailureCount)

	var staleTokens []string
	for i, resp := range response.Responses {
		if resp.Success {
			continue
		}
		log.Printf("[FCM] Failed to send to token %s: %v", shortToken(tokens[i]), resp.Error)
		if messaging.IsUnregistered(resp.Error) || messaging.IsInvalidArgument(resp.Error) {
			staleTokens = append(staleTokens, tokens[i])
		}
	}

	return staleTokens, nil
}

func shortToken(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}
