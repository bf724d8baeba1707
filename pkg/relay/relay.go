// Package relay broadcasts messages between instances of the API through a
// Google Cloud Pub/Sub topic. Each instance reads through its own
// subscription and ignores messages it published itself.
package relay

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

const (
	attrOrigin = "origin"
	// Pub/Sub's minimum; subscriptions of crashed instances expire on their own.
	subscriptionExpiry = 24 * time.Hour
)

type Relay struct {
	client     *pubsub.Client
	topic      *pubsub.Topic
	topicName  string
	subName    string
	instanceID string
}

// New connects to Pub/Sub and makes sure topicName exists.
func New(ctx context.Context, projectID, topicName, instanceID, credentialsFile string) (*Relay, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topic := client.Topic(topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("check topic %s: %w", topicName, err)
	}
	if !exists {
		topic, err = client.CreateTopic(ctx, topicName)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("create topic %s: %w", topicName, err)
		}
		log.Printf("[Relay] Created topic: %s", topicName)
	}

	return &Relay{
		client:     client,
		topic:      topic,
		topicName:  topicName,
		subName:    topicName + "-" + instanceID,
		instanceID: instanceID,
	}, nil
}

// Publish sends data to every other instance and waits for the server ack.
func (r *Relay) Publish(ctx context.Context, data []byte) error {
	result := r.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{attrOrigin: r.instanceID},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish to %s: %w", r.topicName, err)
	}
	return nil
}

// Receive creates this instance's subscription if needed and calls handle
// for every message from other instances until ctx is done.
func (r *Relay) Receive(ctx context.Context, handle func(ctx context.Context, data []byte)) error {
	sub := r.client.Subscription(r.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check subscription %s: %w", r.subName, err)
	}
	if !exists {
		sub, err = r.client.CreateSubscription(ctx, r.subName, pubsub.SubscriptionConfig{
			Topic:            r.topic,
			AckDeadline:      10 * time.Second,
			ExpirationPolicy: subscriptionExpiry,
		})
		if err != nil {
			return fmt.Errorf("create subscription %s: %w", r.subName, err)
		}
		log.Printf("[Relay] Created subscription: %s", r.subName)
	}

	log.Printf("[Relay] Listening on subscription: %s", r.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		defer msg.Ack()
		if msg.Attributes[attrOrigin] == r.instanceID {
			return
		}
		handle(ctx, msg.Data)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("receive on %s: %w", r.subName, err)
	}
	return nil
}

// Close removes this instance's subscription and releases the client.
func (r *Relay) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Subscription(r.subName).Delete(ctx); err != nil {
		log.Printf("[Relay] Failed to delete subscription %s: %v", r.subName, err)
	}
	r.topic.Stop()
	return r.client.Close()
}
