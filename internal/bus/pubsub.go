package bus

import (
	"context"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/apiv1"
	"cloud.google.com/go/pubsub/apiv1/pubsubpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ackDeadlineSeconds is how long the provider waits for an ack before
// redelivering a pulled message to another worker.
const ackDeadlineSeconds = 30

// PubSub is the production Bus, backed by Google Cloud Pub/Sub. It uses
// the unary Pull/Acknowledge RPCs rather than the streaming client: the
// worker wants exactly one message at a time and owns its own loop.
type PubSub struct {
	publisher    *pubsub.PublisherClient
	subscriber   *pubsub.SubscriberClient
	topic        string
	subscription string
}

// NewPubSub creates clients for the given topic and subscription.
// Call Bootstrap to create them on the provider if they may not exist.
func NewPubSub(ctx context.Context, project, topic, subscription string) (*PubSub, error) {
	publisher, err := pubsub.NewPublisherClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create pubsub publisher: %w", err)
	}
	subscriber, err := pubsub.NewSubscriberClient(ctx)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("create pubsub subscriber: %w", err)
	}
	return &PubSub{
		publisher:    publisher,
		subscriber:   subscriber,
		topic:        fmt.Sprintf("projects/%s/topics/%s", project, topic),
		subscription: fmt.Sprintf("projects/%s/subscriptions/%s", project, subscription),
	}, nil
}

// Bootstrap creates the topic and subscription if they do not exist.
func (p *PubSub) Bootstrap(ctx context.Context) error {
	_, err := p.publisher.CreateTopic(ctx, &pubsubpb.Topic{Name: p.topic})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	_, err = p.subscriber.CreateSubscription(ctx, &pubsubpb.Subscription{
		Name:               p.subscription,
		Topic:              p.topic,
		AckDeadlineSeconds: ackDeadlineSeconds,
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return fmt.Errorf("create subscription %s: %w", p.subscription, err)
	}
	return nil
}

// Publish implements Bus.
func (p *PubSub) Publish(ctx context.Context, msg Message) error {
	_, err := p.publisher.Publish(ctx, &pubsubpb.PublishRequest{
		Topic: p.topic,
		Messages: []*pubsubpb.PubsubMessage{{
			Data:       msg.Data,
			Attributes: msg.Attributes,
		}},
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Pull implements Bus. The provider blocks the call for its own wait
// window when no messages are available.
func (p *PubSub) Pull(ctx context.Context, max int) ([]Delivery, error) {
	resp, err := p.subscriber.Pull(ctx, &pubsubpb.PullRequest{
		Subscription: p.subscription,
		MaxMessages:  int32(max),
	})
	if err != nil {
		return nil, fmt.Errorf("pull from %s: %w", p.subscription, err)
	}
	out := make([]Delivery, 0, len(resp.ReceivedMessages))
	for _, rm := range resp.ReceivedMessages {
		out = append(out, Delivery{
			AckID: rm.AckId,
			Msg: Message{
				Data:       rm.Message.Data,
				Attributes: rm.Message.Attributes,
			},
		})
	}
	return out, nil
}

// Acknowledge implements Bus.
func (p *PubSub) Acknowledge(ctx context.Context, ackIDs []string) error {
	if len(ackIDs) == 0 {
		return nil
	}
	err := p.subscriber.Acknowledge(ctx, &pubsubpb.AcknowledgeRequest{
		Subscription: p.subscription,
		AckIds:       ackIDs,
	})
	if err != nil {
		return fmt.Errorf("acknowledge on %s: %w", p.subscription, err)
	}
	return nil
}

// Close releases both clients.
func (p *PubSub) Close() error {
	err := p.publisher.Close()
	if serr := p.subscriber.Close(); err == nil {
		err = serr
	}
	return err
}
