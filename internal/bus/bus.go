// Package bus is the publish/subscribe transport carrying query batches
// from producers to workers. Delivery is at-least-once and fire-and-
// forget: producers never learn from the bus whether a message was
// processed, only from the correlation store.
package bus

import "context"

// Message is one published unit: an opaque body plus string attributes.
type Message struct {
	Data       []byte
	Attributes map[string]string
}

// Delivery is one pulled message together with the acknowledgement id
// the provider expects back.
type Delivery struct {
	AckID string
	Msg   Message
}

// Bus is the contract the pipeline consumes.
type Bus interface {
	// Publish sends one message. Returning nil means the provider
	// accepted it, not that anyone will process it.
	Publish(ctx context.Context, msg Message) error

	// Pull blocks for at most the provider's wait window and returns up
	// to max deliveries. An empty slice with a nil error means no
	// message arrived in the window.
	Pull(ctx context.Context, max int) ([]Delivery, error)

	// Acknowledge removes the identified deliveries from redelivery.
	Acknowledge(ctx context.Context, ackIDs []string) error
}
