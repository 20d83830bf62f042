package domain

import (
	"context"
	"time"
)

// QueueMessage is a raw command delivery. Deliveries counts how many times
// the transport has handed this message out, including the current one.
type QueueMessage struct {
	ID         string
	Payload    []byte
	Deliveries int64
	EnqueuedAt time.Time
}

// CommandQueue is the at-least-once transport the consumer loop pulls from.
// Receive blocks until a message is available or ctx is done. A message that
// is never acknowledged becomes eligible for redelivery after the transport's
// visibility timeout.
type CommandQueue interface {
	Enqueue(ctx context.Context, payload []byte) (string, error)
	Receive(ctx context.Context) (QueueMessage, error)
	Ack(ctx context.Context, id string) error
}
