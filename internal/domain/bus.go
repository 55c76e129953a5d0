package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (community) or NATS (pro).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (community tier)
	ChannelBufferSize int

	// NATS settings (pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the run and batch lifecycles.
const (
	TopicRunInitiated   = "dunlin.run.initiated"
	TopicRunCompleted   = "dunlin.run.completed"
	TopicRunFailed      = "dunlin.run.failed"
	TopicBatchSubmitted = "dunlin.batch.submitted"
	TopicBatchCompleted = "dunlin.batch.completed"
)

// RunEvent is the payload published on run lifecycle topics. The observer
// worker attaches a status poll to the remote run it names.
type RunEvent struct {
	RunID       string      `json:"runId"`
	RuleID      string      `json:"ruleId"`
	RemoteID    string      `json:"remoteId"`
	TriggerType TriggerType `json:"triggerType"`
	Outcome     string      `json:"outcome,omitempty"`
}

// BatchEvent is the payload published on batch lifecycle topics.
type BatchEvent struct {
	BatchID  string    `json:"batchId"`
	RemoteID string    `json:"remoteId"`
	Kind     BatchKind `json:"kind"`
	Outcome  string    `json:"outcome,omitempty"`
}
