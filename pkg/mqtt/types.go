package mqtt

import (
	"context"
)

// MessageHandler processes one received MQTT message.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is a broker connection that survives reconnects and restores its
// subscriptions.
type Client interface {
	// Start initiates the connection to the broker.
	// It is non-blocking and returns immediately. Use AwaitConnection to wait.
	Start(ctx context.Context) error

	// Disconnect cleanly closes the connection.
	Disconnect(ctx context.Context)

	// Publish sends a message to the specified topic.
	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers a handler for a topic filter and sends SUBSCRIBE.
	// Registered filters are re-subscribed after every reconnect.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	// Unsubscribe removes the handler and sends an UNSUBSCRIBE packet.
	Unsubscribe(ctx context.Context, topic string) error

	// AwaitConnection blocks until the client is connected to the broker.
	AwaitConnection(ctx context.Context) error

	// IsConnected reports whether the last connection attempt succeeded and
	// has not been torn down since.
	IsConnected() bool
}
