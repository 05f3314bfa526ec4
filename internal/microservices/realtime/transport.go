package realtime

import "context"

// Message is a raw payload received on a subscribed channel.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription is a live stream of messages for a set of channels. Events()
// is closed when the transport loses the subscription; callers recover by
// resubscribing.
type Subscription interface {
	Events() <-chan Message
	Close() error
}

// Transport is the abstract pub/sub boundary. Delivery is at-least-once and
// best-effort with no ordering guarantee across channels; client-side merge
// logic is idempotent for exactly that reason.
type Transport interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (Subscription, error)
}
