package pubsub

import (
	"context"
	"encoding/json"
)

// Message is one notice on the bus. The publisher sets Payload to a typed
// value; the transport serializes it once on publish, and subscribers
// recover it with Decode.
type Message struct {
	// Topic identifies the channel the message belongs to (e.g., "chat.message.new").
	Topic string
	// ConversationID identifies the conversation the message relates to.
	ConversationID string
	// Payload is the typed value being published.
	Payload any
	// Metadata can contain arbitrary key-value pairs for context.
	Metadata map[string]string

	// raw holds the serialized payload on the delivery side.
	raw []byte
}

// Decode unmarshals the payload into v. On a message built locally rather
// than delivered by a transport, it serializes Payload first, so handlers
// can be driven directly without a running bus.
func (m Message) Decode(v any) error {
	raw := m.raw
	if raw == nil {
		encoded, err := json.Marshal(m.Payload)
		if err != nil {
			return err
		}
		raw = encoded
	}
	return json.Unmarshal(raw, v)
}

// Handler defines the function signature for processing a received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for sending messages to the Pub/Sub system.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for receiving messages from the Pub/Sub system.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing messages with
	// the handler. The subscription runs until the context is canceled.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
