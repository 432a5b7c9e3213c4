// Package bus provides the in-process event bus used for best-effort
// notifications between orchestrators. Delivery is not guaranteed; a failed
// publish is logged and never rolls back the operation that triggered it.
package bus

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"tailor/internal/logging"
)

// Topics carried on the bus.
const (
	TopicRequirementsSubmitted = "requirements.submitted"
	TopicStageChanged          = "session.stage_changed"
	TopicTranscriptReady       = "audio.transcript_ready"
)

// RequirementsSubmitted announces a successful extraction.
type RequirementsSubmitted struct {
	Source string `json:"source"` // "url" or "text"
}

// StageChanged announces a pipeline stage transition.
type StageChanged struct {
	SessionID string `json:"session_id"`
	Stage     string `json:"stage"`
}

// TranscriptReady announces transcription text destined for the chat input.
type TranscriptReady struct {
	Text string `json:"text"`
}

// Bus wraps an in-memory pub/sub channel.
type Bus struct {
	pubSub *gochannel.GoChannel
	logger *slog.Logger
}

// New constructs the bus. Subscribers created after a publish do not see
// earlier events.
func New(logger *slog.Logger) *Bus {
	component := logging.NewComponentLogger(logger, "bus")
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermill.NewSlogLogger(component),
	)
	return &Bus{pubSub: pubSub, logger: component}
}

// Publish emits an event without delivery guarantees. Failures are logged
// and swallowed so callers never treat a notification miss as an error.
func (b *Bus) Publish(topic string, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		b.logger.Warn("event encode failed",
			logging.String("topic", topic),
			logging.Error(err),
		)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), encoded)
	if err := b.pubSub.Publish(topic, msg); err != nil {
		b.logger.Warn("event publish failed",
			logging.String("topic", topic),
			logging.Error(err),
		)
	}
}

// Subscribe returns a channel of raw messages for a topic. Consumers must
// Ack each message.
func (b *Bus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return b.pubSub.Subscribe(ctx, topic)
}

// Close shuts down the underlying channel and terminates subscriptions.
func (b *Bus) Close() error {
	return b.pubSub.Close()
}

// Decode unmarshals a message payload into out and acks the message.
func Decode(msg *message.Message, out any) error {
	defer msg.Ack()
	return json.Unmarshal(msg.Payload, out)
}
