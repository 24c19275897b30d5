package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	rediscommon "github.com/zukhriddin2012/c-space-niya-sub004/common/redis"
)

// StreamDispatcher queues prompts on a Redis Stream for the notify relay.
type StreamDispatcher struct {
	client *redis.Client
	stream string
	logger *zap.Logger
}

func NewStreamDispatcher(client *redis.Client, stream string, logger *zap.Logger) *StreamDispatcher {
	return &StreamDispatcher{client: client, stream: stream, logger: logger}
}

var _ Dispatcher = (*StreamDispatcher)(nil)

func (d *StreamDispatcher) Channel() string { return "stream" }

func (d *StreamDispatcher) Dispatch(ctx context.Context, p Payload) error {
	id, err := rediscommon.PublishJSONToStream(ctx, d.client, d.stream, p)
	if err != nil {
		return fmt.Errorf("failed to queue prompt on %s: %w", d.stream, err)
	}
	d.logger.Debug("Checkout prompt queued",
		zap.String("stream", d.stream),
		zap.String("message_id", id),
		zap.String("reminder_id", p.ReminderID),
	)
	return nil
}

// DecodeStreamPayload reverses StreamDispatcher's encoding of one message.
func DecodeStreamPayload(msg rediscommon.StreamMessage) (Payload, error) {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return Payload{}, fmt.Errorf("stream message %s has no data field", msg.ID)
	}
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("failed to unmarshal stream message %s: %w", msg.ID, err)
	}
	return p, nil
}
