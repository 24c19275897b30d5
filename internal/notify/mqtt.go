package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Publisher is the slice of the MQTT client the dispatcher needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	QoS() byte
}

// MQTTDispatcher publishes prompts to <prefix>/<worker handle>.
type MQTTDispatcher struct {
	publisher   Publisher
	topicPrefix string
	logger      *zap.Logger
}

func NewMQTTDispatcher(publisher Publisher, topicPrefix string, logger *zap.Logger) *MQTTDispatcher {
	return &MQTTDispatcher{
		publisher:   publisher,
		topicPrefix: strings.TrimSuffix(topicPrefix, "/"),
		logger:      logger,
	}
}

var _ Dispatcher = (*MQTTDispatcher)(nil)

func (d *MQTTDispatcher) Channel() string { return "mqtt" }

// Topic for one worker handle.
func (d *MQTTDispatcher) Topic(handle string) string {
	return d.topicPrefix + "/" + handle
}

func (d *MQTTDispatcher) Dispatch(_ context.Context, p Payload) error {
	if p.WorkerHandle == "" {
		return fmt.Errorf("worker %s has no messaging handle", p.WorkerID)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal prompt: %w", err)
	}
	topic := d.Topic(p.WorkerHandle)
	if err := d.publisher.Publish(topic, d.publisher.QoS(), false, body); err != nil {
		return err
	}
	d.logger.Debug("Checkout prompt published", zap.String("topic", topic), zap.String("reminder_id", p.ReminderID))
	return nil
}
