package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	audit "idmask/pkg/platform/audit"
)

// Producer writes one keyed record to a topic.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// KafkaSink writes each event as JSON keyed by its ID.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Emit(ctx context.Context, event audit.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	return s.producer.Produce(ctx, s.topic, []byte(event.ID.String()), body)
}
