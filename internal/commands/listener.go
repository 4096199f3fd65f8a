package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"idmask/internal/platform/kafka"
)

// ResultProducer publishes command results.
type ResultProducer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Listener adapts kafka command messages to the Receiver and publishes each
// Result to the result topic keyed by command ID.
type Listener struct {
	receiver    *Receiver
	producer    ResultProducer
	resultTopic string
	logger      *slog.Logger
}

func NewListener(receiver *Receiver, producer ResultProducer, resultTopic string, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Listener{
		receiver:    receiver,
		producer:    producer,
		resultTopic: resultTopic,
		logger:      logger,
	}
}

// Handle implements kafka.Handler. Undecodable commands are logged and
// skipped so they are not redelivered forever.
func (l *Listener) Handle(ctx context.Context, msg *kafka.Message) error {
	var cmd Command
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		l.logger.WarnContext(ctx, "skipping undecodable command",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}

	res := l.receiver.Handle(ctx, cmd)
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode command result: %w", err)
	}
	if err := l.producer.Produce(ctx, l.resultTopic, []byte(res.CommandID.String()), body); err != nil {
		return fmt.Errorf("publish command result: %w", err)
	}
	return nil
}
